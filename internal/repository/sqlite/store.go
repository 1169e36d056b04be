// Package sqlite stores transactions in a single SQLite file for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/baharkarakas/pix-reconciler/internal/models"
	repo "github.com/baharkarakas/pix-reconciler/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	amount INTEGER NOT NULL,
	state TEXT NOT NULL CHECK (state IN ('PENDING', 'PAID', 'EXPIRED')),
	origin TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	presentation_code TEXT NOT NULL DEFAULT '',
	presentation_image TEXT NOT NULL DEFAULT '',
	customer TEXT,
	payer TEXT,
	metadata TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	confirmed_at TEXT,
	expired_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at);

CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	ts TEXT NOT NULL,
	source TEXT NOT NULL,
	transaction_id TEXT NOT NULL DEFAULT '',
	observed_status TEXT NOT NULL DEFAULT '',
	raw_payload TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_txn ON audit_logs(transaction_id);
`

type Store struct {
	db *sql.DB
}

// Open creates the database file if needed. Writers take an immediate lock, so upserts
// are serialised across the whole file.
func Open(path string) (*Store, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, path[1:])
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func NewRepositories(s *Store) repo.Repositories {
	return repo.Repositories{
		Transactions: &transactionsRepo{s.db},
		AuditLogs:    &auditLogsRepo{s.db},
		Close:        func() { _ = s.Close() },
	}
}

type transactionsRepo struct{ db *sql.DB }

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectTxn = `SELECT id, amount, state, origin, description, presentation_code, presentation_image,
	customer, payer, metadata, created_at, updated_at, confirmed_at, expired_at FROM transactions`

type scanner interface{ Scan(dest ...any) error }

func scanTxn(row scanner) (models.Transaction, error) {
	var (
		tx                    models.Transaction
		customer, payer, meta sql.NullString
		created, updated      string
		confirmed, expired    sql.NullString
	)
	err := row.Scan(&tx.ID, &tx.Amount, &tx.State, &tx.Origin, &tx.Description,
		&tx.Presentation.Code, &tx.Presentation.Image,
		&customer, &payer, &meta, &created, &updated, &confirmed, &expired)
	if err != nil {
		return tx, err
	}
	if err := decodeJSON(customer, &tx.Customer); err != nil {
		return tx, err
	}
	if err := decodeJSON(payer, &tx.Payer); err != nil {
		return tx, err
	}
	if err := decodeJSON(meta, &tx.Metadata); err != nil {
		return tx, err
	}
	if tx.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return tx, err
	}
	if tx.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return tx, err
	}
	if tx.ConfirmedAt, err = parseNullTime(confirmed); err != nil {
		return tx, err
	}
	tx.ExpiredAt, err = parseNullTime(expired)
	return tx, err
}

func (r *transactionsRepo) Get(ctx context.Context, id string) (models.Transaction, error) {
	tx, err := scanTxn(r.db.QueryRowContext(ctx, selectTxn+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, repo.ErrNotFound
	}
	if err != nil {
		return models.Transaction{}, repo.Unavailable("get", err)
	}
	return tx, nil
}

func (r *transactionsRepo) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM transactions WHERE id = ?`, id).Scan(&n); err != nil {
		return false, repo.Unavailable("exists", err)
	}
	return n > 0, nil
}

func (r *transactionsRepo) Upsert(ctx context.Context, id string, fn repo.MutateFunc) (models.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Transaction{}, repo.Unavailable("upsert", err)
	}
	defer tx.Rollback()

	var in *models.Transaction
	cur, err := scanTxn(tx.QueryRowContext(ctx, selectTxn+` WHERE id = ?`, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return models.Transaction{}, repo.Unavailable("upsert", err)
	default:
		in = &cur
	}

	m, err := fn(in)
	if err != nil {
		return models.Transaction{}, err
	}
	if m.Audit != nil {
		if err := insertAudit(ctx, tx, *m.Audit); err != nil {
			return models.Transaction{}, repo.Unavailable("upsert", err)
		}
	}

	out := models.Transaction{}
	if in != nil {
		out = cur
	}
	if m.Next != nil {
		out = *m.Next
		out.ID = id
		if err := writeTxn(ctx, tx, out); err != nil {
			return models.Transaction{}, repo.Unavailable("upsert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Transaction{}, repo.Unavailable("upsert", err)
	}
	return out, nil
}

func writeTxn(ctx context.Context, q queryer, tx models.Transaction) error {
	customer, err := encodeJSON(tx.Customer)
	if err != nil {
		return err
	}
	payer, err := encodeJSON(tx.Payer)
	if err != nil {
		return err
	}
	meta, err := encodeJSON(tx.Metadata)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO transactions (id, amount, state, origin, description, presentation_code, presentation_image,
			customer, payer, metadata, created_at, updated_at, confirmed_at, expired_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount, state = excluded.state, origin = excluded.origin,
			description = excluded.description, presentation_code = excluded.presentation_code,
			presentation_image = excluded.presentation_image, customer = excluded.customer,
			payer = excluded.payer, metadata = excluded.metadata, updated_at = excluded.updated_at,
			confirmed_at = excluded.confirmed_at, expired_at = excluded.expired_at`,
		tx.ID, int64(tx.Amount), string(tx.State), string(tx.Origin), tx.Description,
		tx.Presentation.Code, tx.Presentation.Image, customer, payer, meta,
		formatTime(tx.CreatedAt), formatTime(tx.UpdatedAt), formatNullTime(tx.ConfirmedAt), formatNullTime(tx.ExpiredAt),
	)
	return err
}

func (r *transactionsRepo) List(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, selectTxn+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, repo.Unavailable("list", err)
	}
	defer rows.Close()

	out := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTxn(rows)
		if err != nil {
			return nil, repo.Unavailable("list", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, repo.Unavailable("list", err)
	}
	return out, nil
}

type auditLogsRepo struct{ db *sql.DB }

func insertAudit(ctx context.Context, q queryer, l models.AuditLog) error {
	repo.StampAudit(&l)
	_, err := q.ExecContext(ctx,
		`INSERT INTO audit_logs (id, ts, source, transaction_id, observed_status, raw_payload, outcome, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, formatTime(l.Timestamp), string(l.Source), l.TransactionID, l.ObservedStatus,
		string(l.RawPayload), string(l.Outcome), l.Detail,
	)
	return err
}

func (r *auditLogsRepo) Create(ctx context.Context, l models.AuditLog) error {
	return repo.Unavailable("audit create", insertAudit(ctx, r.db, l))
}

func (r *auditLogsRepo) List(ctx context.Context, f repo.AuditFilter) ([]models.AuditLog, error) {
	q := `SELECT id, ts, source, transaction_id, observed_status, raw_payload, outcome, detail FROM audit_logs WHERE 1=1`
	var args []any
	if f.TransactionID != "" {
		q += ` AND transaction_id = ?`
		args = append(args, f.TransactionID)
	}
	if f.Source != "" {
		q += ` AND source = ?`
		args = append(args, string(f.Source))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	q += ` ORDER BY ts DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, repo.Unavailable("audit list", err)
	}
	defer rows.Close()

	out := []models.AuditLog{}
	for rows.Next() {
		var (
			l      models.AuditLog
			ts, rp string
		)
		if err := rows.Scan(&l.ID, &ts, &l.Source, &l.TransactionID, &l.ObservedStatus, &rp, &l.Outcome, &l.Detail); err != nil {
			return nil, repo.Unavailable("audit list", err)
		}
		if l.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, repo.Unavailable("audit list", err)
		}
		if rp != "" {
			l.RawPayload = json.RawMessage(rp)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, repo.Unavailable("audit list", err)
	}
	return out, nil
}

// fixed width so text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeJSON(v any) (any, error) {
	switch x := v.(type) {
	case *models.Party:
		if x == nil {
			return nil, nil
		}
	case map[string]any:
		if x == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeJSON(s sql.NullString, dst any) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}
