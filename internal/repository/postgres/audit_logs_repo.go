package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/pix-reconciler/internal/models"
	repo "github.com/baharkarakas/pix-reconciler/internal/repository"
)

type auditLogsRepo struct{ pool *pgxpool.Pool }

func insertAudit(ctx context.Context, q querier, l models.AuditLog) error {
	repo.StampAudit(&l)
	_, err := q.Exec(ctx,
		`INSERT INTO audit_logs(id, ts, source, transaction_id, observed_status, raw_payload, outcome, detail)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		l.ID, l.Timestamp, l.Source, l.TransactionID, l.ObservedStatus, string(l.RawPayload), l.Outcome, l.Detail,
	)
	return err
}

func (r *auditLogsRepo) Create(ctx context.Context, l models.AuditLog) error {
	return repo.Unavailable("audit create", insertAudit(ctx, r.pool, l))
}

func (r *auditLogsRepo) List(ctx context.Context, f repo.AuditFilter) ([]models.AuditLog, error) {
	var (
		where []string
		args  []any
	)
	if f.TransactionID != "" {
		args = append(args, f.TransactionID)
		where = append(where, fmt.Sprintf("transaction_id=$%d", len(args)))
	}
	if f.Source != "" {
		args = append(args, f.Source)
		where = append(where, fmt.Sprintf("source=$%d", len(args)))
	}
	q := `SELECT id, ts, source, transaction_id, observed_status, raw_payload, outcome, detail FROM audit_logs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	q += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, repo.Unavailable("audit list", err)
	}
	defer rows.Close()

	out := []models.AuditLog{}
	for rows.Next() {
		var (
			l   models.AuditLog
			raw string
		)
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Source, &l.TransactionID, &l.ObservedStatus, &raw, &l.Outcome, &l.Detail); err != nil {
			return nil, repo.Unavailable("audit list", err)
		}
		if raw != "" {
			l.RawPayload = []byte(raw)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, repo.Unavailable("audit list", err)
	}
	return out, nil
}
