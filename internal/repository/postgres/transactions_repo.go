package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/pix-reconciler/internal/models"
	repo "github.com/baharkarakas/pix-reconciler/internal/repository"
)

type transactionsRepo struct{ pool *pgxpool.Pool }

// pool and pgx.Tx both satisfy this
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectTxn = `
SELECT id, amount, state, origin, description, presentation_code, presentation_image,
       customer, payer, metadata, created_at, updated_at, confirmed_at, expired_at
  FROM transactions`

func scanTxn(row pgx.Row) (models.Transaction, error) {
	var tx models.Transaction
	err := row.Scan(
		&tx.ID, &tx.Amount, &tx.State, &tx.Origin, &tx.Description,
		&tx.Presentation.Code, &tx.Presentation.Image,
		&tx.Customer, &tx.Payer, &tx.Metadata,
		&tx.CreatedAt, &tx.UpdatedAt, &tx.ConfirmedAt, &tx.ExpiredAt,
	)
	return tx, err
}

func (r *transactionsRepo) Get(ctx context.Context, id string) (models.Transaction, error) {
	tx, err := scanTxn(r.pool.QueryRow(ctx, selectTxn+` WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, repo.ErrNotFound
	}
	if err != nil {
		return models.Transaction{}, repo.Unavailable("get", err)
	}
	return tx, nil
}

func (r *transactionsRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM transactions WHERE id=$1)`, id).Scan(&exists)
	if err != nil {
		return false, repo.Unavailable("exists", err)
	}
	return exists, nil
}

func (r *transactionsRepo) Upsert(ctx context.Context, id string, fn repo.MutateFunc) (models.Transaction, error) {
	var (
		out   models.Transaction
		fnErr error
	)
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		// absent ids have no row to lock, so serialise on the id itself
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, id); err != nil {
			return err
		}

		var in *models.Transaction
		cur, err := scanTxn(tx.QueryRow(ctx, selectTxn+` WHERE id=$1 FOR UPDATE`, id))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return err
		default:
			in = &cur
		}

		m, err := fn(in)
		if err != nil {
			fnErr = err
			return err
		}
		if m.Audit != nil {
			if err := insertAudit(ctx, tx, *m.Audit); err != nil {
				return err
			}
		}
		if m.Next == nil {
			if in != nil {
				out = cur
			}
			return nil
		}

		next := *m.Next
		next.ID = id
		if err := writeTxn(ctx, tx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if fnErr != nil {
		return models.Transaction{}, fnErr
	}
	if err != nil {
		return models.Transaction{}, repo.Unavailable("upsert", err)
	}
	return out, nil
}

func writeTxn(ctx context.Context, q querier, tx models.Transaction) error {
	const stmt = `
INSERT INTO transactions (
  id, amount, state, origin, description, presentation_code, presentation_image,
  customer, payer, metadata, created_at, updated_at, confirmed_at, expired_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  amount = EXCLUDED.amount,
  state = EXCLUDED.state,
  origin = EXCLUDED.origin,
  description = EXCLUDED.description,
  presentation_code = EXCLUDED.presentation_code,
  presentation_image = EXCLUDED.presentation_image,
  customer = EXCLUDED.customer,
  payer = EXCLUDED.payer,
  metadata = EXCLUDED.metadata,
  updated_at = EXCLUDED.updated_at,
  confirmed_at = EXCLUDED.confirmed_at,
  expired_at = EXCLUDED.expired_at`
	_, err := q.Exec(ctx, stmt,
		tx.ID, tx.Amount, tx.State, tx.Origin, tx.Description,
		tx.Presentation.Code, tx.Presentation.Image,
		tx.Customer, tx.Payer, tx.Metadata,
		tx.CreatedAt, tx.UpdatedAt, tx.ConfirmedAt, tx.ExpiredAt,
	)
	return err
}

func (r *transactionsRepo) List(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx, selectTxn+`
		  ORDER BY created_at DESC
		  LIMIT $1 OFFSET $2`,
		limit, offset,
	)
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

// ReadCommitted is enough: the advisory lock already orders writers of one id.
func (r *transactionsRepo) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
