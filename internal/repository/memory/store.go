// Package memory keeps transactions in process memory. Used by tests and single-process dev runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/baharkarakas/pix-reconciler/internal/models"
	repo "github.com/baharkarakas/pix-reconciler/internal/repository"
)

const stripes = 64

type transactionsRepo struct {
	locks [stripes]sync.Mutex

	mu   sync.RWMutex
	rows map[string]models.Transaction

	audit *auditLogsRepo
}

type auditLogsRepo struct {
	mu   sync.RWMutex
	rows []models.AuditLog
}

func NewRepositories() repo.Repositories {
	a := &auditLogsRepo{}
	return repo.Repositories{
		Transactions: &transactionsRepo{rows: map[string]models.Transaction{}, audit: a},
		AuditLogs:    a,
		Close:        func() {},
	}
}

func (r *transactionsRepo) lockFor(id string) *sync.Mutex {
	return &r.locks[xxhash.Sum64String(id)%stripes]
}

func (r *transactionsRepo) Get(_ context.Context, id string) (models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.rows[id]
	if !ok {
		return models.Transaction{}, repo.ErrNotFound
	}
	return tx.Clone(), nil
}

func (r *transactionsRepo) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rows[id]
	return ok, nil
}

func (r *transactionsRepo) Upsert(ctx context.Context, id string, fn repo.MutateFunc) (models.Transaction, error) {
	l := r.lockFor(id)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return models.Transaction{}, repo.Unavailable("upsert", err)
	}

	r.mu.RLock()
	cur, found := r.rows[id]
	r.mu.RUnlock()

	var in *models.Transaction
	if found {
		c := cur.Clone()
		in = &c
	}
	m, err := fn(in)
	if err != nil {
		return models.Transaction{}, err
	}

	if m.Audit != nil {
		_ = r.audit.Create(ctx, *m.Audit)
	}
	if m.Next == nil {
		if found {
			return cur.Clone(), nil
		}
		return models.Transaction{}, nil
	}

	next := m.Next.Clone()
	next.ID = id
	r.mu.Lock()
	r.rows[id] = next
	r.mu.Unlock()
	return next.Clone(), nil
}

func (r *transactionsRepo) List(_ context.Context, limit, offset int) ([]models.Transaction, error) {
	r.mu.RLock()
	out := make([]models.Transaction, 0, len(r.rows))
	for _, tx := range r.rows {
		out = append(out, tx.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (a *auditLogsRepo) Create(_ context.Context, l models.AuditLog) error {
	repo.StampAudit(&l)
	a.mu.Lock()
	a.rows = append(a.rows, l)
	a.mu.Unlock()
	return nil
}

func (a *auditLogsRepo) List(_ context.Context, f repo.AuditFilter) ([]models.AuditLog, error) {
	a.mu.RLock()
	var out []models.AuditLog
	// newest first
	for i := len(a.rows) - 1; i >= 0; i-- {
		l := a.rows[i]
		if f.TransactionID != "" && l.TransactionID != f.TransactionID {
			continue
		}
		if f.Source != "" && l.Source != f.Source {
			continue
		}
		out = append(out, l)
	}
	a.mu.RUnlock()
	return page(out, f.Limit, f.Offset), nil
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return []T{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
