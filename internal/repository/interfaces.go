package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/baharkarakas/pix-reconciler/internal/models"
)

var (
	ErrNotFound         = errors.New("transaction not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Mutation is what a MutateFunc wants persisted. A nil Next leaves the record as is;
// Audit, when set, is written in the same unit of work.
type Mutation struct {
	Next  *models.Transaction
	Audit *models.AuditLog
}

// MutateFunc receives the current record (nil when absent) while the id is locked.
type MutateFunc func(cur *models.Transaction) (Mutation, error)

type Transactions interface {
	Get(ctx context.Context, id string) (models.Transaction, error)
	Exists(ctx context.Context, id string) (bool, error)

	// Upsert serialises read-modify-write per id. Errors from fn are returned unchanged
	// and nothing is written; I/O failures wrap ErrStoreUnavailable.
	Upsert(ctx context.Context, id string, fn MutateFunc) (models.Transaction, error)

	List(ctx context.Context, limit, offset int) ([]models.Transaction, error)
}

type AuditFilter struct {
	TransactionID string
	Source        models.Source
	Limit         int
	Offset        int
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
	List(ctx context.Context, f AuditFilter) ([]models.AuditLog, error)
}

type Repositories struct {
	Transactions Transactions
	AuditLogs    AuditLogs
	Close        func()
}

// Unavailable wraps an I/O error so callers can match ErrStoreUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storeError{op: op, err: err}
}

type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string { return "store " + e.op + ": " + e.err.Error() }

func (e *storeError) Unwrap() []error { return []error{ErrStoreUnavailable, e.err} }

// StampAudit fills the id and timestamp every backend expects on an audit row.
func StampAudit(l *models.AuditLog) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now().UTC()
	}
}
