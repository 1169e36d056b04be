// Package alerts raises operator-visible signals for failures that need a human.
package alerts

import (
	"context"
	"log/slog"

	"github.com/baharkarakas/pix-reconciler/internal/metrics"
)

type Kind string

const (
	StoreUnavailable Kind = "store_unavailable"
	PublishFailed    Kind = "publish_failed"
)

type Alert struct {
	Kind          Kind
	TransactionID string
	Err           error
}

type Alerter interface {
	Raise(ctx context.Context, a Alert)
}

// Logger writes alerts at error level and counts them.
type Logger struct {
	log *slog.Logger
}

func NewLogger(log *slog.Logger) *Logger {
	return &Logger{log: log.With("component", "alerts")}
}

func (l *Logger) Raise(ctx context.Context, a Alert) {
	metrics.AlertsRaised.WithLabelValues(string(a.Kind)).Inc()
	l.log.ErrorContext(ctx, "operator alert", "kind", a.Kind, "id", a.TransactionID, "err", a.Err)
}
