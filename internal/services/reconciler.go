package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/baharkarakas/pix-reconciler/internal/alerts"
	"github.com/baharkarakas/pix-reconciler/internal/cache"
	"github.com/baharkarakas/pix-reconciler/internal/events"
	"github.com/baharkarakas/pix-reconciler/internal/metrics"
	"github.com/baharkarakas/pix-reconciler/internal/models"
	repo "github.com/baharkarakas/pix-reconciler/internal/repository"
	"github.com/baharkarakas/pix-reconciler/internal/status"
	"github.com/baharkarakas/pix-reconciler/internal/worker"
)

// ErrMalformedObservation rejects callbacks and polls that carry no transaction id.
var ErrMalformedObservation = errors.New("malformed observation: missing transaction id")

// Observation is one provider report about a transaction, from a callback or a poll.
type Observation struct {
	TransactionID string
	Status        string
	Amount        *models.Money
	Payer         *models.Party
	Source        models.Source
	Raw           json.RawMessage

	// Note is appended to the audit detail, e.g. fields the parser had to drop.
	Note string
}

type Result struct {
	Transaction  models.Transaction
	Outcome      models.Outcome
	Transitioned bool
}

type ReconcilerDeps struct {
	Transactions repo.Transactions
	AuditLogs    repo.AuditLogs
	Cache        cache.StatusCache
	Events       events.Publisher
	Pool         *worker.Pool
	Alerter      alerts.Alerter
	Log          *slog.Logger
	Now          func() time.Time
}

// Reconciler is the only writer of transaction state after creation.
type Reconciler struct {
	txns    repo.Transactions
	audit   repo.AuditLogs
	cache   cache.StatusCache
	events  events.Publisher
	pool    *worker.Pool
	alerter alerts.Alerter
	log     *slog.Logger
	now     func() time.Time
}

func NewReconciler(d ReconcilerDeps) *Reconciler {
	r := &Reconciler{
		txns:    d.Transactions,
		audit:   d.AuditLogs,
		cache:   d.Cache,
		events:  d.Events,
		pool:    d.Pool,
		alerter: d.Alerter,
		log:     d.Log,
		now:     d.Now,
	}
	if r.cache == nil {
		r.cache = cache.Nop{}
	}
	if r.events == nil {
		r.events = events.Nop{}
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.alerter == nil {
		r.alerter = alerts.NewLogger(r.log)
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.log = r.log.With("component", "reconciler")
	return r
}

// Apply merges one observation into the store. The audit entry is written in the same
// unit of work as the record, including for no-ops.
func (r *Reconciler) Apply(ctx context.Context, obs Observation) (Result, error) {
	id := strings.TrimSpace(obs.TransactionID)
	raw := auditPayload(obs.Raw)

	if id == "" {
		entry := models.AuditLog{
			Source:         obs.Source,
			ObservedStatus: obs.Status,
			RawPayload:     raw,
			Outcome:        models.OutcomeRejected,
			Detail:         withNote("missing transaction id", obs.Note),
		}
		if err := r.audit.Create(ctx, entry); err != nil {
			r.storeFailure(ctx, "audit_create", "", err)
		}
		metrics.Observations.WithLabelValues(string(obs.Source), string(models.OutcomeRejected)).Inc()
		r.log.WarnContext(ctx, "observation rejected", "source", obs.Source, "status", obs.Status)
		return Result{Outcome: models.OutcomeRejected}, ErrMalformedObservation
	}

	canon := status.Normalize(obs.Status)
	var res Result
	saved, err := r.txns.Upsert(ctx, id, func(cur *models.Transaction) (repo.Mutation, error) {
		d := decide(cur, canon, obs, r.now().UTC())
		res.Outcome = d.outcome
		res.Transitioned = d.transitioned
		return repo.Mutation{
			Next: d.next,
			Audit: &models.AuditLog{
				Source:         obs.Source,
				TransactionID:  id,
				ObservedStatus: obs.Status,
				RawPayload:     raw,
				Outcome:        d.outcome,
				Detail:         withNote(d.detail, obs.Note),
			},
		}, nil
	})
	if err != nil {
		r.storeFailure(ctx, "upsert", id, err)
		return Result{}, err
	}
	res.Transaction = saved
	metrics.Observations.WithLabelValues(string(obs.Source), string(res.Outcome)).Inc()

	switch {
	case res.Transitioned:
		metrics.Transitions.WithLabelValues(string(saved.State), string(saved.Origin)).Inc()
		r.log.InfoContext(ctx, "transaction transitioned", "id", id, "state", saved.State, "origin", saved.Origin, "source", obs.Source)
		r.afterTransition(saved, obs.Source)
	case res.Outcome == models.OutcomeApplied:
		r.log.InfoContext(ctx, "payer enriched", "id", id, "state", saved.State)
		if err := r.cache.Invalidate(ctx, id); err != nil {
			r.log.WarnContext(ctx, "cache invalidate", "id", id, "err", err)
		}
	case canon == models.CanonicalUnknown:
		r.log.InfoContext(ctx, "unrecognised provider status", "id", id, "status", obs.Status, "source", obs.Source)
	default:
		r.log.DebugContext(ctx, "observation ignored", "id", id, "status", obs.Status, "state", saved.State)
	}
	return res, nil
}

// afterTransition runs on the worker pool so the caller never waits on Kafka.
// A full queue drops the event and raises an alert.
func (r *Reconciler) afterTransition(t models.Transaction, src models.Source) {
	ev := events.NewPaymentEvent(t, src)
	job := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.cache.Invalidate(ctx, t.ID); err != nil {
			r.log.Warn("cache invalidate", "id", t.ID, "err", err)
		}
		if err := r.events.Publish(ctx, ev); err != nil {
			metrics.EventsPublished.WithLabelValues("error").Inc()
			r.alerter.Raise(ctx, alerts.Alert{Kind: alerts.PublishFailed, TransactionID: t.ID, Err: err})
			return
		}
		metrics.EventsPublished.WithLabelValues("ok").Inc()
	}
	if r.pool == nil {
		job()
		return
	}
	if err := r.pool.Submit(job); err != nil {
		metrics.EventsPublished.WithLabelValues("dropped").Inc()
		r.alerter.Raise(context.Background(), alerts.Alert{Kind: alerts.PublishFailed, TransactionID: t.ID, Err: err})
	}
}

func (r *Reconciler) storeFailure(ctx context.Context, op, id string, err error) {
	if !errors.Is(err, repo.ErrStoreUnavailable) {
		return
	}
	metrics.StoreFailures.WithLabelValues(op).Inc()
	r.alerter.Raise(ctx, alerts.Alert{Kind: alerts.StoreUnavailable, TransactionID: id, Err: err})
}

type decision struct {
	next         *models.Transaction
	outcome      models.Outcome
	transitioned bool
	detail       string
}

func decide(cur *models.Transaction, canon models.Canonical, obs Observation, now time.Time) decision {
	terminal := canon == models.CanonicalPaid || canon == models.CanonicalExpired

	if cur == nil {
		if !terminal {
			return decision{outcome: models.OutcomeNoop, detail: "unknown transaction, non-terminal status"}
		}
		t := models.Transaction{
			ID:        strings.TrimSpace(obs.TransactionID),
			Origin:    models.OriginOrphan,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if obs.Amount != nil {
			t.Amount = *obs.Amount
		}
		markTerminal(&t, canon, obs, now)
		return decision{next: &t, outcome: models.OutcomeApplied, transitioned: true, detail: "orphan record created"}
	}

	if cur.State == models.StatePending {
		if !terminal {
			return decision{outcome: models.OutcomeNoop, detail: "status does not change a pending transaction"}
		}
		t := cur.Clone()
		t.UpdatedAt = now
		if canon == models.CanonicalPaid && obs.Amount != nil {
			t.Amount = *obs.Amount
		}
		markTerminal(&t, canon, obs, now)
		return decision{next: &t, outcome: models.OutcomeApplied, transitioned: true, detail: "pending -> " + string(t.State)}
	}

	// Terminal states are sticky; only a missing payer on a paid record is filled in.
	if cur.State == models.StatePaid && cur.Payer.Empty() && !obs.Payer.Empty() {
		t := cur.Clone()
		p := *obs.Payer
		t.Payer = &p
		t.UpdatedAt = now
		return decision{next: &t, outcome: models.OutcomeApplied, detail: "payer enriched"}
	}
	return decision{outcome: models.OutcomeNoop, detail: "already " + string(cur.State)}
}

func markTerminal(t *models.Transaction, canon models.Canonical, obs Observation, now time.Time) {
	switch canon {
	case models.CanonicalPaid:
		t.State = models.StatePaid
		t.ConfirmedAt = &now
		if !obs.Payer.Empty() {
			p := *obs.Payer
			t.Payer = &p
		}
	case models.CanonicalExpired:
		t.State = models.StateExpired
		t.ExpiredAt = &now
	}
}

func withNote(detail, note string) string {
	if note == "" {
		return detail
	}
	return detail + "; " + note
}

// auditPayload keeps the audit column valid JSON even when the provider sent garbage.
func auditPayload(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return raw
	}
	b, _ := json.Marshal(string(raw))
	return b
}
