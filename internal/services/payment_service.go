package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/baharkarakas/pix-reconciler/internal/api/validate"
	"github.com/baharkarakas/pix-reconciler/internal/cache"
	"github.com/baharkarakas/pix-reconciler/internal/metrics"
	"github.com/baharkarakas/pix-reconciler/internal/models"
	"github.com/baharkarakas/pix-reconciler/internal/provider"
	repo "github.com/baharkarakas/pix-reconciler/internal/repository"
)

// ErrIncompleteCharge means the provider accepted the charge but left out the id or the QR code.
var ErrIncompleteCharge = errors.New("provider returned an incomplete charge")

// DefaultMinAmount is the provider's smallest accepted charge.
const DefaultMinAmount models.Money = 50

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Provider is the subset of provider.Client the services call.
type Provider interface {
	CreateCharge(ctx context.Context, req provider.ChargeRequest) (provider.Charge, error)
	FetchStatus(ctx context.Context, id string) (provider.StatusReport, error)
}

type CreateInput struct {
	Amount        models.Money
	Description   string
	PayerName     string
	PayerDocument string
	Metadata      map[string]any
}

type CreateOutput struct {
	TransactionID     string
	PresentationCode  string
	PresentationImage string
	State             models.State
}

type PaymentService struct {
	txns      repo.Transactions
	audit     repo.AuditLogs
	prov      Provider
	rec       *Reconciler
	cache     cache.StatusCache
	minAmount models.Money
	log       *slog.Logger
	now       func() time.Time
}

func NewPaymentService(repos repo.Repositories, prov Provider, rec *Reconciler, c cache.StatusCache, minAmount models.Money, log *slog.Logger) *PaymentService {
	if c == nil {
		c = cache.Nop{}
	}
	if minAmount <= 0 {
		minAmount = DefaultMinAmount
	}
	if log == nil {
		log = slog.Default()
	}
	return &PaymentService{
		txns:      repos.Transactions,
		audit:     repos.AuditLogs,
		prov:      prov,
		rec:       rec,
		cache:     c,
		minAmount: minAmount,
		log:       log.With("component", "payments"),
		now:       rec.now,
	}
}

func (s *PaymentService) check(in CreateInput) error {
	var errs validate.Errs
	errs.Add(
		validate.MinAmount("amount", in.Amount, s.minAmount),
		validate.Required("payerName", in.PayerName),
		validate.MaxLen("payerName", in.PayerName, 200),
		validate.TaxID("payerDocument", in.PayerDocument),
		validate.MaxLen("description", in.Description, 500),
	)
	return errs.Err()
}

// Create charges the provider and seeds the local record. Nothing is stored unless the
// provider answered with both an id and a QR code.
func (s *PaymentService) Create(ctx context.Context, in CreateInput) (CreateOutput, error) {
	in.PayerName = strings.TrimSpace(in.PayerName)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.check(in); err != nil {
		return CreateOutput{}, err
	}

	customer := &models.Party{Name: in.PayerName, Document: validate.Digits(in.PayerDocument)}
	charge, err := s.prov.CreateCharge(ctx, provider.ChargeRequest{
		Amount:      in.Amount,
		Description: in.Description,
		Payer:       customer,
	})
	if err != nil {
		s.log.WarnContext(ctx, "charge failed", "amount", in.Amount, "err", err)
		return CreateOutput{}, fmt.Errorf("create charge: %w", err)
	}
	charge.ID = strings.TrimSpace(charge.ID)
	if charge.ID == "" || strings.TrimSpace(charge.QRCode) == "" {
		s.log.ErrorContext(ctx, "incomplete charge", "id", charge.ID, "has_qr", charge.QRCode != "")
		return CreateOutput{}, ErrIncompleteCharge
	}

	raw, _ := json.Marshal(charge)
	now := s.now().UTC()
	saved, err := s.txns.Upsert(ctx, charge.ID, func(cur *models.Transaction) (repo.Mutation, error) {
		next, detail := seed(cur, charge, in, customer, now)
		return repo.Mutation{
			Next: &next,
			Audit: &models.AuditLog{
				Source:         models.SourceCreation,
				TransactionID:  charge.ID,
				ObservedStatus: charge.Status,
				RawPayload:     raw,
				Outcome:        models.OutcomeApplied,
				Detail:         detail,
			},
		}, nil
	})
	if err != nil {
		s.rec.storeFailure(ctx, "seed", charge.ID, err)
		return CreateOutput{}, err
	}

	metrics.PaymentsCreated.Inc()
	s.log.InfoContext(ctx, "payment created", "id", saved.ID, "amount", saved.Amount, "state", saved.State, "origin", saved.Origin)
	return CreateOutput{
		TransactionID:     saved.ID,
		PresentationCode:  saved.Presentation.Code,
		PresentationImage: saved.Presentation.Image,
		State:             saved.State,
	}, nil
}

// seed builds the creation record, or fills creation fields into an orphan that a
// callback wrote first. State and terminal timestamps of an existing record are kept.
func seed(cur *models.Transaction, ch provider.Charge, in CreateInput, customer *models.Party, now time.Time) (models.Transaction, string) {
	pres := models.Presentation{Code: ch.QRCode, Image: ch.QRCodeBase64}
	if cur == nil {
		return models.Transaction{
			ID:           ch.ID,
			Amount:       in.Amount,
			State:        models.StatePending,
			Origin:       models.OriginCreated,
			Description:  in.Description,
			Presentation: pres,
			Customer:     customer,
			Metadata:     in.Metadata,
			CreatedAt:    now,
			UpdatedAt:    now,
		}, "created"
	}

	t := cur.Clone()
	t.Presentation = pres
	t.Description = in.Description
	t.Customer = customer
	t.Metadata = in.Metadata
	if t.Amount == 0 {
		t.Amount = in.Amount
	}
	if t.CreatedAt.IsZero() || now.Before(t.CreatedAt) {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	return t, "creation merged into existing " + string(cur.Origin) + " record"
}

// Status returns the local record, asking the provider first while it is still pending.
// Provider trouble is logged and the last local state is returned.
func (s *PaymentService) Status(ctx context.Context, id string) (models.Transaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Transaction{}, repo.ErrNotFound
	}

	if t, ok, err := s.cache.Get(ctx, id); err != nil {
		s.log.WarnContext(ctx, "cache get", "id", id, "err", err)
	} else if ok {
		return t, nil
	}

	t, err := s.txns.Get(ctx, id)
	if err != nil {
		return models.Transaction{}, err
	}
	if t.State.Terminal() {
		s.remember(ctx, t)
		return t, nil
	}

	res, err := s.Poll(ctx, id)
	if err != nil {
		s.log.WarnContext(ctx, "status poll failed, serving local state", "id", id, "err", err)
		return t, nil
	}
	if res.Transaction.ID == "" {
		return t, nil
	}
	s.remember(ctx, res.Transaction)
	return res.Transaction, nil
}

// Poll fetches the provider's view of id and reconciles it. Store changes only happen
// after a complete provider response.
func (s *PaymentService) Poll(ctx context.Context, id string) (Result, error) {
	rep, err := s.prov.FetchStatus(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("fetch status %s: %w", id, err)
	}
	obs := Observation{
		TransactionID: id,
		Status:        rep.Status,
		Source:        models.SourcePoll,
		Raw:           rep.Raw,
	}
	if rep.Value != nil {
		amt := models.Money(*rep.Value)
		obs.Amount = &amt
	}
	if payer := (&models.Party{Name: rep.PayerName, Document: rep.PayerDoc}); !payer.Empty() {
		obs.Payer = payer
	}
	return s.rec.Apply(ctx, obs)
}

// remember caches a terminal record. An enrichment that lands between our read and the
// put has already invalidated, so the store is re-read and a moved record is evicted.
func (s *PaymentService) remember(ctx context.Context, t models.Transaction) {
	if !t.State.Terminal() {
		return
	}
	if err := s.cache.Put(ctx, t); err != nil {
		s.log.WarnContext(ctx, "cache put", "id", t.ID, "err", err)
		return
	}
	cur, err := s.txns.Get(ctx, t.ID)
	// postgres keeps microseconds
	if err == nil && cur.UpdatedAt.Truncate(time.Microsecond).Equal(t.UpdatedAt.Truncate(time.Microsecond)) {
		return
	}
	if err := s.cache.Invalidate(ctx, t.ID); err != nil {
		s.log.WarnContext(ctx, "cache invalidate", "id", t.ID, "err", err)
	}
}

func (s *PaymentService) List(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	limit, offset = page(limit, offset)
	return s.txns.List(ctx, limit, offset)
}

func (s *PaymentService) Audit(ctx context.Context, f repo.AuditFilter) ([]models.AuditLog, error) {
	f.Limit, f.Offset = page(f.Limit, f.Offset)
	return s.audit.List(ctx, f)
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
