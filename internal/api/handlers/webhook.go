package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/baharkarakas/pix-reconciler/internal/api/httpx"
	"github.com/baharkarakas/pix-reconciler/internal/models"
	"github.com/baharkarakas/pix-reconciler/internal/provider"
	"github.com/baharkarakas/pix-reconciler/internal/services"
)

const webhookStoreTimeout = 5 * time.Second

type WebhookHandler struct {
	rec *services.Reconciler
	log *slog.Logger
}

func NewWebhookHandler(rec *services.Reconciler, log *slog.Logger) *WebhookHandler {
	return &WebhookHandler{rec: rec, log: log}
}

// PIX: POST /webhook/pix
// Receipt is acknowledged whatever reconciliation decides; only a missing id is a 400.
func (h *WebhookHandler) PIX(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "unreadable body", nil)
		return
	}

	cb, perr := provider.ParseCallback(body, r.Header.Get("Content-Type"))
	if perr != nil {
		h.log.WarnContext(r.Context(), "callback not parseable", "err", perr)
	}
	obs := services.Observation{
		TransactionID: cb.TransactionID,
		Status:        cb.Status,
		Amount:        cb.Amount,
		Payer:         cb.Payer,
		Source:        models.SourceCallback,
		Raw:           body,
		Note:          strings.Join(cb.Issues, "; "),
	}
	if perr != nil {
		obs.Note = "unparseable body: " + perr.Error()
	}
	if len(cb.Issues) > 0 {
		h.log.WarnContext(r.Context(), "callback fields ignored", "id", cb.TransactionID, "issues", cb.Issues)
	}

	// the provider hanging up must not abort a half-applied write
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), webhookStoreTimeout)
	defer cancel()

	res, err := h.rec.Apply(ctx, obs)
	switch {
	case errors.Is(err, services.ErrMalformedObservation):
		httpx.WriteError(w, http.StatusBadRequest, "malformed_observation", "transactionId is required", nil)
		return
	case err != nil:
		h.log.ErrorContext(r.Context(), "callback not applied", "id", cb.TransactionID, "status", cb.Status, "err", err)
	default:
		h.log.InfoContext(r.Context(), "callback processed", "id", cb.TransactionID, "status", cb.Status, "outcome", res.Outcome)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
