package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/pix-reconciler/internal/api/httpx"
	"github.com/baharkarakas/pix-reconciler/internal/api/validate"
	"github.com/baharkarakas/pix-reconciler/internal/models"
	repo "github.com/baharkarakas/pix-reconciler/internal/repository"
	"github.com/baharkarakas/pix-reconciler/internal/services"
)

type PaymentHandler struct {
	svc *services.PaymentService
	log *slog.Logger
}

func NewPaymentHandler(svc *services.PaymentService, log *slog.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, log: log}
}

type createReq struct {
	Amount        json.Number    `json:"amount"`
	Description   string         `json:"description"`
	PayerName     string         `json:"payerName"`
	PayerDocument string         `json:"payerDocument"`
	Metadata      map[string]any `json:"metadata"`
}

type createResp struct {
	TransactionID     string       `json:"transactionId"`
	PresentationCode  string       `json:"presentationCode"`
	PresentationImage string       `json:"presentationImage,omitempty"`
	State             models.State `json:"state"`
}

// Create: POST /api/v1/payments (amount in reais, e.g. 10.00)
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return
	}

	if req.Amount == "" {
		writeServiceError(w, r, validate.Errs{{Field: "amount", Msg: "required"}})
		return
	}
	amount, err := models.ParseMoney(req.Amount.String())
	if err != nil {
		writeServiceError(w, r, validate.Errs{{Field: "amount", Msg: "must be a number with at most two decimal places"}})
		return
	}

	out, err := h.svc.Create(r.Context(), services.CreateInput{
		Amount:        amount,
		Description:   req.Description,
		PayerName:     req.PayerName,
		PayerDocument: req.PayerDocument,
		Metadata:      req.Metadata,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, createResp{
		TransactionID:     out.TransactionID,
		PresentationCode:  out.PresentationCode,
		PresentationImage: out.PresentationImage,
		State:             out.State,
	})
}

type statusResp struct {
	TransactionID     string        `json:"transactionId"`
	State             string        `json:"state"`
	Amount            models.Money  `json:"amount"`
	Origin            models.Origin `json:"origin"`
	CreatedAt         time.Time     `json:"createdAt"`
	ConfirmedAt       *time.Time    `json:"confirmedAt,omitempty"`
	ExpiredAt         *time.Time    `json:"expiredAt,omitempty"`
	PresentationCode  string        `json:"presentationCode,omitempty"`
	PresentationImage string        `json:"presentationImage,omitempty"`
	Payer             *models.Party `json:"payer,omitempty"`
}

func toStatusResp(t models.Transaction) statusResp {
	return statusResp{
		TransactionID:     t.ID,
		State:             string(t.State),
		Amount:            t.Amount,
		Origin:            t.Origin,
		CreatedAt:         t.CreatedAt,
		ConfirmedAt:       t.ConfirmedAt,
		ExpiredAt:         t.ExpiredAt,
		PresentationCode:  t.Presentation.Code,
		PresentationImage: t.Presentation.Image,
		Payer:             t.Payer,
	}
}

// Status: GET /api/v1/payments/{id}/status
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.svc.Status(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		httpx.WriteJSON(w, http.StatusNotFound, map[string]string{"transactionId": id, "state": "NOT_FOUND"})
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toStatusResp(t))
}
