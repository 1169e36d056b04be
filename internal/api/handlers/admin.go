package handlers

import (
	"net/http"
	"strconv"

	"github.com/baharkarakas/pix-reconciler/internal/api/httpx"
	"github.com/baharkarakas/pix-reconciler/internal/api/validate"
	"github.com/baharkarakas/pix-reconciler/internal/models"
	repo "github.com/baharkarakas/pix-reconciler/internal/repository"
	"github.com/baharkarakas/pix-reconciler/internal/services"
)

type AdminHandler struct {
	svc *services.PaymentService
}

func NewAdminHandler(svc *services.PaymentService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type listResp[T any] struct {
	Data   []T `json:"data"`
	Count  int `json:"count"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Payments: GET /api/v1/admin/payments?limit=&offset=
func (h *AdminHandler) Payments(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	txs, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]statusResp, 0, len(txs))
	for _, t := range txs {
		out = append(out, toStatusResp(t))
	}
	httpx.WriteJSON(w, http.StatusOK, listResp[statusResp]{Data: out, Count: len(out), Limit: limit, Offset: offset})
}

// Audit: GET /api/v1/admin/audit?transaction_id=&source=&limit=&offset=
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	src := models.Source(q.Get("source"))
	switch src {
	case "", models.SourceCallback, models.SourcePoll, models.SourceCreation:
	default:
		writeServiceError(w, r, validate.Errs{{Field: "source", Msg: "must be callback, poll or creation"}})
		return
	}

	limit, offset := paging(r)
	logs, err := h.svc.Audit(r.Context(), repo.AuditFilter{
		TransactionID: q.Get("transaction_id"),
		Source:        src,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResp[models.AuditLog]{Data: logs, Count: len(logs), Limit: limit, Offset: offset})
}

func paging(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, 500)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
