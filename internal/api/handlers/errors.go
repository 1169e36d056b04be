package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/baharkarakas/pix-reconciler/internal/api/httpx"
	"github.com/baharkarakas/pix-reconciler/internal/api/validate"
	"github.com/baharkarakas/pix-reconciler/internal/provider"
	repo "github.com/baharkarakas/pix-reconciler/internal/repository"
	"github.com/baharkarakas/pix-reconciler/internal/services"
)

// writeServiceError maps the error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verrs  validate.Errs
		apiErr *provider.APIError
	)
	switch {
	case errors.As(err, &verrs):
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "invalid request", verrs)
	case errors.As(err, &apiErr):
		httpx.WriteProviderError(w, http.StatusBadGateway, apiErr.Error(), apiErr.Details)
	case errors.Is(err, provider.ErrProviderUnavailable):
		httpx.WriteError(w, http.StatusBadGateway, "provider_unavailable", "payment provider unavailable", nil)
	case errors.Is(err, services.ErrIncompleteCharge):
		httpx.WriteError(w, http.StatusBadGateway, "provider_error", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "not found", nil)
	case errors.Is(err, repo.ErrStoreUnavailable):
		httpx.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "storage temporarily unavailable", nil)
	default:
		slog.ErrorContext(r.Context(), "unhandled error", "path", r.URL.Path, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
