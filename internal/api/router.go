package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/pix-reconciler/internal/api/handlers"
	"github.com/baharkarakas/pix-reconciler/internal/config"
	"github.com/baharkarakas/pix-reconciler/internal/metrics"
	"github.com/baharkarakas/pix-reconciler/internal/middleware"
	"github.com/baharkarakas/pix-reconciler/internal/services"
)

type RouterDeps struct {
	Cfg        config.Config
	Payments   *services.PaymentService
	Reconciler *services.Reconciler
	Tokens     middleware.TokenParser
	Log        *slog.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	payments := handlers.NewPaymentHandler(d.Payments, d.Log)
	webhook := handlers.NewWebhookHandler(d.Reconciler, d.Log)
	admin := handlers.NewAdminHandler(d.Payments)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	// provider callbacks are never rate limited; a 429 would only trigger retries
	r.Post("/webhook/pix", webhook.PIX)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(d.Cfg.RateRPS))

		r.Post("/payments", payments.Create)
		r.Get("/payments/{id}/status", payments.Status)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.OperatorAuth(d.Tokens))
			r.Get("/payments", admin.Payments)
			r.Get("/audit", admin.Audit)
		})
	})

	return r
}
