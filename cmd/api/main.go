package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baharkarakas/pix-reconciler/internal/api"
	"github.com/baharkarakas/pix-reconciler/internal/app"
	"github.com/baharkarakas/pix-reconciler/internal/auth"
	"github.com/baharkarakas/pix-reconciler/internal/config"
	"github.com/baharkarakas/pix-reconciler/internal/logger"
	"github.com/baharkarakas/pix-reconciler/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	if cfg.ProviderWebhookURL == "" {
		log.Warn("PROVIDER_WEBHOOK_URL not set; provider callbacks will not reach this service")
	}

	r := api.NewRouter(api.RouterDeps{
		Cfg:        cfg,
		Payments:   a.Payments,
		Reconciler: a.Reconciler,
		Tokens:     auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, 0),
		Log:        log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
