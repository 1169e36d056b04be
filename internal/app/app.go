// Package app wires configuration into stores, clients and services for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/baharkarakas/pix-reconciler/internal/alerts"
	"github.com/baharkarakas/pix-reconciler/internal/cache"
	"github.com/baharkarakas/pix-reconciler/internal/config"
	"github.com/baharkarakas/pix-reconciler/internal/db"
	"github.com/baharkarakas/pix-reconciler/internal/events"
	"github.com/baharkarakas/pix-reconciler/internal/models"
	"github.com/baharkarakas/pix-reconciler/internal/provider"
	repo "github.com/baharkarakas/pix-reconciler/internal/repository"
	"github.com/baharkarakas/pix-reconciler/internal/repository/memory"
	"github.com/baharkarakas/pix-reconciler/internal/repository/postgres"
	"github.com/baharkarakas/pix-reconciler/internal/repository/sqlite"
	"github.com/baharkarakas/pix-reconciler/internal/services"
	"github.com/baharkarakas/pix-reconciler/internal/worker"
)

// OpenStore returns the backend named by STORE_DRIVER. Postgres migrations run when
// APP_MIGRATE is set.
func OpenStore(ctx context.Context, cfg config.Config, log *slog.Logger) (repo.Repositories, error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		return memory.NewRepositories(), nil
	case "sqlite":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return repo.Repositories{}, fmt.Errorf("sqlite: %w", err)
		}
		log.Info("store opened", "driver", "sqlite", "path", cfg.SQLitePath)
		return sqlite.NewRepositories(s), nil
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return repo.Repositories{}, fmt.Errorf("db connect: %w", err)
		}
		if cfg.Migrate {
			if err := db.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return repo.Repositories{}, fmt.Errorf("migrations: %w", err)
			}
		}
		log.Info("store opened", "driver", "postgres")
		return postgres.NewRepositories(pool), nil
	}
}

// App holds the long-lived pieces; Close releases them in reverse order.
type App struct {
	Repos      repo.Repositories
	Reconciler *services.Reconciler
	Payments   *services.PaymentService
	Pool       *worker.Pool

	events  events.Publisher
	closers []func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{}
	repos, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.Repos = repos
	a.closers = append(a.closers, repos.Close)

	var pub events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		pub = kp
		log.Info("kafka publisher ready", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	a.events = pub

	var sc cache.StatusCache = cache.Nop{}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		sc = cache.NewRedis(rdb, cfg.CacheTTL)
		log.Info("status cache ready", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	}

	a.Pool = worker.NewPool(cfg.Workers)
	a.Reconciler = services.NewReconciler(services.ReconcilerDeps{
		Transactions: repos.Transactions,
		AuditLogs:    repos.AuditLogs,
		Cache:        sc,
		Events:       pub,
		Pool:         a.Pool,
		Alerter:      alerts.NewLogger(log),
		Log:          log,
	})
	client := provider.New(provider.Config{
		BaseURL:    cfg.ProviderBaseURL,
		Token:      cfg.ProviderToken,
		Timeout:    cfg.ProviderTimeout,
		WebhookURL: cfg.ProviderWebhookURL,
	}, log)
	a.Payments = services.NewPaymentService(repos, client, a.Reconciler, sc, models.Money(cfg.MinAmountCents), log)
	return a, nil
}

// Close drains the worker pool before the publisher and store go away.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Stop()
	}
	if a.events != nil {
		_ = a.events.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
