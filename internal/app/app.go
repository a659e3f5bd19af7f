package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/kunju1991/NSExchangefilings/internal/config"
	"github.com/kunju1991/NSExchangefilings/internal/detector"
	"github.com/kunju1991/NSExchangefilings/internal/domain"
	"github.com/kunju1991/NSExchangefilings/internal/infrastructure/bse"
	"github.com/kunju1991/NSExchangefilings/internal/infrastructure/nse"
	"github.com/kunju1991/NSExchangefilings/internal/infrastructure/scheduler"
	"github.com/kunju1991/NSExchangefilings/internal/infrastructure/storage"
	"github.com/kunju1991/NSExchangefilings/internal/infrastructure/telegram"
	"github.com/kunju1991/NSExchangefilings/internal/logging"
	"github.com/kunju1991/NSExchangefilings/internal/ports"
	"github.com/kunju1991/NSExchangefilings/internal/source"
	"github.com/kunju1991/NSExchangefilings/internal/usecase"
)

// stateStore joins the two persistence ports; both backends implement
// them on one state handle.
type stateStore interface {
	ports.WatchlistStore
	ports.SeenStore
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	cycle      *usecase.Cycle
	watchlists *usecase.WatchlistService
	scheduler  ports.Scheduler
	db         *sql.DB
}

// New builds a runnable application instance from the resolved config.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	registry := source.NewRegistry()
	registry.Register(nse.NewClient(cfg.Source.NSE, baseLogger.With("component", "source.nse")))
	registry.Register(bse.NewScraper(cfg.Source.BSE, baseLogger.With("component", "source.bse")))

	var filingSource ports.FilingSource = source.NewRegistrySource(
		registry, cfg.Source.Adapter, baseLogger.With("component", "source"))
	if ttl := cfg.Cycle.CacheTTL(); ttl > 0 {
		filingSource = source.NewCached(filingSource, ttl)
	}

	store, db, err := openStore(ctx, cfg.Storage, baseLogger)
	if err != nil {
		return nil, err
	}

	policy, err := detector.ParsePolicy(cfg.Detector.FirstContact)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	det := detector.New(filingSource, store, policy, baseLogger.With("component", "detector"))
	notifier := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken)

	cycle := usecase.NewCycle(usecase.CycleDeps{
		Watchlists:  store,
		Seen:        store,
		Detector:    det,
		Notifier:    notifier,
		Concurrency: cfg.Cycle.Concurrency,
		UnitTimeout: cfg.Cycle.UnitTimeout(),
		Logger:      baseLogger.With("component", "cycle"),
	})

	watchlists := usecase.NewWatchlistService(
		store, cfg.Watchlist.DefaultSymbols, baseLogger.With("component", "watchlist"))

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		cycle:      cycle,
		watchlists: watchlists,
		scheduler:  scheduler.NewIntervalScheduler(cfg.Scheduler.Interval()),
		db:         db,
	}, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (stateStore, *sql.DB, error) {
	switch cfg.Driver {
	case "", "file":
		store, err := storage.NewFileStore(cfg.File.Path, log.With("component", "storage.file"))
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return nil, nil, fmt.Errorf("storage driver postgres requires a dsn")
		}
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: open database: %v", domain.ErrStorageFailure, err)
		}
		store := storage.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Watchlists exposes the watchlist control surface.
func (a *Application) Watchlists() *usecase.WatchlistService {
	return a.watchlists
}

// RunCycle executes a single polling cycle.
func (a *Application) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	return a.cycle.Run(ctx)
}

// Watch runs polling cycles on the configured interval until the context
// is cancelled. An interval trigger that lands while the previous cycle
// is still running is skipped.
func (a *Application) Watch(ctx context.Context) error {
	err := a.scheduler.Start(ctx, func(now time.Time) {
		if _, err := a.cycle.Run(ctx); err != nil {
			if err == usecase.ErrCycleInProgress {
				a.logger.Warn("cycle trigger skipped, previous cycle still running", "at", now)
				return
			}
			a.logger.Error("cycle failed", "at", now, "error", err)
		}
	})
	if err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return a.scheduler.Stop(stopCtx)
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
