package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	backend "github.com/redis/go-redis/v9"

	"github.com/TM9657/flow-like-sub010/internal/config"
	"github.com/TM9657/flow-like-sub010/internal/logging"
	"github.com/TM9657/flow-like-sub010/pkg/adapters/file"
	"github.com/TM9657/flow-like-sub010/pkg/adapters/memory"
	"github.com/TM9657/flow-like-sub010/pkg/adapters/postgres"
	"github.com/TM9657/flow-like-sub010/pkg/adapters/redis"
	"github.com/TM9657/flow-like-sub010/pkg/adapters/sqlite"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
	"github.com/TM9657/flow-like-sub010/pkg/nodes"
	"github.com/TM9657/flow-like-sub010/pkg/persistence/middleware"
	"github.com/TM9657/flow-like-sub010/pkg/ports"
	"github.com/TM9657/flow-like-sub010/pkg/registry"
	"github.com/TM9657/flow-like-sub010/pkg/runs"
)

// App bundles the collaborators every command shares, built from the config.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *registry.Registry
	Loader   ports.BoardLoader
	Store    ports.RunStore
	Logs     ports.LogStore
	Locker   ports.DistributedLocker

	closers []func() error
}

// NewApp opens the stores named by cfg. Call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: nodes.NewRegistry(),
		Loader:   file.New(cfg.BoardsDir),
	}

	// 1. Run store (and optional distributed locker)
	if err := app.openStore(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	// 2. Log store
	if cfg.Logs.SQLitePath != "" {
		logs, err := sqlite.Open(cfg.Logs.SQLitePath)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("failed to open log store: %w", err)
		}
		app.Logs = logs
		app.closers = append(app.closers, logs.Close)
	} else {
		app.Logs = memory.NewLogStore()
	}

	logger.Debug("App initialized",
		"store", cfg.Store.Driver,
		"boards_dir", cfg.BoardsDir,
		"sqlite", cfg.Logs.SQLitePath != "",
		"lock", app.Locker != nil,
	)
	return app, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config.Store
	switch cfg.Driver {
	case config.DriverRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		a.Store = redis.NewFromClient(client, redis.WithTTL(cfg.TTL), redis.WithPrefix(cfg.Redis.Prefix))
		if cfg.Redis.Lock {
			a.Locker = redis.NewLocker(client, cfg.Redis.Prefix)
		}
		a.closers = append(a.closers, client.Close)
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("failed to open postgres pool: %w", err)
		}
		store := postgres.New(pool)
		if err := store.CreateSchema(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("failed to create postgres schema: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
	default:
		a.Store = memory.NewStore()
	}
	return a.wrapStore()
}

// wrapStore applies redaction and encryption to stored event payloads.
// Masking runs first so only redacted payloads are sealed.
func (a *App) wrapStore() error {
	cfg := a.Config.Store
	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.Redact)
		if err != nil {
			return err
		}
		mws = append(mws, pii)
	}
	if cfg.Encryption.Key != "" {
		enc := middleware.EncryptionConfig{}
		for i, k := range append([]string{cfg.Encryption.Key}, cfg.Encryption.FallbackKeys...) {
			key, err := middleware.ParseKey(k)
			if err != nil {
				return fmt.Errorf("store.encryption: %w", err)
			}
			if i == 0 {
				enc.ActiveKey = key
			} else {
				enc.FallbackKeys = append(enc.FallbackKeys, key)
			}
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}
	a.Store = middleware.Chain(a.Store, mws...)
	return nil
}

// Manager creates a run manager over the app's stores, applying the engine
// and stream settings from the config.
func (a *App) Manager(opts ...runs.Option) *runs.Manager {
	cfg := a.Config
	base := []runs.Option{
		runs.WithLogger(a.Logger),
		runs.WithLogStore(a.Logs),
		runs.WithTTL(cfg.Store.TTL),
		runs.WithTimeout(cfg.Engine.Timeout),
		runs.WithStream(cfg.Stream.Capacity, cfg.Stream.Interval),
		runs.WithRunOptions(
			flow.WithExecLimit(cfg.Engine.ExecLimit),
			flow.WithConcurrency(cfg.Engine.Concurrency),
		),
	}
	if a.Locker != nil {
		base = append(base, runs.WithLocker(a.Locker))
	}
	return runs.NewManager(a.Loader, a.Store, a.Registry, append(base, opts...)...)
}

// Close releases the stores in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
