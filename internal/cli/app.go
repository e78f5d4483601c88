package cli

import (
	"fmt"
	"log/slog"

	"clickref/internal/anchor"
	"clickref/internal/clickup"
	"clickref/internal/lifecycle"
	"clickref/internal/refstore"
)

// App bundles the wired subsystems a command needs: resolved config, the
// opened KV backend, the reference store loaded from it, and the lifecycle
// coordinator. Built once per invocation in Run.
type App struct {
	Cfg      Config
	Logger   *slog.Logger
	KV       refstore.KV
	Store    *refstore.Store
	Coord    *lifecycle.Coordinator
	Resolver *anchor.Resolver

	repo    clickup.Repository
	closers []func() error
}

// newApp opens the configured store backend, loads the persisted snapshot,
// and wires the coordinator. The caller must Close the returned app.
func newApp(cfg Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Cfg:      cfg,
		Logger:   logger,
		Resolver: anchor.NewResolver(cfg.Languages),
	}

	switch cfg.StoreBackend {
	case BackendBadger:
		bkv, err := refstore.OpenBadger(refstore.BadgerConfig{
			Path:       cfg.StorePathAbs,
			SyncWrites: true,
		})
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}

		app.KV = bkv
		app.closers = append(app.closers, bkv.Close)
	default:
		app.KV = refstore.NewFileKV(cfg.StorePathAbs, logger)
	}

	store, err := refstore.Load(app.KV, logger)
	if err != nil {
		_ = app.Close()

		return nil, fmt.Errorf("load references: %w", err)
	}

	app.Store = store

	if cfg.APIToken != "" {
		client, err := clickup.NewClient(clickup.ClientConfig{Token: cfg.APIToken})
		if err != nil {
			_ = app.Close()

			return nil, err
		}

		app.repo = client
	}

	coord, err := lifecycle.New(lifecycle.Config{
		Store:    store,
		KV:       app.KV,
		Repo:     app.repo,
		Logger:   logger,
		Resolver: app.Resolver,
	})
	if err != nil {
		_ = app.Close()

		return nil, err
	}

	app.Coord = coord

	return app, nil
}

// Repo returns the task repository, or an error when no API token is
// configured.
func (a *App) Repo() (clickup.Repository, error) {
	if a.repo == nil {
		return nil, errTokenNotSet
	}

	return a.repo, nil
}

// Close releases the store backend.
func (a *App) Close() error {
	var firstErr error

	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
