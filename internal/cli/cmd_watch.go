package cli

import (
	"context"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"clickref/internal/anchor"
	"clickref/internal/watch"
)

// watchCommand keeps the store in sync while files change on disk: every
// written file gets a save-triggered rescan, and cached task metadata is
// refreshed on an interval when an API token is configured. Runs until
// interrupted.
func watchCommand(app *App) *Command {
	flags := flag.NewFlagSet("watch", flag.ContinueOnError)
	noRefresh := flags.Bool("no-refresh", false, "Disable the periodic metadata refresh")

	return &Command{
		Flags: flags,
		Usage: "watch [flags] [dir]",
		Short: "Watch the workspace and rescan on change",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			dir := app.Cfg.Workspace
			if len(args) > 0 {
				dir = uriPath(fileURI(app.Cfg.Workspace, args[0]))
			}

			handler := func(paths []string) {
				for _, path := range paths {
					doc, err := loadDocument(app.Cfg.Workspace, path)
					if err != nil {
						app.Logger.Warn("watch: read failed", "path", path, "error", err)

						continue
					}

					result, err := app.Coord.Save(ctx, doc)
					if err != nil {
						app.Logger.Warn("watch: rescan failed", "path", path, "error", err)

						continue
					}

					app.Logger.Info("rescanned",
						"path", path,
						"active", len(result.Active),
						"orphaned", len(result.Orphaned))
				}
			}

			watcher, err := watch.New(dir, handler, watch.Options{
				Debounce:   time.Duration(app.Cfg.DebounceMillis) * time.Millisecond,
				Extensions: anchor.KnownExtensions(),
			})
			if err != nil {
				return err
			}

			o.Println("watching", dir)

			group, ctx := errgroup.WithContext(ctx)

			group.Go(func() error {
				return watcher.Run(ctx)
			})

			if app.repo != nil && !*noRefresh {
				group.Go(func() error {
					return refreshLoop(ctx, app)
				})
			}

			err = group.Wait()
			if err != nil && ctx.Err() != nil {
				// Interrupted; a clean shutdown is not an error.
				return nil
			}

			return err
		},
	}
}

func refreshLoop(ctx context.Context, app *App) error {
	interval := time.Duration(app.Cfg.RefreshSeconds) * time.Second

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			summary, err := app.Coord.Refresh(ctx, app.Store.URIs()...)
			if err != nil {
				app.Logger.Warn("metadata refresh failed", "error", err)

				continue
			}

			app.Logger.Info("metadata refreshed",
				"refreshed", summary.Refreshed,
				"failed", summary.Failed,
				"skipped", summary.Skipped)
		}
	}
}
