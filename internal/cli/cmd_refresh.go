package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// refreshCommand re-fetches task metadata for stored references. Spans are
// never touched; only the cached metadata is merged.
func refreshCommand(app *App) *Command {
	flags := flag.NewFlagSet("refresh", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "refresh [file...]",
		Short: "Refresh cached task metadata from ClickUp",
		Long: `Fetch current task details for every stored reference and merge them
into the cached metadata. Limited to the given files when arguments are
passed. Requires an API token (api_token in config or $CLICKUP_TOKEN).`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if _, err := app.Repo(); err != nil {
				return err
			}

			uris := make([]string, len(args))
			for i, path := range args {
				uris[i] = fileURI(app.Cfg.Workspace, path)
			}

			summary, err := app.Coord.Refresh(ctx, uris...)
			if err != nil {
				return err
			}

			o.Printf("refreshed %d, failed %d, skipped %d\n", summary.Refreshed, summary.Failed, summary.Skipped)

			if summary.Failed > 0 {
				o.Warn("%d task fetches failed; cached metadata kept", summary.Failed)
			}

			return nil
		},
	}
}
