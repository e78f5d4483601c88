package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"clickref/internal/anchor"
)

// scanCommand rescans source files and reconciles their markers against the
// stored reference sets. Without --save orphaned references survive in the
// store; with --save they are purged, mirroring the editor save trigger.
func scanCommand(app *App) *Command {
	flags := flag.NewFlagSet("scan", flag.ContinueOnError)
	save := flags.Bool("save", false, "Treat the scan as a save: purge orphaned references")

	return &Command{
		Flags: flags,
		Usage: "scan [--save] <file>...",
		Short: "Scan files for task markers and reconcile",
		Long: `Scan source files for clickup:<task-id> comment markers and reconcile
them against the stored references. Moved markers keep their cached task
metadata. Markers that disappeared become orphaned; orphaned references
are kept until a --save scan purges them.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return errFileRequired
			}

			for _, path := range args {
				doc, err := loadDocument(app.Cfg.Workspace, path)
				if err != nil {
					return err
				}

				var result anchor.Result
				if *save {
					result, err = app.Coord.Save(ctx, doc)
				} else {
					result, err = app.Coord.Display(ctx, doc)
				}

				if err != nil {
					return err
				}

				o.Printf("%s: %d active, %d orphaned\n", path, len(result.Active), len(result.Orphaned))
			}

			return nil
		},
	}
}
