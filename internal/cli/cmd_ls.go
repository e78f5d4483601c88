package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"clickref/internal/anchor"
)

// lsCommand lists stored references. Each listed file is rescanned first so
// the active/orphaned split reflects the file as it is on disk, not as it
// was at the last trigger.
func lsCommand(app *App) *Command {
	flags := flag.NewFlagSet("ls", flag.ContinueOnError)
	allWorkspaces := flags.Bool("all-workspaces", false, "Include references created in other workspaces")
	orphanedOnly := flags.Bool("orphaned", false, "Only show orphaned references")

	return &Command{
		Flags: flags,
		Usage: "ls [flags] [file...]",
		Short: "List task references",
		Long: `List stored task references, grouped by file. Files are rescanned on
listing, so markers moved since the last scan show their current
position. References whose marker is gone are listed as orphaned.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			uris := args
			if len(uris) == 0 {
				uris = app.Store.URIs()
			} else {
				for i, path := range uris {
					uris[i] = fileURI(app.Cfg.Workspace, path)
				}
			}

			for _, uri := range uris {
				path := displayPath(app.Cfg.Workspace, uri)

				result, err := rescanForListing(ctx, app, uri)
				if err != nil {
					o.Warn("%s: %v", path, err)

					continue
				}

				for _, ref := range result.Active {
					if *orphanedOnly || !listable(app.Cfg, ref, *allWorkspaces) {
						continue
					}

					o.Println(formatRefLine(path, ref, false))
				}

				for _, ref := range result.Orphaned {
					if !listable(app.Cfg, ref, *allWorkspaces) {
						continue
					}

					o.Println(formatRefLine(path, ref, true))
				}
			}

			return nil
		},
	}
}

// rescanForListing runs a display trigger for the document so the listing
// reflects current marker positions. A file that no longer exists yields
// every stored reference as orphaned without touching the store.
func rescanForListing(ctx context.Context, app *App, uri string) (anchor.Result, error) {
	data, err := os.ReadFile(uriPath(uri))
	if os.IsNotExist(err) {
		return anchor.Result{Orphaned: app.Store.Get(uri)}, nil
	}

	if err != nil {
		return anchor.Result{}, err
	}

	return app.Coord.Display(ctx, lifecycleDocument(uri, string(data)))
}

func listable(cfg Config, ref anchor.Reference, allWorkspaces bool) bool {
	if allWorkspaces || ref.OriginWorkspace == "" {
		return true
	}

	return ref.OriginWorkspace == cfg.Workspace
}

func formatRefLine(path string, ref anchor.Reference, orphaned bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s:%d:%d", path, ref.Span.StartLine+1, ref.Span.StartCol+1)

	if ref.Placeholder() {
		b.WriteString("  (placeholder)")
	} else {
		b.WriteString("  " + ref.TaskID)
	}

	if orphaned {
		b.WriteString("  [orphaned]")
	}

	if ref.Meta != nil && ref.Meta.Name != "" {
		b.WriteString("  " + ref.Meta.Name)

		if ref.Meta.Status != "" {
			fmt.Fprintf(&b, " (%s)", ref.Meta.Status)
		}
	}

	return b.String()
}
