package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"clickref/internal/refstore"
)

// rmCommand removes the reference anchored on a line: the marker comment is
// cut from the file and the stored reference is dropped. Placeholder
// references, which have no marker text, are removed from the store alone.
func rmCommand(app *App) *Command {
	flags := flag.NewFlagSet("rm", flag.ContinueOnError)
	line := flags.Int("line", 0, "1-based line of the marker or placeholder")

	return &Command{
		Flags: flags,
		Usage: "rm --line <n> <file>",
		Short: "Remove the task reference on a line",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return errFileRequired
			}

			if *line < 1 {
				if *line == 0 {
					return errLineRequired
				}

				return errInvalidLine
			}

			path := args[0]
			uri := fileURI(app.Cfg.Workspace, path)

			doc, err := loadDocument(app.Cfg.Workspace, path)
			if err != nil {
				return err
			}

			if _, ok := markerOnLine(app.Resolver, doc.Text, path, *line); ok {
				err = removeMarkerLine(app.Resolver, uriPath(uri), *line)
				if err != nil {
					return err
				}

				doc, err = loadDocument(app.Cfg.Workspace, path)
				if err != nil {
					return err
				}

				// The save trigger purges the now-orphaned reference.
				_, err = app.Coord.Save(ctx, doc)
				if err != nil {
					return err
				}

				o.Printf("%s:%d: marker removed\n", path, *line)

				return nil
			}

			// No marker text: a placeholder lives only in the store.
			for _, ref := range app.Store.Get(uri) {
				if ref.Span.StartLine != *line-1 {
					continue
				}

				removed, err := app.Store.RemoveByPosition(uri, ref.Span)
				if err != nil {
					return err
				}

				if removed {
					err = refstore.Save(app.KV, app.Store)
					if err != nil {
						return err
					}

					o.Printf("%s:%d: reference removed\n", path, *line)

					return nil
				}
			}

			return fmt.Errorf("%w: %s:%d", errNoReferenceAt, path, *line)
		},
	}
}
