package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"clickref/internal/anchor"
	"clickref/internal/refstore"
)

// setTaskCommand assigns or changes the task id of the reference on a
// line. An existing marker gets its id rewritten in place; a placeholder is
// materialized as marker text now that it has an id to carry.
func setTaskCommand(app *App) *Command {
	flags := flag.NewFlagSet("set-task", flag.ContinueOnError)
	line := flags.Int("line", 0, "1-based line of the marker or placeholder")

	return &Command{
		Flags: flags,
		Usage: "set-task --line <n> <file> <task-id>",
		Short: "Assign a task id to the reference on a line",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("%w (usage: set-task --line <n> <file> <task-id>)", errTaskIDRequired)
			}

			if *line < 1 {
				if *line == 0 {
					return errLineRequired
				}

				return errInvalidLine
			}

			path, taskID := args[0], args[1]
			if !anchor.ValidTaskID(taskID) {
				return fmt.Errorf("%w: %q", errInvalidTaskID, taskID)
			}

			uri := fileURI(app.Cfg.Workspace, path)

			doc, err := loadDocument(app.Cfg.Workspace, path)
			if err != nil {
				return err
			}

			if _, ok := markerOnLine(app.Resolver, doc.Text, path, *line); ok {
				err = replaceMarkerTaskID(app.Resolver, uriPath(uri), *line, taskID)
			} else {
				err = materializePlaceholder(app, uri, path, *line, taskID)
			}

			if err != nil {
				return err
			}

			doc, err = loadDocument(app.Cfg.Workspace, path)
			if err != nil {
				return err
			}

			_, err = app.Coord.Save(ctx, doc)
			if err != nil {
				return err
			}

			o.Printf("%s:%d: now references clickup:%s\n", path, *line, taskID)

			if app.repo != nil {
				_, err = app.Coord.Refresh(ctx, uri)
				if err != nil {
					o.Warn("metadata refresh failed: %v", err)
				}
			}

			return nil
		},
	}
}

// materializePlaceholder assigns the task id to the stored placeholder
// before writing the marker line. The id is set first so the save-triggered
// reconciliation matches the marker by identity and carries any cached
// metadata onto it.
func materializePlaceholder(app *App, uri, path string, line int, taskID string) error {
	for _, ref := range app.Store.Get(uri) {
		if ref.Span.StartLine != line-1 || !ref.Placeholder() {
			continue
		}

		_, err := app.Store.UpsertByPosition(uri, ref.Span, refstore.Patch{TaskID: taskID})
		if err != nil {
			return err
		}

		return insertMarkerLine(app.Resolver, uriPath(uri), line, taskID)
	}

	return fmt.Errorf("%w: %s:%d", errNoReferenceAt, path, line)
}
