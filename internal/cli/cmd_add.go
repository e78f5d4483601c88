package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"clickref/internal/anchor"
	"clickref/internal/refstore"
)

// addCommand anchors a task reference in a source file: it writes a marker
// comment above the chosen line and records the reference, stamped with the
// workspace it was created in. Without a task id the reference is stored as
// a placeholder that a later set-task fills in.
func addCommand(app *App) *Command {
	flags := flag.NewFlagSet("add", flag.ContinueOnError)
	line := flags.Int("line", 0, "1-based line the marker anchors (marker is inserted above it)")
	task := flags.String("task", "", "Task id to reference; prompted for when omitted")
	placeholder := flags.Bool("placeholder", false, "Record a placeholder reference without a task id")

	return &Command{
		Flags: flags,
		Usage: "add --line <n> [flags] <file>",
		Short: "Anchor a task reference in a file",
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

			taskID := *task
			if taskID == "" && !*placeholder {
				var err error

				taskID, err = promptTaskID(o)
				if err != nil {
					return err
				}
			}

			if taskID == "" {
				return addPlaceholder(app, args[0], *line)
			}

			if !anchor.ValidTaskID(taskID) {
				return fmt.Errorf("%w: %q", errInvalidTaskID, taskID)
			}

			return addMarker(ctx, app, o, args[0], *line, taskID)
		},
	}
}

// addMarker writes the marker comment and runs a save trigger so the new
// reference lands in the store, then stamps its origin workspace and pulls
// task metadata when an API token is configured.
func addMarker(ctx context.Context, app *App, o *IO, path string, line int, taskID string) error {
	abs := uriPath(fileURI(app.Cfg.Workspace, path))

	err := insertMarkerLine(app.Resolver, abs, line, taskID)
	if err != nil {
		return err
	}

	doc, err := loadDocument(app.Cfg.Workspace, path)
	if err != nil {
		return err
	}

	result, err := app.Coord.Save(ctx, doc)
	if err != nil {
		return err
	}

	for _, ref := range result.Active {
		if ref.TaskID != taskID {
			continue
		}

		_, err = app.Store.UpsertByPosition(doc.URI, ref.Span, refstore.Patch{
			OriginWorkspace: app.Cfg.Workspace,
		})
		if err != nil {
			return err
		}

		break
	}

	err = refstore.Save(app.KV, app.Store)
	if err != nil {
		return err
	}

	o.Printf("%s:%d: added clickup:%s\n", path, line, taskID)

	if app.repo != nil {
		_, err = app.Coord.Refresh(ctx, doc.URI)
		if err != nil {
			o.Warn("metadata refresh failed: %v", err)
		}
	}

	return nil
}

// addPlaceholder records a store-only reference at the start of the line.
// Nothing is written to the source file; the marker text only exists once a
// task id is assigned.
func addPlaceholder(app *App, path string, line int) error {
	doc, err := loadDocument(app.Cfg.Workspace, path)
	if err != nil {
		return err
	}

	lines, _ := splitFileLines(doc.Text)
	if line > len(lines) {
		return fmt.Errorf("%w: %s has %d lines, got %d", errLineOutOfRange, path, len(lines), line)
	}

	content := lines[line-1]
	startCol := len(leadingWhitespace(content))

	span := anchor.Span{
		StartLine: line - 1,
		StartCol:  startCol,
		EndLine:   line - 1,
		EndCol:    len(content),
	}
	if span.EndCol <= span.StartCol {
		span.EndCol = span.StartCol + 1
	}

	_, err = app.Store.UpsertByPosition(doc.URI, span, refstore.Patch{
		OriginWorkspace: app.Cfg.Workspace,
	})
	if err != nil {
		return err
	}

	return refstore.Save(app.KV, app.Store)
}

const taskIDPromptText = "task id (empty for placeholder): "

// promptTaskID asks for a task id on the command's input. A real terminal
// gets a line editor; piped or injected input is read plainly, so the
// prompt works the same under tests and in scripts. Empty input means
// "record a placeholder".
func promptTaskID(o *IO) (string, error) {
	if f, ok := o.In().(*os.File); ok && f == os.Stdin && liner.TerminalSupported() {
		return promptTaskIDTerminal()
	}

	if o.In() == nil {
		return "", nil
	}

	_, _ = fmt.Fprint(o.errOut, taskIDPromptText)

	input, err := bufio.NewReader(o.In()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("add: read task id: %w", err)
	}

	return strings.TrimSpace(input), nil
}

func promptTaskIDTerminal() (string, error) {
	prompt := liner.NewLiner()
	defer func() { _ = prompt.Close() }()

	prompt.SetCtrlCAborts(true)

	input, err := prompt.Prompt(taskIDPromptText)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", fmt.Errorf("add: %w", err)
		}

		return "", fmt.Errorf("add: read task id: %w", err)
	}

	return strings.TrimSpace(input), nil
}
