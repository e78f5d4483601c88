package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/atomic"

	"clickref/internal/anchor"
)

// editMarkers modifies marker comments in source files. Every edit reads
// the whole file, operates on lines, and writes back atomically so a crash
// never leaves a half-written source file behind.

// insertMarkerLine inserts a marker comment above the given 1-based line,
// indented like the line it anchors. Fails when the file already carries a
// marker for the same task id.
func insertMarkerLine(res *anchor.Resolver, path string, line int, taskID string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	lines, eol := splitFileLines(string(text))

	if line < 1 || line > len(lines) {
		return fmt.Errorf("%w: %s has %d lines, got %d", errLineOutOfRange, path, len(lines), line)
	}

	pats := res.Patterns("", path)
	for _, m := range anchor.Scan(string(text), pats) {
		if m.TaskID == taskID {
			return fmt.Errorf("%w: %s already references %s", errMarkerExists, path, taskID)
		}
	}

	indent := leadingWhitespace(lines[line-1])
	marker := indent + res.MarkerLine("", path, taskID)

	updated := make([]string, 0, len(lines)+1)
	updated = append(updated, lines[:line-1]...)
	updated = append(updated, marker)
	updated = append(updated, lines[line-1:]...)

	return writeFileLines(path, updated, eol)
}

// replaceMarkerTaskID rewrites the task id of the marker on the given
// 1-based line.
func replaceMarkerTaskID(res *anchor.Resolver, path string, line int, taskID string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	lines, eol := splitFileLines(string(text))

	if line < 1 || line > len(lines) {
		return fmt.Errorf("%w: %s has %d lines, got %d", errLineOutOfRange, path, len(lines), line)
	}

	pats := res.Patterns("", path)

	loc := pats.Line.FindStringSubmatchIndex(lines[line-1])
	if loc == nil {
		return fmt.Errorf("%w: %s:%d", errNoMarkerOnLine, path, line)
	}

	// loc[2]:loc[3] is the task id capture.
	lines[line-1] = lines[line-1][:loc[2]] + taskID + lines[line-1][loc[3]:]

	return writeFileLines(path, lines, eol)
}

// removeMarkerLine deletes the marker on the given 1-based line. When the
// line holds nothing but the marker the whole line goes; otherwise only the
// marker text is cut.
func removeMarkerLine(res *anchor.Resolver, path string, line int) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	lines, eol := splitFileLines(string(text))

	if line < 1 || line > len(lines) {
		return fmt.Errorf("%w: %s has %d lines, got %d", errLineOutOfRange, path, len(lines), line)
	}

	pats := res.Patterns("", path)

	loc := pats.Line.FindStringIndex(lines[line-1])
	if loc == nil {
		return fmt.Errorf("%w: %s:%d", errNoMarkerOnLine, path, line)
	}

	remainder := strings.TrimRight(lines[line-1][:loc[0]], " \t") + lines[line-1][loc[1]:]
	// HTML-style markers carry a closing "-->" past the matched prefix.
	remainder = strings.TrimSuffix(strings.TrimRight(remainder, " \t"), "-->")

	if strings.TrimSpace(remainder) == "" {
		lines = append(lines[:line-1], lines[line:]...)
	} else {
		lines[line-1] = strings.TrimRight(remainder, " \t")
	}

	return writeFileLines(path, lines, eol)
}

// markerOnLine reports whether the given 1-based line carries a line-style
// marker, and its task id.
func markerOnLine(res *anchor.Resolver, text, path string, line int) (string, bool) {
	lines, _ := splitFileLines(text)

	if line < 1 || line > len(lines) {
		return "", false
	}

	pats := res.Patterns("", path)

	m := pats.Line.FindStringSubmatch(lines[line-1])
	if m == nil {
		return "", false
	}

	return m[1], true
}

// splitFileLines splits text into lines and reports the dominant line
// ending so edits can reproduce it.
func splitFileLines(text string) ([]string, string) {
	eol := "\n"
	if strings.Contains(text, "\r\n") {
		eol = "\r\n"
	}

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}

	return lines, eol
}

func writeFileLines(path string, lines []string, eol string) error {
	joined := strings.Join(lines, eol)

	err := atomic.WriteFile(path, bytes.NewReader([]byte(joined)))
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
