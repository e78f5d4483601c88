package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"clickref/internal/lifecycle"
)

// fileURI converts an absolute or workspace-relative path to the document
// URI used as the store key.
func fileURI(workspace, path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(workspace, path)
	}

	return "file://" + filepath.ToSlash(filepath.Clean(path))
}

// uriPath converts a file URI back to a filesystem path.
func uriPath(uri string) string {
	return filepath.FromSlash(strings.TrimPrefix(uri, "file://"))
}

// displayPath renders a URI relative to the workspace when it lies inside
// it, absolute otherwise.
func displayPath(workspace, uri string) string {
	path := uriPath(uri)

	rel, err := filepath.Rel(workspace, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}

	return rel
}

// lifecycleDocument wraps already-read text as a scan input.
func lifecycleDocument(uri, text string) lifecycle.Document {
	return lifecycle.Document{URI: uri, Text: text}
}

// loadDocument reads a source file into the scan input shape. The language
// is left to be inferred from the file extension.
func loadDocument(workspace, path string) (lifecycle.Document, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(workspace, abs)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return lifecycle.Document{}, fmt.Errorf("read %s: %w", path, err)
	}

	return lifecycle.Document{
		URI:  fileURI(workspace, path),
		Text: string(data),
	}, nil
}
