// Package watch turns filesystem write events into save triggers for the
// lifecycle coordinator. Events are debounced per burst so an editor that
// writes a file several times in quick succession produces one trigger.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler receives the debounced set of written file paths.
type Handler func(paths []string)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait for further writes before firing.
	// Default 200ms.
	Debounce time.Duration

	// IgnoreDirs are directory names skipped while walking and watching.
	IgnoreDirs []string

	// Extensions, when non-empty, limits events to files with one of the
	// given extensions (including the dot).
	Extensions []string
}

const defaultDebounce = 200 * time.Millisecond

// defaultIgnoreDirs never hold annotated sources.
var defaultIgnoreDirs = []string{".git", "node_modules", "vendor", ".idea", "__pycache__"}

// Watcher watches a directory tree and reports written files.
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	handler Handler
	opts    Options
}

var errNilHandler = errors.New("watch: handler is nil")

// New creates a watcher rooted at dir. Call Run to start it.
func New(dir string, handler Handler, opts Options) (*Watcher, error) {
	if handler == nil {
		return nil, errNilHandler
	}

	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}

	if opts.IgnoreDirs == nil {
		opts.IgnoreDirs = defaultIgnoreDirs
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{root: dir, fsw: fsw, handler: handler, opts: opts}, nil
}

// Run watches until the context is cancelled. The handler is always called
// from this goroutine, never concurrently with itself.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	err := w.addRecursive(w.root)
	if err != nil {
		return err
	}

	var (
		pending = make(map[string]struct{})
		timer   *time.Timer
		fire    <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			w.handleEvent(event, pending)

			if len(pending) > 0 {
				if timer == nil {
					timer = time.NewTimer(w.opts.Debounce)
				} else {
					timer.Reset(w.opts.Debounce)
				}

				fire = timer.C
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}

			// Overflow or transient watch errors: the next write still
			// triggers a full rescan of its file, so just keep going.
			_ = err

		case <-fire:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}

			clear(pending)

			fire = nil

			w.handler(paths)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, pending map[string]struct{}) {
	// New directories must be picked up so files created inside them are
	// seen; fsnotify does not watch recursively on its own.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.ignored(event.Name) {
				_ = w.addRecursive(event.Name)
			}

			return
		}
	}

	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
		return
	}

	if w.ignored(event.Name) || !w.wantExtension(event.Name) {
		return
	}

	pending[event.Name] = struct{}{}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != dir && w.ignored(path) {
			return filepath.SkipDir
		}

		return w.fsw.Add(path)
	})
}

func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)

	for _, dir := range w.opts.IgnoreDirs {
		if base == dir {
			return true
		}

		// Also reject paths under an ignored directory.
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) {
			return true
		}
	}

	return false
}

func (w *Watcher) wantExtension(path string) bool {
	if len(w.opts.Extensions) == 0 {
		return true
	}

	ext := strings.ToLower(filepath.Ext(path))

	for _, want := range w.opts.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}

	return false
}
