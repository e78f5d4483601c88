package refstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"

	"clickref/internal/logging"
)

const (
	kvDirPerms  = 0o750
	kvFilePerms = 0o600
)

// FileKV is a key-value backend stored as one JSON object in a single file.
// Writes go through a temp-file rename so a crash never leaves a torn blob,
// and an flock on a sibling lock file serializes concurrent processes
// (flock is advisory and Unix-only, matching the rest of the tool).
type FileKV struct {
	path   string
	logger *slog.Logger
}

// NewFileKV creates a file backend at path. The parent directory is created
// on first write, not here. A nil logger discards diagnostics.
func NewFileKV(path string, logger *slog.Logger) *FileKV {
	if path == "" {
		panic("file kv path is empty")
	}

	if logger == nil {
		logger = logging.Discard()
	}

	return &FileKV{path: path, logger: logger}
}

// Get reads the value for key. A missing file means absent, not an error.
func (f *FileKV) Get(key string) (string, bool, error) {
	unlock, err := f.lock(unix.LOCK_SH)
	if err != nil {
		return "", false, err
	}
	defer unlock()

	entries, err := f.read()
	if err != nil {
		return "", false, err
	}

	value, ok := entries[key]

	return value, ok, nil
}

// Set stores value under key with a read-modify-write under an exclusive
// lock, then an atomic rename.
func (f *FileKV) Set(key, value string) error {
	err := os.MkdirAll(filepath.Dir(f.path), kvDirPerms)
	if err != nil {
		return fmt.Errorf("kv set: %w", err)
	}

	unlock, err := f.lock(unix.LOCK_EX)
	if err != nil {
		return err
	}
	defer unlock()

	entries, err := f.read()
	if err != nil {
		return err
	}

	if entries == nil {
		entries = make(map[string]string, 1)
	}

	entries[key] = value

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("kv set: %w", err)
	}

	err = atomic.WriteFile(f.path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("kv set %s: %w", f.path, err)
	}

	return nil
}

// read loads the backing file. Missing file yields a nil map.
func (f *FileKV) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("kv read %s: %w", f.path, err)
	}

	var entries map[string]string

	err = json.Unmarshal(data, &entries)
	if err != nil {
		// A torn or hand-damaged kv file is equivalent to an empty one;
		// per-key consumers decide how to treat absent data. Logged so a
		// wiped store is diagnosable.
		f.logger.Warn("kv file malformed, treating as empty", "path", f.path, "error", err)

		return nil, nil
	}

	return entries, nil
}

// lock takes an flock of the given type on the sibling lock file and
// returns the release function. The lock file itself is never removed; a
// replaced lock file would silently stop guarding the pathname.
func (f *FileKV) lock(how int) (func(), error) {
	err := os.MkdirAll(filepath.Dir(f.path), kvDirPerms)
	if err != nil {
		return nil, fmt.Errorf("kv lock: %w", err)
	}

	lockFile, err := os.OpenFile(f.path+".lock", os.O_CREATE|os.O_RDWR, kvFilePerms)
	if err != nil {
		return nil, fmt.Errorf("kv lock: %w", err)
	}

	err = unix.Flock(int(lockFile.Fd()), how)
	if err != nil {
		_ = lockFile.Close()

		return nil, fmt.Errorf("kv lock %s: %w", f.path, err)
	}

	return func() {
		_ = unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)
		_ = lockFile.Close()
	}, nil
}
