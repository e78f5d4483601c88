package refstore

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerKV is a key-value backend on an embedded Badger database. Useful
// when the reference set grows past what a single rewritten JSON file
// handles comfortably, or when several tools share the store directory.
type BadgerKV struct {
	db *badger.DB
}

// BadgerConfig configures OpenBadger.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory skips disk persistence entirely. For tests.
	InMemory bool

	// SyncWrites forces an fsync per write. Off unless set; the CLI sets
	// it because store writes are one blob per trigger, so the fsync cost
	// is negligible.
	SyncWrites bool
}

// OpenBadger opens (or creates) a Badger-backed KV.
func OpenBadger(cfg BadgerConfig) (*BadgerKV, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("open badger: path is empty")
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", cfg.Path, err)
	}

	return &BadgerKV{db: db}, nil
}

// Get returns the value for key and whether it was present.
func (b *BadgerKV) Get(key string) (string, bool, error) {
	var value string

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			value = string(val)

			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("badger get %s: %w", key, err)
	}

	return value, true, nil
}

// Set stores value under key.
func (b *BadgerKV) Set(key, value string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("badger set %s: %w", key, err)
	}

	return nil
}

// Close releases the database. Must be called before process exit to flush
// pending writes.
func (b *BadgerKV) Close() error {
	err := b.db.Close()
	if err != nil {
		return fmt.Errorf("close badger: %w", err)
	}

	return nil
}
