package refstore

import (
	"fmt"
	"log/slog"
)

// KV is the persistence backend contract: best-effort key-value storage of
// the serialized store blob. Implementations must make Set all-or-nothing
// for a single key; no durability guarantee beyond that is assumed.
type KV interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// Set stores value under key.
	Set(key, value string) error
}

// Load reads the store blob from a backend. An absent or malformed blob
// yields an empty store: stale persisted data must never block startup.
// Backend read errors are reported; shape errors are logged and swallowed.
func Load(kv KV, logger *slog.Logger) (*Store, error) {
	blob, ok, err := kv.Get(BlobKey)
	if err != nil {
		return nil, fmt.Errorf("load references: %w", err)
	}

	if !ok || blob == "" {
		return New(), nil
	}

	store, err := Decode([]byte(blob))
	if err != nil {
		logger.Warn("discarding malformed reference blob", "key", BlobKey, "error", err)

		return New(), nil
	}

	return store, nil
}

// Save writes the store blob to a backend.
func Save(kv KV, store *Store) error {
	data, err := store.Encode()
	if err != nil {
		return fmt.Errorf("save references: %w", err)
	}

	err = kv.Set(BlobKey, string(data))
	if err != nil {
		return fmt.Errorf("save references: %w", err)
	}

	return nil
}
