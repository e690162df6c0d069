package durable_kv_pairs

import (
	"github.com/horockey/akv/internal/model"
)

// Repository is a best-effort durable mirror holding one stored unit per key.
// It is driven by a single writer, so implementations need no extra locking.
type Repository interface {
	model.MetricsProvider
	// Load returns every stored unit that maps back to a key.
	// Unreadable or foreign units are skipped.
	Load() (map[string][]byte, error)
	ApplyClear() error
	ApplyDeletePrefix(prefix string) error
	// ApplyUpserts keeps going on per-key failures and returns them joined.
	ApplyUpserts(data map[string][]byte) error
	// ApplyDeletes treats absent units as already deleted.
	ApplyDeletes(keys []string) error
	Close() error
}
