package akv

import (
	"github.com/horockey/akv/internal/model"
)

type (
	Key   = string
	Value = []byte
	// Filter reports whether key should be picked by a scan.
	Filter = model.Filter
)

// PrefixFilter matches keys starting with prefix. Empty prefix matches everything.
func PrefixFilter(prefix string) Filter {
	return model.PrefixFilter(prefix)
}

// Reader is served from memory and never blocks on durable I/O.
// Returned values are shared with the store and must not be modified.
type Reader interface {
	Get(key Key) (Value, bool)
	// GetMany returns only the requested keys that are present.
	GetMany(keys []Key) map[Key]Value
	ScanKeys(filter Filter) []Key
	GetAll() map[Key]Value
	GetWithPrefix(prefix Key) map[Key]Value
}

// Writer methods return once the memory copy is updated.
// Values are copied, callers may reuse their buffers.
type Writer interface {
	Set(key Key, value Value)
	SetMany(data map[Key]Value)
	Delete(key Key)
	DeleteMany(keys []Key)
	DeleteAll()
	// DeleteWithPrefix removes every key starting with prefix. Empty prefix removes everything.
	DeleteWithPrefix(prefix Key)
}

type KV interface {
	Reader
	Writer
}
