package local_kv_pairs

import (
	"github.com/horockey/akv/internal/model"
)

// Repository is the authoritative in-memory copy of the store.
// Values passed in and returned are shared, callers must not modify them.
type Repository interface {
	model.MetricsProvider
	Get(key string) ([]byte, bool)
	GetMany(keys []string) map[string][]byte
	GetBy(filter model.Filter) map[string][]byte
	Scan(filter model.Filter) []string
	Set(key string, value []byte)
	SetMany(data map[string][]byte)
	Delete(key string)
	DeleteMany(keys []string)
	DeleteBy(filter model.Filter)
	Clear()
	Len() int
}
