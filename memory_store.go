package akv

import (
	"bytes"
	"maps"
	"slices"

	"github.com/horockey/akv/internal/model"
	"github.com/horockey/akv/internal/repository/local_kv_pairs"
	"github.com/horockey/akv/internal/repository/local_kv_pairs/inmemory_local_kv_pairs"
	"github.com/prometheus/client_golang/prometheus"
)

// MemoryStore is a KV without persistence.
type MemoryStore struct {
	localRepo local_kv_pairs.Repository
}

// NewMemoryStore returns store seeded with a copy of initial.
func NewMemoryStore(initial map[Key]Value) *MemoryStore {
	data := make(map[Key]Value, len(initial))
	for k, v := range initial {
		data[k] = bytes.Clone(v)
	}

	return &MemoryStore{
		localRepo: inmemory_local_kv_pairs.New(data),
	}
}

func (ms *MemoryStore) Metrics() []prometheus.Collector {
	return ms.localRepo.Metrics()
}

func (ms *MemoryStore) Get(key Key) (Value, bool) {
	return ms.localRepo.Get(key)
}

func (ms *MemoryStore) GetMany(keys []Key) map[Key]Value {
	return ms.localRepo.GetMany(keys)
}

func (ms *MemoryStore) ScanKeys(filter Filter) []Key {
	return ms.localRepo.Scan(filter)
}

func (ms *MemoryStore) GetAll() map[Key]Value {
	return ms.localRepo.GetBy(model.AllFilter)
}

func (ms *MemoryStore) GetWithPrefix(prefix Key) map[Key]Value {
	return ms.localRepo.GetBy(model.PrefixFilter(prefix))
}

func (ms *MemoryStore) Set(key Key, value Value) {
	ms.localRepo.Set(key, bytes.Clone(value))
}

func (ms *MemoryStore) SetMany(data map[Key]Value) {
	cp := maps.Clone(data)
	for k, v := range cp {
		cp[k] = bytes.Clone(v)
	}
	ms.localRepo.SetMany(cp)
}

func (ms *MemoryStore) Delete(key Key) {
	ms.localRepo.Delete(key)
}

func (ms *MemoryStore) DeleteMany(keys []Key) {
	ms.localRepo.DeleteMany(slices.Clone(keys))
}

func (ms *MemoryStore) DeleteAll() {
	ms.localRepo.Clear()
}

func (ms *MemoryStore) DeleteWithPrefix(prefix Key) {
	ms.localRepo.DeleteBy(model.PrefixFilter(prefix))
}
