package inmemory_local_kv_pairs

import (
	"sync"
	"time"

	"github.com/horockey/akv/internal/model"
	"github.com/horockey/akv/internal/repository/local_kv_pairs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
)

var _ local_kv_pairs.Repository = &inmemoryLocalKVPairs{}

type inmemoryLocalKVPairs struct {
	storage map[string][]byte
	bytes   int
	mu      sync.RWMutex
	metrics *metrics
}

// New creates repo seeded with initial data.
// Repo takes ownership of the given map.
func New(initial map[string][]byte) *inmemoryLocalKVPairs {
	if initial == nil {
		initial = map[string][]byte{}
	}

	repo := inmemoryLocalKVPairs{
		storage: initial,
	}
	for _, v := range initial {
		repo.bytes += len(v)
	}

	repo.metrics = newMetrics(&repo)

	return &repo
}

func (repo *inmemoryLocalKVPairs) Metrics() []prometheus.Collector {
	return repo.metrics.list()
}

func (repo *inmemoryLocalKVPairs) Get(key string) ([]byte, bool) {
	repo.metrics.getRequestsCnt.Inc()
	defer repo.observe(time.Now())

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	val, found := repo.storage[key]
	repo.countHit(found)

	return val, found
}

func (repo *inmemoryLocalKVPairs) GetMany(keys []string) map[string][]byte {
	repo.metrics.getRequestsCnt.Inc()
	defer repo.observe(time.Now())

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	res := make(map[string][]byte, len(keys))
	for _, k := range keys {
		val, found := repo.storage[k]
		repo.countHit(found)
		if found {
			res[k] = val
		}
	}

	return res
}

func (repo *inmemoryLocalKVPairs) GetBy(filter model.Filter) map[string][]byte {
	repo.metrics.getRequestsCnt.Inc()
	defer repo.observe(time.Now())

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	return lo.PickBy(repo.storage, func(k string, _ []byte) bool {
		return filter(k)
	})
}

func (repo *inmemoryLocalKVPairs) Scan(filter model.Filter) []string {
	repo.metrics.getRequestsCnt.Inc()
	defer repo.observe(time.Now())

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	res := []string{}
	for k := range repo.storage {
		if filter(k) {
			res = append(res, k)
		}
	}

	return res
}

func (repo *inmemoryLocalKVPairs) Set(key string, value []byte) {
	repo.metrics.setRequestsCnt.Inc()
	defer repo.observe(time.Now())

	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.put(key, value)
}

func (repo *inmemoryLocalKVPairs) SetMany(data map[string][]byte) {
	repo.metrics.setRequestsCnt.Inc()
	defer repo.observe(time.Now())

	repo.mu.Lock()
	defer repo.mu.Unlock()

	for k, v := range data {
		repo.put(k, v)
	}
}

func (repo *inmemoryLocalKVPairs) Delete(key string) {
	repo.metrics.delRequestsCnt.Inc()
	defer repo.observe(time.Now())

	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.remove(key)
}

func (repo *inmemoryLocalKVPairs) DeleteMany(keys []string) {
	repo.metrics.delRequestsCnt.Inc()
	defer repo.observe(time.Now())

	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, k := range keys {
		repo.remove(k)
	}
}

func (repo *inmemoryLocalKVPairs) DeleteBy(filter model.Filter) {
	repo.metrics.delRequestsCnt.Inc()
	defer repo.observe(time.Now())

	repo.mu.Lock()
	defer repo.mu.Unlock()

	for k := range repo.storage {
		if filter(k) {
			repo.remove(k)
		}
	}
}

func (repo *inmemoryLocalKVPairs) Clear() {
	repo.metrics.delRequestsCnt.Inc()
	defer repo.observe(time.Now())

	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.storage = map[string][]byte{}
	repo.bytes = 0
}

func (repo *inmemoryLocalKVPairs) Len() int {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	return len(repo.storage)
}

func (repo *inmemoryLocalKVPairs) sizeBytes() int {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	return repo.bytes
}

// put and remove must be called under write lock.
func (repo *inmemoryLocalKVPairs) put(key string, value []byte) {
	repo.bytes += len(value) - len(repo.storage[key])
	repo.storage[key] = value
}

func (repo *inmemoryLocalKVPairs) remove(key string) {
	repo.bytes -= len(repo.storage[key])
	delete(repo.storage, key)
}

func (repo *inmemoryLocalKVPairs) countHit(found bool) {
	if found {
		repo.metrics.keyHitsCnt.Inc()
		return
	}
	repo.metrics.keyMissesCnt.Inc()
}

func (repo *inmemoryLocalKVPairs) observe(ts time.Time) {
	repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
}
