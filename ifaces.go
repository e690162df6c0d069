package akv

import (
	"github.com/horockey/akv/internal/model"
	"github.com/horockey/akv/internal/repository/durable_kv_pairs"
)

type (
	MetricsProvider = model.MetricsProvider
	// Backend is a durable mirror keeping one stored unit per key.
	// Store is its only writer.
	Backend = durable_kv_pairs.Repository
)

var (
	_ KV = &Store{}
	_ KV = &MemoryStore{}

	_ MetricsProvider = &Store{}
	_ MetricsProvider = &MemoryStore{}
)
