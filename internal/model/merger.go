package model

import (
	"slices"
	"strings"

	"github.com/samber/lo"
)

type pendingState struct {
	value   []byte
	deleted bool
}

// Merger folds a stream of ops into a single Effect.
// Last write wins per key, in order of arrival.
// Not safe for concurrent use: it is owned by the persistence worker.
type Merger struct {
	clear    bool
	prefixes []string
	entries  map[string]pendingState
	merged   int
}

func NewMerger() *Merger {
	return &Merger{
		entries: map[string]pendingState{},
	}
}

func (m *Merger) Merge(op Op) {
	m.merged++

	switch op.Kind {
	case OpInsert:
		m.upsert(op.Key, op.Value)
	case OpInsertMany:
		for k, v := range op.Data {
			m.upsert(k, v)
		}
	case OpDelete:
		m.delete(op.Key)
	case OpDeleteMany:
		for _, k := range op.Keys {
			m.delete(k)
		}
	case OpDeletePrefix:
		if op.Prefix == "" {
			m.reset()
			return
		}
		m.deletePrefix(op.Prefix)
	case OpClear:
		m.reset()
	default:
		m.merged--
	}
}

// IsEmpty reports whether a flush would do nothing.
func (m *Merger) IsEmpty() bool {
	return !m.clear && len(m.prefixes) == 0 && len(m.entries) == 0
}

// Merged returns count of ops folded since the last Effect call.
func (m *Merger) Merged() int {
	return m.merged
}

// Effect returns the accumulated net effect and resets the merger.
func (m *Merger) Effect() Effect {
	eff := Effect{
		Clear:    m.clear,
		Prefixes: m.prefixes,
		Upserts:  map[string][]byte{},
		Deletes:  []string{},
	}

	for k, st := range m.entries {
		if st.deleted {
			eff.Deletes = append(eff.Deletes, k)
			continue
		}
		eff.Upserts[k] = st.value
	}
	slices.Sort(eff.Deletes)

	m.clear = false
	m.prefixes = nil
	m.entries = map[string]pendingState{}
	m.merged = 0

	return eff
}

func (m *Merger) upsert(key string, value []byte) {
	m.entries[key] = pendingState{value: value}
}

func (m *Merger) delete(key string) {
	// Everything durable was wiped by the pending clear,
	// so only unflushed state has to be forgotten.
	if m.clear {
		delete(m.entries, key)
		return
	}
	m.entries[key] = pendingState{deleted: true}
}

func (m *Merger) deletePrefix(prefix string) {
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}

	if m.clear {
		return
	}

	// A shorter prefix already recorded covers this one.
	if lo.ContainsBy(m.prefixes, func(p string) bool { return strings.HasPrefix(prefix, p) }) {
		return
	}
	m.prefixes = lo.Filter(m.prefixes, func(p string, _ int) bool {
		return !strings.HasPrefix(p, prefix)
	})
	m.prefixes = append(m.prefixes, prefix)
}

func (m *Merger) reset() {
	m.clear = true
	m.prefixes = nil
	m.entries = map[string]pendingState{}
}
