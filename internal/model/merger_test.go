package model_test

import (
	"testing"

	"github.com/horockey/akv/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Merger_Empty(t *testing.T) {
	m := model.NewMerger()
	assert.True(t, m.IsEmpty())

	eff := m.Effect()
	assert.True(t, eff.IsEmpty())
	assert.False(t, eff.Clear)
}

func Test_Merger_LastWriteWins(t *testing.T) {
	m := model.NewMerger()
	m.Merge(model.InsertOp("k", []byte("a")))
	m.Merge(model.InsertOp("k", []byte("b")))
	m.Merge(model.DeleteOp("k"))
	m.Merge(model.InsertOp("k", []byte("c")))

	require.False(t, m.IsEmpty())
	assert.Equal(t, 4, m.Merged())

	eff := m.Effect()
	assert.Equal(t, map[string][]byte{"k": []byte("c")}, eff.Upserts)
	assert.NotContains(t, eff.Deletes, "k")
	assert.False(t, eff.Clear)
}

func Test_Merger_DeleteOverridesInsert(t *testing.T) {
	m := model.NewMerger()
	m.Merge(model.InsertManyOp(map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}))
	m.Merge(model.DeleteManyOp([]string{"b", "c"}))

	eff := m.Effect()
	assert.Equal(t, map[string][]byte{"a": []byte("1")}, eff.Upserts)
	assert.Equal(t, []string{"b", "c"}, eff.Deletes)
}

func Test_Merger_ClearThenInsert(t *testing.T) {
	m := model.NewMerger()
	m.Merge(model.InsertOp("k1", []byte("x")))
	m.Merge(model.ClearOp())
	m.Merge(model.InsertOp("k2", []byte("y")))

	eff := m.Effect()
	assert.True(t, eff.Clear)
	assert.Equal(t, map[string][]byte{"k2": []byte("y")}, eff.Upserts)
	assert.Empty(t, eff.Deletes)
	assert.Empty(t, eff.Prefixes)
}

func Test_Merger_DeletesAfterClearAreDropped(t *testing.T) {
	m := model.NewMerger()
	m.Merge(model.ClearOp())
	m.Merge(model.InsertOp("k", []byte("v")))
	m.Merge(model.DeleteOp("k"))
	m.Merge(model.DeletePrefixOp("p/"))

	eff := m.Effect()
	assert.True(t, eff.Clear)
	assert.Empty(t, eff.Upserts)
	assert.Empty(t, eff.Deletes)
	assert.Empty(t, eff.Prefixes)
}

func Test_Merger_EmptyPrefixIsClear(t *testing.T) {
	m := model.NewMerger()
	m.Merge(model.InsertOp("k", []byte("v")))
	m.Merge(model.DeletePrefixOp(""))

	eff := m.Effect()
	assert.True(t, eff.Clear)
	assert.Empty(t, eff.Upserts)
}

func Test_Merger_PrefixDropsEarlierEntries(t *testing.T) {
	m := model.NewMerger()
	m.Merge(model.InsertOp("a/1", []byte("1")))
	m.Merge(model.DeleteOp("a/2"))
	m.Merge(model.InsertOp("b/1", []byte("3")))
	m.Merge(model.DeletePrefixOp("a/"))
	m.Merge(model.InsertOp("a/3", []byte("4")))

	eff := m.Effect()
	assert.False(t, eff.Clear)
	assert.Equal(t, []string{"a/"}, eff.Prefixes)
	assert.Equal(t, map[string][]byte{
		"b/1": []byte("3"),
		"a/3": []byte("4"),
	}, eff.Upserts)
	assert.Empty(t, eff.Deletes)
}

func Test_Merger_PrefixCoverage(t *testing.T) {
	m := model.NewMerger()
	m.Merge(model.DeletePrefixOp("a/b/"))
	m.Merge(model.DeletePrefixOp("c/"))
	m.Merge(model.DeletePrefixOp("a/"))
	m.Merge(model.DeletePrefixOp("a/x/"))

	eff := m.Effect()
	assert.ElementsMatch(t, []string{"c/", "a/"}, eff.Prefixes)
}

func Test_Merger_EffectResets(t *testing.T) {
	m := model.NewMerger()
	m.Merge(model.ClearOp())
	m.Merge(model.InsertOp("k", []byte("v")))
	_ = m.Effect()

	assert.True(t, m.IsEmpty())
	assert.Zero(t, m.Merged())

	m.Merge(model.DeleteOp("k"))
	eff := m.Effect()
	assert.False(t, eff.Clear)
	assert.Equal(t, []string{"k"}, eff.Deletes)
}

func Test_Merger_UpsertsAndDeletesDisjoint(t *testing.T) {
	ops := []model.Op{
		model.InsertOp("a", []byte("1")),
		model.DeleteOp("a"),
		model.InsertOp("b", []byte("2")),
		model.DeleteManyOp([]string{"b", "c"}),
		model.InsertManyOp(map[string][]byte{"c": []byte("3"), "d": []byte("4")}),
		model.DeleteOp("d"),
	}

	m := model.NewMerger()
	for _, op := range ops {
		m.Merge(op)
	}
	eff := m.Effect()

	for _, k := range eff.Deletes {
		_, found := eff.Upserts[k]
		assert.False(t, found, "key %s both upserted and deleted", k)
	}
	assert.Equal(t, map[string][]byte{"c": []byte("3")}, eff.Upserts)
	assert.Equal(t, []string{"a", "b", "d"}, eff.Deletes)
}
