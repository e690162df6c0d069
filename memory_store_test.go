package akv_test

import (
	"testing"

	"github.com/horockey/akv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MemoryStore(t *testing.T) {
	seed := map[string][]byte{"seed": []byte("s")}
	ms := akv.NewMemoryStore(seed)
	seed["seed"][0] = 'x'

	val, found := ms.Get("seed")
	require.True(t, found)
	assert.Equal(t, []byte("s"), val)

	ms.SetMany(map[string][]byte{
		"a/1": []byte("v1"),
		"a/2": []byte("v2"),
		"b/1": []byte("v3"),
	})
	assert.Len(t, ms.GetWithPrefix("a/"), 2)
	assert.ElementsMatch(t, []string{"a/1", "a/2", "b/1", "seed"}, ms.ScanKeys(akv.PrefixFilter("")))

	ms.DeleteWithPrefix("a/")
	ms.Delete("seed")
	assert.Equal(t, map[string][]byte{"b/1": []byte("v3")}, ms.GetAll())

	ms.Set("c", []byte("v4"))
	ms.DeleteMany([]string{"b/1"})
	assert.Equal(t, map[string][]byte{"c": []byte("v4")}, ms.GetMany([]string{"b/1", "c"}))

	ms.DeleteAll()
	assert.Empty(t, ms.GetAll())
	assert.NotEmpty(t, ms.Metrics())
}
