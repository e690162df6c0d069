package inmemory_local_kv_pairs_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/horockey/akv/internal/model"
	"github.com/horockey/akv/internal/repository/local_kv_pairs/inmemory_local_kv_pairs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Get_Missing(t *testing.T) {
	repo := inmemory_local_kv_pairs.New(nil)

	val, found := repo.Get("nonexistent_key")
	assert.False(t, found)
	assert.Nil(t, val)
}

func Test_SetGet(t *testing.T) {
	repo := inmemory_local_kv_pairs.New(map[string][]byte{"seed": []byte("s")})

	repo.Set("k", []byte("v"))

	val, found := repo.Get("k")
	require.True(t, found)
	assert.Equal(t, []byte("v"), val)

	val, found = repo.Get("seed")
	require.True(t, found)
	assert.Equal(t, []byte("s"), val)
	assert.Equal(t, 2, repo.Len())
}

func Test_EmptyValue(t *testing.T) {
	repo := inmemory_local_kv_pairs.New(nil)

	repo.Set("empty", []byte{})

	val, found := repo.Get("empty")
	require.True(t, found)
	assert.Empty(t, val)
}

func Test_GetMany_OnlyPresent(t *testing.T) {
	repo := inmemory_local_kv_pairs.New(nil)
	repo.SetMany(map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	})

	res := repo.GetMany([]string{"a", "c"})
	assert.Equal(t, map[string][]byte{"a": []byte("1")}, res)
}

func Test_ScanAndGetBy(t *testing.T) {
	repo := inmemory_local_kv_pairs.New(map[string][]byte{
		"a/1": []byte("v1"),
		"a/2": []byte("v2"),
		"b/1": []byte("v3"),
	})

	assert.ElementsMatch(t, []string{"a/1", "a/2"}, repo.Scan(model.PrefixFilter("a/")))
	assert.ElementsMatch(t, []string{"a/1", "a/2", "b/1"}, repo.Scan(model.AllFilter))
	assert.Empty(t, repo.Scan(model.PrefixFilter("c/")))

	assert.Equal(t, map[string][]byte{"b/1": []byte("v3")}, repo.GetBy(model.PrefixFilter("b/")))
}

func Test_Deletes(t *testing.T) {
	repo := inmemory_local_kv_pairs.New(map[string][]byte{
		"a/1": []byte("v1"),
		"a/2": []byte("v2"),
		"b/1": []byte("v3"),
		"c":   []byte("v4"),
	})

	repo.Delete("c")
	_, found := repo.Get("c")
	assert.False(t, found)

	repo.DeleteBy(model.PrefixFilter("a/"))
	assert.Equal(t, []string{"b/1"}, repo.Scan(model.AllFilter))

	repo.DeleteMany([]string{"b/1", "missing"})
	assert.Zero(t, repo.Len())

	repo.Set("x", []byte("y"))
	repo.Clear()
	assert.Zero(t, repo.Len())
}

func Test_Metrics(t *testing.T) {
	repo := inmemory_local_kv_pairs.New(nil)
	assert.NotEmpty(t, repo.Metrics())
}

func Test_ConcurrentAccess(t *testing.T) {
	repo := inmemory_local_kv_pairs.New(nil)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				key := fmt.Sprintf("%d/%d", i, j)
				repo.Set(key, []byte(key))
				val, found := repo.Get(key)
				assert.True(t, found)
				assert.Equal(t, []byte(key), val)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, repo.Len())
}
