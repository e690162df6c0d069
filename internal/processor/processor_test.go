package processor_test

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/horockey/akv/internal/model"
	"github.com/horockey/akv/internal/processor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepo keeps units in memory and counts every call.
type mockRepo struct {
	mu      sync.Mutex
	units   map[string][]byte
	calls   int
	failKey string
}

func newMockRepo() *mockRepo {
	return &mockRepo{units: map[string][]byte{}}
}

func (r *mockRepo) Metrics() []prometheus.Collector { return nil }

func (r *mockRepo) Load() (map[string][]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.units), nil
}

func (r *mockRepo) ApplyClear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.units = map[string][]byte{}
	return nil
}

func (r *mockRepo) ApplyDeletePrefix(prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for k := range r.units {
		if strings.HasPrefix(k, prefix) {
			delete(r.units, k)
		}
	}
	return nil
}

func (r *mockRepo) ApplyUpserts(data map[string][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	var err error
	for k, v := range data {
		if k == r.failKey {
			err = errors.New("simulated write failure")
			continue
		}
		r.units[k] = v
	}
	return err
}

func (r *mockRepo) ApplyDeletes(keys []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, k := range keys {
		delete(r.units, k)
	}
	return nil
}

func (r *mockRepo) Close() error { return nil }

func (r *mockRepo) callsCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *mockRepo) snapshot() map[string][]byte {
	units, _ := r.Load()
	return units
}

func startProcessor(t *testing.T, repo *mockRepo, interval time.Duration) (*processor.Processor, chan error) {
	t.Helper()

	pr := processor.New(repo, interval, 16, zerolog.Nop())
	errCh := make(chan error, 1)
	go func() {
		errCh <- pr.Start(context.Background())
	}()
	t.Cleanup(pr.Stop)

	return pr, errCh
}

func Test_Flush_AppliesMergedOps(t *testing.T) {
	repo := newMockRepo()
	pr, _ := startProcessor(t, repo, time.Hour)

	require.NoError(t, pr.Submit(model.InsertOp("k", []byte("a"))))
	require.NoError(t, pr.Submit(model.InsertOp("k", []byte("b"))))
	require.NoError(t, pr.Submit(model.DeleteOp("k")))
	require.NoError(t, pr.Submit(model.InsertOp("k", []byte("c"))))

	require.NoError(t, pr.Flush(context.Background()))
	assert.Equal(t, map[string][]byte{"k": []byte("c")}, repo.snapshot())
	// One upsert call only, nothing to clear, prefix-delete or delete.
	assert.Equal(t, 1, repo.callsCount())
}

func Test_Tick_Flushes(t *testing.T) {
	repo := newMockRepo()
	pr, _ := startProcessor(t, repo, 10*time.Millisecond)

	require.NoError(t, pr.Submit(model.InsertManyOp(map[string][]byte{
		"a/1": []byte("v1"),
		"a/2": []byte("v2"),
		"b/1": []byte("v3"),
	})))
	require.NoError(t, pr.Submit(model.DeletePrefixOp("a/")))

	require.Eventually(t, func() bool {
		units := repo.snapshot()
		return len(units) == 1 && string(units["b/1"]) == "v3"
	}, time.Second, 5*time.Millisecond)
}

func Test_IdleTicks_NoIO(t *testing.T) {
	repo := newMockRepo()
	startProcessor(t, repo, time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, repo.callsCount())
}

func Test_FlushFailure_IsLoggedAndWorkerContinues(t *testing.T) {
	repo := newMockRepo()
	repo.failKey = "bad"
	pr, _ := startProcessor(t, repo, time.Hour)

	require.NoError(t, pr.Submit(model.InsertManyOp(map[string][]byte{
		"bad":  []byte("x"),
		"good": []byte("y"),
	})))
	assert.Error(t, pr.Flush(context.Background()))
	assert.Equal(t, map[string][]byte{"good": []byte("y")}, repo.snapshot())

	require.NoError(t, pr.Submit(model.InsertOp("next", []byte("z"))))
	require.NoError(t, pr.Flush(context.Background()))
	assert.Equal(t, []byte("z"), repo.snapshot()["next"])
}

func Test_Stop_DrainsQueue(t *testing.T) {
	repo := newMockRepo()
	pr, errCh := startProcessor(t, repo, time.Hour)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, pr.Submit(model.InsertOp(k, []byte(k))))
	}
	pr.Stop()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	assert.Len(t, repo.snapshot(), 3)
	assert.ErrorIs(t, pr.Submit(model.ClearOp()), model.ErrClosed)
	assert.ErrorIs(t, pr.Flush(context.Background()), model.ErrClosed)

	// Second stop is a no-op.
	pr.Stop()
}

func Test_CtxCancel_StopsAbruptly(t *testing.T) {
	repo := newMockRepo()
	pr := processor.New(repo, time.Hour, 16, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- pr.Start(ctx)
	}()

	require.NoError(t, pr.Submit(model.InsertOp("k", []byte("v"))))
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	<-pr.Done()
	assert.ErrorIs(t, pr.Submit(model.InsertOp("k2", nil)), model.ErrWorkerStopped)
}

func Test_CtxCancel_NothingPending(t *testing.T) {
	repo := newMockRepo()
	pr := processor.New(repo, time.Hour, 16, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- pr.Start(ctx)
	}()

	require.NoError(t, pr.Submit(model.InsertOp("k", []byte("v"))))
	require.NoError(t, pr.Flush(context.Background()))
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, []byte("v"), repo.snapshot()["k"])
}

func Test_Metrics(t *testing.T) {
	pr := processor.New(newMockRepo(), time.Second, 1, zerolog.Nop())
	assert.Len(t, pr.Metrics(), 6)
}
