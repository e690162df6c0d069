package akv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/horockey/akv/internal/model"
	"github.com/horockey/akv/internal/processor"
	"github.com/horockey/akv/internal/repository/durable_kv_pairs"
	"github.com/horockey/akv/internal/repository/local_kv_pairs"
	"github.com/horockey/akv/internal/repository/local_kv_pairs/inmemory_local_kv_pairs"
	"github.com/horockey/go-toolbox/options"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Store keeps all data in memory and mirrors every change to a durable backend
// in background. Reads and writes never wait for durable I/O.
//
// Persistence is best-effort: backend failures are logged, never returned.
type Store struct {
	localRepo       local_kv_pairs.Repository
	durableRepo     durable_kv_pairs.Repository
	proc            *processor.Processor
	procRes         chan error
	cancelProc      context.CancelFunc
	shutdownTimeout time.Duration
	closeOnce       sync.Once
	closeErr        error
	Logger          zerolog.Logger

	// Keeps memory updates and enqueueing in the same order.
	writeMu sync.Mutex
}

// Open loads existing state from dir and starts persisting to it,
// one file per key.
func Open(dir string, opts ...Option) (*Store, error) {
	params := defaultOpenParams()
	if err := options.ApplyOptions(&params, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	backend, err := NewFileBackend(
		dir,
		params.logger.With().Str("subscope", "file_backend").Logger(),
		params.fileOpts...,
	)
	if err != nil {
		return nil, err
	}

	st, err := open(backend, params)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return st, nil
}

// OpenWithBackend loads existing state from backend and starts persisting to it.
// Store takes ownership of backend and closes it on Close.
func OpenWithBackend(backend Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.New("got nil backend")
	}

	params := defaultOpenParams()
	if err := options.ApplyOptions(&params, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	return open(backend, params)
}

func open(backend Backend, params openParams) (*Store, error) {
	data, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("loading existing state: %w", err)
	}

	st := Store{
		localRepo:       inmemory_local_kv_pairs.New(data),
		durableRepo:     backend,
		shutdownTimeout: params.shutdownTimeout,
		Logger:          params.logger,
	}

	st.proc = processor.New(
		backend,
		params.flushInterval,
		params.queueSize,
		params.logger.With().Str("subscope", "processor").Logger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	st.cancelProc = cancel
	st.procRes = make(chan error, 1)

	go func() {
		err := st.proc.Start(ctx)
		if err != nil {
			st.Logger.
				Error().
				Err(fmt.Errorf("running processor: %w", err)).
				Msg("persistence stopped, store keeps serving from memory")
		}
		st.procRes <- err
	}()

	st.Logger.Info().Int("keys", len(data)).Msg("store opened")

	return &st, nil
}

func (st *Store) Metrics() []prometheus.Collector {
	return slices.Concat(
		st.localRepo.Metrics(),
		st.proc.Metrics(),
		st.durableRepo.Metrics(),
	)
}

func (st *Store) Get(key Key) (Value, bool) {
	return st.localRepo.Get(key)
}

func (st *Store) GetMany(keys []Key) map[Key]Value {
	return st.localRepo.GetMany(keys)
}

func (st *Store) ScanKeys(filter Filter) []Key {
	return st.localRepo.Scan(filter)
}

func (st *Store) GetAll() map[Key]Value {
	return st.localRepo.GetBy(model.AllFilter)
}

func (st *Store) GetWithPrefix(prefix Key) map[Key]Value {
	return st.localRepo.GetBy(model.PrefixFilter(prefix))
}

func (st *Store) Set(key Key, value Value) {
	value = bytes.Clone(value)
	st.write(model.InsertOp(key, value), func() {
		st.localRepo.Set(key, value)
	})
}

func (st *Store) SetMany(data map[Key]Value) {
	cp := make(map[Key]Value, len(data))
	for k, v := range data {
		cp[k] = bytes.Clone(v)
	}
	st.write(model.InsertManyOp(cp), func() {
		st.localRepo.SetMany(cp)
	})
}

func (st *Store) Delete(key Key) {
	st.write(model.DeleteOp(key), func() {
		st.localRepo.Delete(key)
	})
}

func (st *Store) DeleteMany(keys []Key) {
	keys = slices.Clone(keys)
	st.write(model.DeleteManyOp(keys), func() {
		st.localRepo.DeleteMany(keys)
	})
}

func (st *Store) DeleteAll() {
	st.write(model.ClearOp(), func() {
		st.localRepo.Clear()
	})
}

func (st *Store) DeleteWithPrefix(prefix Key) {
	st.write(model.DeletePrefixOp(prefix), func() {
		st.localRepo.DeleteBy(model.PrefixFilter(prefix))
	})
}

// Flush waits until every write made before the call reaches durable storage.
// Returns backend error of the resulting flush, if any.
func (st *Store) Flush(ctx context.Context) error {
	if err := st.proc.Flush(ctx); err != nil {
		return fmt.Errorf("flushing: %w", err)
	}
	return nil
}

// Close stops persistence after draining everything queued so far,
// then closes the backend. Memory copy stays readable and writable,
// but further writes are not persisted.
//
// Close is bounded by the shutdown timeout, see WithShutdownTimeout.
// Returned error tells how many ops were dropped, if any.
func (st *Store) Close() error {
	st.closeOnce.Do(func() {
		st.closeErr = st.close()
	})
	return st.closeErr
}

func (st *Store) close() error {
	st.writeMu.Lock()
	st.proc.Stop()
	st.writeMu.Unlock()

	timer := time.NewTimer(st.shutdownTimeout)
	defer timer.Stop()

	var resErr error
	select {
	case err := <-st.procRes:
		if err != nil {
			resErr = fmt.Errorf("draining queue: %w", err)
		}

	case <-timer.C:
		st.Logger.Warn().Dur("timeout", st.shutdownTimeout).Msg("drain timed out, cancelling persistence worker")
		st.cancelProc()
		timer.Reset(st.shutdownTimeout)

		select {
		case err := <-st.procRes:
			// Nil here means the flush in progress completed and nothing was pending.
			if err != nil {
				resErr = fmt.Errorf("draining queue: %w", err)
			}

		case <-timer.C:
			st.Logger.Error().Msg("persistence worker is still flushing, backend will be closed once it stops")
			go func() {
				<-st.procRes
				if err := st.closeBackend(); err != nil {
					st.Logger.Error().Err(err).Send()
				}
			}()
			return fmt.Errorf("draining queue: %w", model.ErrDrainTimeout)
		}
	}
	st.cancelProc()

	return errors.Join(resErr, st.closeBackend())
}

func (st *Store) closeBackend() error {
	if err := st.durableRepo.Close(); err != nil {
		return fmt.Errorf("closing backend: %w", err)
	}

	st.Logger.Info().Msg("store closed")

	return nil
}

func (st *Store) write(op model.Op, apply func()) {
	st.writeMu.Lock()
	defer st.writeMu.Unlock()

	apply()

	if err := st.proc.Submit(op); err != nil {
		st.Logger.
			Warn().
			Err(fmt.Errorf("submitting %s op: %w", op.Kind, err)).
			Msg("write kept in memory only")
	}
}
