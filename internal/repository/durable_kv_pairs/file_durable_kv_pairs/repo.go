package file_durable_kv_pairs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/horockey/akv/internal/repository/durable_kv_pairs"
	"github.com/horockey/go-toolbox/options"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var _ durable_kv_pairs.Repository = &fileDurableKVPairs{}

// Temp files start with a dot, so DecodeKey never accepts them.
const tmpPrefix = ".akv-tmp-"

type fileDurableKVPairs struct {
	dir     string
	params  params
	pool    *ants.Pool
	logger  zerolog.Logger
	metrics *durable_kv_pairs.Metrics
}

// New creates dir if needed and returns repo storing one file per key in it.
func New(
	dir string,
	logger zerolog.Logger,
	opts ...Option,
) (*fileDurableKVPairs, error) {
	p := defaultParams()
	if err := options.ApplyOptions(&p, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint: mnd
		return nil, fmt.Errorf("creating dir %s: %w", dir, err)
	}

	repo := fileDurableKVPairs{
		dir:     dir,
		params:  p,
		logger:  logger,
		metrics: durable_kv_pairs.NewMetrics("file_durable_kv_pairs"),
	}

	pool, err := ants.NewPool(p.writeWorkers, ants.WithPanicHandler(func(v any) {
		repo.logger.
			Error().
			Err(fmt.Errorf("file write panic: %v", v)).
			Send()
	}))
	if err != nil {
		return nil, fmt.Errorf("creating write pool: %w", err)
	}
	repo.pool = pool

	return &repo, nil
}

func (repo *fileDurableKVPairs) Metrics() []prometheus.Collector {
	return repo.metrics.List()
}

func (repo *fileDurableKVPairs) Load() (res map[string][]byte, resErr error) {
	defer repo.metrics.Observe(time.Now(), &resErr)

	entries, err := os.ReadDir(repo.dir)
	if err != nil {
		return nil, fmt.Errorf("reading dir %s: %w", repo.dir, err)
	}

	res = map[string][]byte{}
	for _, entry := range entries {
		name := entry.Name()

		if strings.HasPrefix(name, tmpPrefix) {
			// Leftover of an interrupted write.
			if err := os.Remove(filepath.Join(repo.dir, name)); err != nil {
				repo.logger.
					Warn().
					Err(fmt.Errorf("removing temp file: %w", err)).
					Str("name", name).
					Send()
			}
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}

		if _, ok := DecodeKey(name); !ok && !IsHashedName(name) {
			repo.metrics.UnitsSkippedCnt.Inc()
			repo.logger.Debug().Str("name", name).Msg("skipping foreign file")
			continue
		}

		data, err := os.ReadFile(filepath.Join(repo.dir, name))
		if err != nil {
			repo.metrics.UnitsSkippedCnt.Inc()
			repo.logger.
				Warn().
				Err(fmt.Errorf("reading unit: %w", err)).
				Str("name", name).
				Send()
			continue
		}

		key, value, ok := decodeUnit(name, data)
		if !ok {
			repo.metrics.UnitsSkippedCnt.Inc()
			repo.logger.Warn().Str("name", name).Msg("skipping unit with malformed key header")
			continue
		}

		res[key] = value
		repo.metrics.UnitsLoadedCnt.Inc()
	}

	return res, nil
}

func (repo *fileDurableKVPairs) ApplyClear() (resErr error) {
	defer repo.metrics.Observe(time.Now(), &resErr)

	return repo.removeMatching(func(string) bool { return true })
}

func (repo *fileDurableKVPairs) ApplyDeletePrefix(prefix string) (resErr error) {
	defer repo.metrics.Observe(time.Now(), &resErr)

	return repo.removeMatching(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func (repo *fileDurableKVPairs) ApplyUpserts(data map[string][]byte) (resErr error) {
	defer repo.metrics.Observe(time.Now(), &resErr)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	addErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}

	for key, value := range data {
		wg.Add(1)
		err := repo.pool.Submit(func() {
			defer wg.Done()
			if err := repo.writeUnit(key, value); err != nil {
				addErr(fmt.Errorf("writing %q: %w", key, err))
				return
			}
			repo.metrics.UnitsWrittenCnt.Inc()
		})
		if err != nil {
			wg.Done()
			addErr(fmt.Errorf("submitting write of %q: %w", key, err))
		}
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (repo *fileDurableKVPairs) ApplyDeletes(keys []string) (resErr error) {
	defer repo.metrics.Observe(time.Now(), &resErr)

	errs := []error{}
	for _, key := range keys {
		if err := repo.removeUnit(EncodeKey(key)); err != nil {
			errs = append(errs, fmt.Errorf("removing %q: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (repo *fileDurableKVPairs) Close() error {
	repo.pool.Release()
	return nil
}

// writeUnit replaces the unit atomically: data goes to a temp file renamed in place.
func (repo *fileDurableKVPairs) writeUnit(key string, value []byte) (resErr error) {
	tmpPath := filepath.Join(repo.dir, tmpPrefix+uuid.NewString())
	defer func() {
		if resErr != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, repo.params.fileMode)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := f.Write(encodeUnit(key, value)); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}

	if repo.params.sync {
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return fmt.Errorf("syncing temp file: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(repo.dir, EncodeKey(key))); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

func (repo *fileDurableKVPairs) removeUnit(name string) error {
	err := os.Remove(filepath.Join(repo.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err == nil {
		repo.metrics.UnitsDeletedCnt.Inc()
	}
	return nil
}

func (repo *fileDurableKVPairs) removeMatching(match func(key string) bool) error {
	entries, err := os.ReadDir(repo.dir)
	if err != nil {
		return fmt.Errorf("reading dir %s: %w", repo.dir, err)
	}

	errs := []error{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		key, ok := repo.unitKey(entry.Name())
		if !ok || !match(key) {
			continue
		}

		if err := repo.removeUnit(entry.Name()); err != nil {
			errs = append(errs, fmt.Errorf("removing %q: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

// unitKey returns key of the unit stored as file name.
// Hashed units are read to get it.
func (repo *fileDurableKVPairs) unitKey(name string) (string, bool) {
	if !IsHashedName(name) {
		return DecodeKey(name)
	}

	data, err := os.ReadFile(filepath.Join(repo.dir, name))
	if err != nil {
		repo.logger.
			Warn().
			Err(fmt.Errorf("reading unit: %w", err)).
			Str("name", name).
			Send()
		return "", false
	}

	key, _, ok := decodeUnit(name, data)
	return key, ok
}
