package badger_durable_kv_pairs

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/horockey/akv/internal/repository/durable_kv_pairs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var _ durable_kv_pairs.Repository = &badgerDurableKVPairs{}

// Badger rejects empty keys, so every unit id carries this prefix.
const unitPrefix = "kv/"

const batchSize = 1000

type badgerDurableKVPairs struct {
	db      *badger.DB
	logger  zerolog.Logger
	metrics *durable_kv_pairs.Metrics
}

// New opens badger db in dir. Repo owns the db and closes it on Close.
func New(dir string, logger zerolog.Logger) (*badgerDurableKVPairs, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = badgerLogger{l: logger.With().Str("subscope", "badger").Logger()}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}

	return &badgerDurableKVPairs{
		db:      db,
		logger:  logger,
		metrics: durable_kv_pairs.NewMetrics("badger_durable_kv_pairs"),
	}, nil
}

func (repo *badgerDurableKVPairs) Metrics() []prometheus.Collector {
	return repo.metrics.List()
}

func (repo *badgerDurableKVPairs) Load() (res map[string][]byte, resErr error) {
	defer repo.metrics.Observe(time.Now(), &resErr)

	res = map[string][]byte{}
	if err := repo.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(unitPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(bytes.TrimPrefix(item.Key(), prefix))

			val, err := item.ValueCopy(nil)
			if err != nil {
				repo.metrics.UnitsSkippedCnt.Inc()
				repo.logger.
					Warn().
					Err(fmt.Errorf("getting value: %w", err)).
					Str("key", key).
					Send()
				continue
			}

			res[key] = val
			repo.metrics.UnitsLoadedCnt.Inc()
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("performing view txn: %w", err)
	}

	return res, nil
}

func (repo *badgerDurableKVPairs) ApplyClear() (resErr error) {
	defer repo.metrics.Observe(time.Now(), &resErr)

	if err := repo.db.DropAll(); err != nil {
		return fmt.Errorf("dropping all: %w", err)
	}

	return nil
}

func (repo *badgerDurableKVPairs) ApplyDeletePrefix(prefix string) (resErr error) {
	defer repo.metrics.Observe(time.Now(), &resErr)

	keys := []string{}
	if err := repo.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := unitID(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(bytes.TrimPrefix(it.Item().Key(), []byte(unitPrefix))))
		}
		return nil
	}); err != nil {
		return fmt.Errorf("performing view txn: %w", err)
	}

	return repo.deleteKeys(keys)
}

// Upserts go in batched txns. When a batch fails its keys are retried one by one,
// so a single bad key does not lose the rest.
func (repo *badgerDurableKVPairs) ApplyUpserts(data map[string][]byte) (resErr error) {
	defer repo.metrics.Observe(time.Now(), &resErr)

	errs := []error{}
	for _, chunk := range lo.Chunk(lo.Keys(data), batchSize) {
		err := repo.db.Update(func(txn *badger.Txn) error {
			for _, k := range chunk {
				if err := txn.Set(unitID(k), data[k]); err != nil {
					return fmt.Errorf("setting %q: %w", k, err)
				}
			}
			return nil
		})
		if err == nil {
			repo.metrics.UnitsWrittenCnt.Add(float64(len(chunk)))
			continue
		}

		repo.logger.
			Warn().
			Err(fmt.Errorf("performing upd txn: %w", err)).
			Int("batch_size", len(chunk)).
			Msg("retrying batch per key")

		for _, k := range chunk {
			if err := repo.db.Update(func(txn *badger.Txn) error {
				return txn.Set(unitID(k), data[k])
			}); err != nil {
				errs = append(errs, fmt.Errorf("setting %q: %w", k, err))
				continue
			}
			repo.metrics.UnitsWrittenCnt.Inc()
		}
	}

	return errors.Join(errs...)
}

func (repo *badgerDurableKVPairs) ApplyDeletes(keys []string) (resErr error) {
	defer repo.metrics.Observe(time.Now(), &resErr)

	return repo.deleteKeys(keys)
}

func (repo *badgerDurableKVPairs) Close() error {
	if err := repo.db.Close(); err != nil {
		return fmt.Errorf("closing badger db: %w", err)
	}
	return nil
}

func (repo *badgerDurableKVPairs) deleteKeys(keys []string) error {
	errs := []error{}
	for _, chunk := range lo.Chunk(keys, batchSize) {
		if err := repo.db.Update(func(txn *badger.Txn) error {
			for _, k := range chunk {
				if err := txn.Delete(unitID(k)); err != nil {
					return fmt.Errorf("deleting %q: %w", k, err)
				}
			}
			return nil
		}); err != nil {
			errs = append(errs, fmt.Errorf("performing del txn: %w", err))
			continue
		}
		repo.metrics.UnitsDeletedCnt.Add(float64(len(chunk)))
	}

	return errors.Join(errs...)
}

func unitID(key string) []byte {
	return []byte(unitPrefix + key)
}
