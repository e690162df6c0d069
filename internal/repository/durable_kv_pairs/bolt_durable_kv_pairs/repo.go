package bolt_durable_kv_pairs

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/horockey/akv/internal/repository/durable_kv_pairs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	bolt "go.etcd.io/bbolt"
)

var _ durable_kv_pairs.Repository = &boltDurableKVPairs{}

var bucket = []byte("kv")

// Bolt rejects empty keys, so every unit id carries this prefix.
const unitPrefix = "kv/"

type boltDurableKVPairs struct {
	db      *bolt.DB
	logger  zerolog.Logger
	metrics *durable_kv_pairs.Metrics
}

// New opens or creates bolt db file at path.
func New(path string, logger zerolog.Logger) (*boltDurableKVPairs, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second}) //nolint: mnd
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &boltDurableKVPairs{
		db:      db,
		logger:  logger,
		metrics: durable_kv_pairs.NewMetrics("bolt_durable_kv_pairs"),
	}, nil
}

func (repo *boltDurableKVPairs) Metrics() []prometheus.Collector {
	return repo.metrics.List()
}

func (repo *boltDurableKVPairs) Load() (res map[string][]byte, resErr error) {
	defer repo.metrics.Observe(time.Now(), &resErr)

	res = map[string][]byte{}
	if err := repo.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			if !bytes.HasPrefix(k, []byte(unitPrefix)) {
				repo.metrics.UnitsSkippedCnt.Inc()
				return nil
			}
			res[string(k[len(unitPrefix):])] = bytes.Clone(v)
			repo.metrics.UnitsLoadedCnt.Inc()
			return nil
		})
	}); err != nil {
		return nil, fmt.Errorf("performing view txn: %w", err)
	}

	return res, nil
}

func (repo *boltDurableKVPairs) ApplyClear() (resErr error) {
	defer repo.metrics.Observe(time.Now(), &resErr)

	if err := repo.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucket); err != nil {
			return fmt.Errorf("deleting bucket: %w", err)
		}
		if _, err := tx.CreateBucket(bucket); err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("performing upd txn: %w", err)
	}

	return nil
}

func (repo *boltDurableKVPairs) ApplyDeletePrefix(prefix string) (resErr error) {
	defer repo.metrics.Observe(time.Now(), &resErr)

	deleted := 0
	if err := repo.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		p := unitID(prefix)

		// Deleting while iterating a cursor skips entries, so collect first.
		ids := [][]byte{}
		c := b.Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			ids = append(ids, bytes.Clone(k))
		}

		for _, id := range ids {
			if err := b.Delete(id); err != nil {
				return fmt.Errorf("deleting %q: %w", id, err)
			}
		}
		deleted = len(ids)
		return nil
	}); err != nil {
		return fmt.Errorf("performing upd txn: %w", err)
	}

	repo.metrics.UnitsDeletedCnt.Add(float64(deleted))
	return nil
}

// All upserts go in one txn. If it fails, keys are retried one by one,
// so a single bad key does not lose the rest.
func (repo *boltDurableKVPairs) ApplyUpserts(data map[string][]byte) (resErr error) {
	defer repo.metrics.Observe(time.Now(), &resErr)

	err := repo.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		for k, v := range data {
			if err := b.Put(unitID(k), v); err != nil {
				return fmt.Errorf("putting %q: %w", k, err)
			}
		}
		return nil
	})
	if err == nil {
		repo.metrics.UnitsWrittenCnt.Add(float64(len(data)))
		return nil
	}

	repo.logger.
		Warn().
		Err(fmt.Errorf("performing upd txn: %w", err)).
		Int("batch_size", len(data)).
		Msg("retrying batch per key")

	errs := []error{}
	for _, k := range lo.Keys(data) {
		if err := repo.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucket).Put(unitID(k), data[k])
		}); err != nil {
			errs = append(errs, fmt.Errorf("putting %q: %w", k, err))
			continue
		}
		repo.metrics.UnitsWrittenCnt.Inc()
	}

	return errors.Join(errs...)
}

func (repo *boltDurableKVPairs) ApplyDeletes(keys []string) (resErr error) {
	defer repo.metrics.Observe(time.Now(), &resErr)

	deleted := 0
	if err := repo.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		for _, k := range keys {
			id := unitID(k)
			if b.Get(id) == nil {
				continue
			}
			if err := b.Delete(id); err != nil {
				return fmt.Errorf("deleting %q: %w", k, err)
			}
			deleted++
		}
		return nil
	}); err != nil {
		return fmt.Errorf("performing del txn: %w", err)
	}

	repo.metrics.UnitsDeletedCnt.Add(float64(deleted))
	return nil
}

func (repo *boltDurableKVPairs) Close() error {
	if err := repo.db.Close(); err != nil {
		return fmt.Errorf("closing bolt db: %w", err)
	}
	return nil
}

func unitID(key string) []byte {
	return []byte(unitPrefix + key)
}
