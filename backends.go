package akv

import (
	"fmt"
	"os"

	"github.com/horockey/akv/internal/repository/durable_kv_pairs/badger_durable_kv_pairs"
	"github.com/horockey/akv/internal/repository/durable_kv_pairs/bolt_durable_kv_pairs"
	"github.com/horockey/akv/internal/repository/durable_kv_pairs/file_durable_kv_pairs"
	"github.com/rs/zerolog"
)

type FileBackendOption = file_durable_kv_pairs.Option

// NewFileBackend stores every key as a separate file in dir.
// File names are URL-escaped keys, see EncodeFileName.
func NewFileBackend(dir string, logger zerolog.Logger, opts ...FileBackendOption) (Backend, error) {
	repo, err := file_durable_kv_pairs.New(dir, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating file backend: %w", err)
	}
	return repo, nil
}

// NewBadgerBackend stores every key as a separate badger entry.
func NewBadgerBackend(dir string, logger zerolog.Logger) (Backend, error) {
	repo, err := badger_durable_kv_pairs.New(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("creating badger backend: %w", err)
	}
	return repo, nil
}

// NewBoltBackend stores every key as a separate record of a bolt db file at path.
func NewBoltBackend(path string, logger zerolog.Logger) (Backend, error) {
	repo, err := bolt_durable_kv_pairs.New(path, logger)
	if err != nil {
		return nil, fmt.Errorf("creating bolt backend: %w", err)
	}
	return repo, nil
}

// Enables fsync of every written file.
// Default is false.
func WithSync(sync bool) FileBackendOption {
	return file_durable_kv_pairs.WithSync(sync)
}

// Sets permissions of created files.
// Default is 0644.
func WithFileMode(mode os.FileMode) FileBackendOption {
	return file_durable_kv_pairs.WithFileMode(mode)
}

// Sets count of files written in parallel during a flush.
// Default is 8.
func WithWriteWorkers(n int) FileBackendOption {
	return file_durable_kv_pairs.WithWriteWorkers(n)
}

// EncodeFileName returns name of the file holding key in file backend.
func EncodeFileName(key Key) string {
	return file_durable_kv_pairs.EncodeKey(key)
}

// DecodeFileName is the inverse of EncodeFileName.
// Reports false for names that are not stored units, and for hashed names
// of long keys, whose key is kept inside the file.
func DecodeFileName(name string) (Key, bool) {
	return file_durable_kv_pairs.DecodeKey(name)
}
