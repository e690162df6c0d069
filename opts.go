package akv

import (
	"fmt"
	"os"
	"time"

	"github.com/horockey/akv/internal/repository/durable_kv_pairs/file_durable_kv_pairs"
	"github.com/horockey/go-toolbox/options"
	"github.com/rs/zerolog"
)

type openParams struct {
	flushInterval   time.Duration
	queueSize       int
	shutdownTimeout time.Duration
	logger          zerolog.Logger
	fileOpts        []file_durable_kv_pairs.Option
}

func defaultOpenParams() openParams {
	return openParams{
		flushInterval:   time.Millisecond * 100, //nolint: mnd
		queueSize:       4096,                   //nolint: mnd
		shutdownTimeout: time.Second * 10,       //nolint: mnd
		logger: zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().
			Timestamp().
			Str("scope", "akv").
			Logger(),
	}
}

type Option = options.Option[openParams]

// Sets custom interval between flushes to durable storage.
// Default is 100ms.
func WithFlushInterval(interval time.Duration) Option {
	return func(target *openParams) error {
		if interval <= 0 {
			return fmt.Errorf("flush interval must be positive, got: %s", interval.String())
		}
		target.flushInterval = interval
		return nil
	}
}

// Sets custom capacity of persistence queue.
// Writers wait while it is full.
// Default is 4096.
func WithQueueSize(size int) Option {
	return func(target *openParams) error {
		if size <= 0 {
			return fmt.Errorf("queue size must be positive, got: %d", size)
		}
		target.queueSize = size
		return nil
	}
}

// Sets custom time given to the worker to drain its queue on Close.
// When exceeded, the worker is cancelled and pending ops are dropped.
// A flush already in progress gets the same time again to finish,
// after that Close returns ErrDrainTimeout without waiting for it.
// Default is 10s.
func WithShutdownTimeout(to time.Duration) Option {
	return func(target *openParams) error {
		if to <= 0 {
			return fmt.Errorf("shutdown timeout must be positive, got: %s", to.String())
		}
		target.shutdownTimeout = to
		return nil
	}
}

// Sets custom logger.
// Default is stdout logger.
func WithLogger(l zerolog.Logger) Option {
	return func(target *openParams) error {
		target.logger = l
		return nil
	}
}

// Sets options of file backend created by Open.
// Ignored by OpenWithBackend.
func WithFileBackendOpts(opts ...FileBackendOption) Option {
	return func(target *openParams) error {
		target.fileOpts = append(target.fileOpts, opts...)
		return nil
	}
}
