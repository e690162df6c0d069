package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/horockey/akv/internal/model"
	"github.com/horockey/akv/internal/repository/durable_kv_pairs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type request struct {
	op model.Op
	// Set for flush barriers only.
	ack chan error
}

// Processor is the single writer of a durable repository.
// It merges submitted ops and flushes the net effect on every tick.
type Processor struct {
	durableStorage durable_kv_pairs.Repository
	merger         *model.Merger
	interval       time.Duration
	inbound        chan request
	done           chan struct{}
	mu             sync.RWMutex
	closed         bool
	Logger         zerolog.Logger
	metrics        *metrics

	// Ops of flushes cut short by done ctx.
	interrupted int
}

func New(
	durableStorage durable_kv_pairs.Repository,
	interval time.Duration,
	queueSize int,
	logger zerolog.Logger,
) *Processor {
	pr := Processor{
		durableStorage: durableStorage,
		merger:         model.NewMerger(),
		interval:       interval,
		inbound:        make(chan request, queueSize),
		done:           make(chan struct{}),
		Logger:         logger,
	}
	pr.metrics = newMetrics(func() int { return len(pr.inbound) })

	return &pr
}

func (pr *Processor) Metrics() []prometheus.Collector {
	return pr.metrics.list()
}

// Submit enqueues op for persistence.
// Blocks only while the queue is full.
func (pr *Processor) Submit(op model.Op) error {
	return pr.enqueue(request{op: op})
}

// Flush waits until every op submitted before the call is applied to durable storage.
func (pr *Processor) Flush(ctx context.Context) error {
	ack := make(chan error, 1)
	if err := pr.enqueue(request{ack: ack}); err != nil {
		return err
	}

	select {
	case err := <-ack:
		return err
	case <-pr.done:
		return model.ErrWorkerStopped
	case <-ctx.Done():
		return fmt.Errorf("waiting for flush: %w", ctx.Err())
	}
}

// Stop closes the queue. Start drains what is left, flushes it and returns.
func (pr *Processor) Stop() {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if pr.closed {
		return
	}
	pr.closed = true
	close(pr.inbound)
}

// Done is closed when Start returns.
func (pr *Processor) Done() <-chan struct{} {
	return pr.done
}

// Start runs the worker loop until Stop is called (graceful, queue is drained)
// or ctx is done (abrupt, pending ops are dropped). Must be called once.
// Returns error only if some ops were dropped.
func (pr *Processor) Start(ctx context.Context) error {
	defer close(pr.done)

	ticker := time.NewTicker(pr.interval)
	defer ticker.Stop()

	pr.Logger.Info().Dur("interval", pr.interval).Msg("persistence worker started")

	for {
		select {
		case req, ok := <-pr.inbound:
			if !ok {
				if ctx.Err() == nil {
					_ = pr.flush(ctx)
				}
				if ctx.Err() != nil {
					return pr.abort(ctx)
				}
				pr.Logger.Info().Msg("persistence worker stopped: queue closed")
				return nil
			}

			if req.ack != nil {
				req.ack <- pr.flush(ctx)
				continue
			}
			pr.merger.Merge(req.op)

		case <-ticker.C:
			_ = pr.flush(ctx)

		case <-ctx.Done():
			return pr.abort(ctx)
		}
	}
}

func (pr *Processor) abort(ctx context.Context) error {
	dropped := pr.interrupted + pr.merger.Merged() + len(pr.inbound)
	if dropped == 0 {
		pr.Logger.Info().Msg("persistence worker stopped: context done, nothing pending")
		return nil
	}

	pr.metrics.droppedOpsCnt.Add(float64(dropped))
	pr.Logger.
		Error().
		Int("dropped_ops", dropped).
		Msg("persistence worker stopped abruptly")

	return fmt.Errorf("dropping %d pending ops: %w", dropped, ctx.Err())
}

func (pr *Processor) enqueue(req request) error {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	if pr.closed {
		return model.ErrClosed
	}

	select {
	case <-pr.done:
		return model.ErrWorkerStopped
	default:
	}

	select {
	case pr.inbound <- req:
		return nil
	case <-pr.done:
		return model.ErrWorkerStopped
	}
}

// flush applies everything merged so far. Idle cycles do no I/O.
func (pr *Processor) flush(ctx context.Context) error {
	if pr.merger.IsEmpty() {
		return nil
	}

	merged := pr.merger.Merged()
	eff := pr.merger.Effect()

	defer func(ts time.Time) {
		pr.metrics.flushTimeHist.Observe(float64(time.Since(ts)))
	}(time.Now())

	pr.metrics.flushesCnt.Inc()
	pr.metrics.mergedOpsCnt.Add(float64(merged))

	if err := durable_kv_pairs.Apply(ctx, pr.durableStorage, eff); err != nil {
		pr.metrics.errFlushesCnt.Inc()
		if ctx.Err() != nil {
			pr.interrupted += merged
		}
		pr.Logger.
			Error().
			Err(fmt.Errorf("applying merged ops: %w", err)).
			Int("merged_ops", merged).
			Send()
		return err
	}

	pr.Logger.
		Debug().
		Int("merged_ops", merged).
		Bool("clear", eff.Clear).
		Int("prefixes", len(eff.Prefixes)).
		Int("upserts", len(eff.Upserts)).
		Int("deletes", len(eff.Deletes)).
		Msg("flushed")

	return nil
}
