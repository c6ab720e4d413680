package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/weather-station-pipeline/internal/domain"
	"github.com/couchcryptid/weather-station-pipeline/internal/observability"
)

// Ingestor moves readings from the stream into the database in batches.
// The checkpoint for a message is only advanced after the batch that holds it
// is durable, so a crash between the two replays the batch instead of losing it.
type Ingestor struct {
	source       Source
	sink         Sink
	logger       *slog.Logger
	metrics      *observability.Metrics
	policy       BatchPolicy
	drainTimeout time.Duration
	ready        atomic.Bool
	batch        *batch
	backoff      *backoff
}

// NewIngestor creates an Ingestor. drainTimeout bounds the final flush on
// shutdown; zero abandons the in-flight batch for replay instead.
func NewIngestor(src Source, sink Sink, logger *slog.Logger, metrics *observability.Metrics, policy BatchPolicy, drainTimeout time.Duration) *Ingestor {
	return &Ingestor{
		source:       src,
		sink:         sink,
		logger:       logger,
		metrics:      metrics,
		policy:       policy,
		drainTimeout: drainTimeout,
		batch:        newBatch(policy.Size),
		backoff:      newBackoff(),
	}
}

// CheckReadiness returns nil once the ingestor has flushed at least one batch.
func (p *Ingestor) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no batch has been flushed yet")
	}
	return nil
}

// Run polls, accumulates, flushes and checkpoints until the context is cancelled.
func (p *Ingestor) Run(ctx context.Context) error {
	p.logger.Info("ingestion pipeline started",
		"batch_size", p.policy.Size,
		"batch_max_bytes", p.policy.MaxBytes,
		"batch_max_age", p.policy.MaxAge,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for ctx.Err() == nil {
		if !p.poll(ctx) {
			break
		}
	}

	p.drain(ctx)
	p.logger.Info("ingestion pipeline stopping", "reason", ctx.Err())
	return nil
}

// poll runs one poll cycle. Returns false if the pipeline should stop.
func (p *Ingestor) poll(ctx context.Context) bool {
	events, err := p.source.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("poll failed", "error", err)
		return p.backoff.wait(ctx)
	}
	p.backoff.reset()
	p.metrics.MessagesConsumed.Add(float64(len(events)))

	for _, raw := range events {
		p.accumulate(ctx, raw)
		if p.batch.full(p.policy) && !p.flush(ctx, "full") {
			return false
		}
	}

	if p.batch.expired(p.policy, domain.Now()) {
		return p.flush(ctx, "max_age")
	}
	return true
}

func (p *Ingestor) accumulate(ctx context.Context, raw domain.RawEvent) {
	reading, err := domain.DecodeReading(raw.Value)
	if err != nil {
		p.metrics.DecodeErrors.Inc()
		p.logger.Warn("decode failed, skipping message",
			"error", err,
			"topic", raw.Topic,
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
		if p.batch.empty() {
			// Nothing consumed before it is pending, so the checkpoint may pass it now.
			p.commit(ctx, raw)
			return
		}
		p.batch.skip(raw, domain.Now())
		return
	}
	p.batch.add(reading, raw, domain.Now())
}

// flush writes the current batch, retrying the same batch with backoff until
// it is durable, then checkpoints it. Returns false if the context was
// cancelled before the write succeeded; the batch is left for drain.
func (p *Ingestor) flush(ctx context.Context, reason string) bool {
	for {
		err := p.write(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return false
		}
		p.metrics.FlushErrors.Inc()
		p.logger.Error("flush failed, retrying batch", "error", err, "rows", len(p.batch.readings))
		if !p.backoff.wait(ctx) {
			return false
		}
	}
	p.backoff.reset()
	p.checkpoint(ctx, reason)
	return true
}

func (p *Ingestor) write(ctx context.Context) error {
	if len(p.batch.readings) == 0 {
		return nil
	}
	start := time.Now()
	if err := p.sink.Flush(ctx, p.batch.readings); err != nil {
		return err
	}
	p.metrics.FlushDuration.Observe(time.Since(start).Seconds())
	return nil
}

// checkpoint commits every message of a durably written batch and starts a new one.
func (p *Ingestor) checkpoint(ctx context.Context, reason string) {
	rows := len(p.batch.readings)
	skipped := len(p.batch.consumed) - rows

	p.commit(ctx, p.batch.consumed...)

	if rows > 0 {
		p.metrics.BatchesFlushed.Inc()
		p.metrics.RowsFlushed.Add(float64(rows))
		p.metrics.BatchSize.Observe(float64(rows))
		p.ready.Store(true)
	}
	p.logger.Info("batch flushed", "rows", rows, "skipped", skipped, "reason", reason)
	p.batch.reset()
}

// commit advances the checkpoint. A failure only risks a replay of rows that
// are already stored, so it is logged rather than retried.
func (p *Ingestor) commit(ctx context.Context, events ...domain.RawEvent) {
	if len(events) == 0 {
		return
	}
	if err := p.source.Commit(ctx, events...); err != nil {
		p.metrics.CommitErrors.Inc()
		p.logger.Warn("commit offsets failed, messages will be redelivered",
			"error", err,
			"messages", len(events),
		)
	}
}

// drain makes one bounded attempt to flush the in-flight batch on shutdown.
// The checkpoint is only committed if that flush succeeds.
func (p *Ingestor) drain(ctx context.Context) {
	if p.batch.empty() {
		return
	}
	if p.drainTimeout <= 0 {
		p.logger.Info("abandoning in-flight batch for replay", "rows", len(p.batch.readings))
		return
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.drainTimeout)
	defer cancel()

	if err := p.write(drainCtx); err != nil {
		p.logger.Warn("final flush failed, abandoning batch for replay",
			"error", err,
			"rows", len(p.batch.readings),
		)
		return
	}
	p.checkpoint(drainCtx, "shutdown")
}
