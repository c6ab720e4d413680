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

// commitTimeout bounds the checkpoint of already-processed events when the
// run context has been cancelled.
const commitTimeout = 5 * time.Second

// AlertPipeline republishes a rain alert for every reading above the humidity
// threshold. Events are handled one at a time; nothing is buffered across them.
type AlertPipeline struct {
	source    Source
	publisher AlertPublisher
	threshold int
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	backoff   *backoff
}

// NewAlertPipeline creates an AlertPipeline emitting alerts for humidity > threshold.
func NewAlertPipeline(src Source, pub AlertPublisher, threshold int, logger *slog.Logger, metrics *observability.Metrics) *AlertPipeline {
	return &AlertPipeline{
		source:    src,
		publisher: pub,
		threshold: threshold,
		logger:    logger,
		metrics:   metrics,
		backoff:   newBackoff(),
	}
}

// CheckReadiness returns nil once at least one poll has been fully processed.
func (p *AlertPipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("alert pipeline has not processed any messages yet")
	}
	return nil
}

// Run executes the filter-transform-publish loop until the context is cancelled.
func (p *AlertPipeline) Run(ctx context.Context) error {
	p.logger.Info("alert pipeline started", "humidity_threshold", p.threshold)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for ctx.Err() == nil {
		if !p.poll(ctx) {
			break
		}
	}

	p.logger.Info("alert pipeline stopping", "reason", ctx.Err())
	return nil
}

func (p *AlertPipeline) poll(ctx context.Context) bool {
	events, err := p.source.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("poll failed", "error", err)
		return p.backoff.wait(ctx)
	}
	p.backoff.reset()
	if len(events) == 0 {
		return true
	}
	p.metrics.MessagesConsumed.Add(float64(len(events)))

	processed := 0
	for _, raw := range events {
		if !p.process(ctx, raw) {
			break
		}
		processed++
	}

	p.commit(ctx, events[:processed])
	if processed == len(events) {
		p.ready.Store(true)
	}
	return ctx.Err() == nil
}

// process handles a single event. It returns false only when the context was
// cancelled before the event could be fully handled.
func (p *AlertPipeline) process(ctx context.Context, raw domain.RawEvent) bool {
	if ctx.Err() != nil {
		return false
	}

	reading, err := domain.DecodeReading(raw.Value)
	if err != nil {
		p.metrics.DecodeErrors.Inc()
		p.logger.Debug("decode failed, no alert",
			"error", err,
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
		return true
	}

	alert, ok := domain.DetectRain(reading, p.threshold)
	if !ok {
		return true
	}

	if err := p.publisher.PublishAlert(ctx, alert); err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.metrics.AlertPublishErrors.Inc()
		p.logger.Warn("publish alert failed, skipping",
			"error", err,
			"station_id", alert.StationID,
			"sequence_number", alert.SequenceNumber,
		)
		return true
	}

	p.metrics.AlertsPublished.Inc()
	p.logger.Debug("rain alert published",
		"station_id", alert.StationID,
		"sequence_number", alert.SequenceNumber,
		"humidity", alert.Humidity,
	)
	return true
}

func (p *AlertPipeline) commit(ctx context.Context, events []domain.RawEvent) {
	if len(events) == 0 {
		return
	}
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	if err := p.source.Commit(commitCtx, events...); err != nil {
		p.metrics.CommitErrors.Inc()
		p.logger.Warn("commit offsets failed", "error", err, "messages", len(events))
	}
}
