package pipeline

import (
	"context"

	"github.com/couchcryptid/weather-station-pipeline/internal/domain"
)

// Source is a checkpointed event stream owned by exactly one pipeline.
type Source interface {
	// Poll waits at most the source's poll timeout and returns the messages
	// that arrived, in order. An empty result with a nil error is normal.
	Poll(ctx context.Context) ([]domain.RawEvent, error)
	// Commit advances the consumer checkpoint past every given event.
	Commit(ctx context.Context, events ...domain.RawEvent) error
}

// Sink durably stores readings. Flush must be atomic for the whole slice and
// safe to repeat with the same readings.
type Sink interface {
	Flush(ctx context.Context, readings []domain.Reading) error
}

// AlertPublisher writes alerts to the derived stream.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert domain.Alert) error
}
