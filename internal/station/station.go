// Package station simulates a field weather station. Each Station owns its
// sequence counter, so any number of stations can run in one process.
package station

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-station-pipeline/internal/domain"
)

// DefaultDropRate is the share of ticks on which a station stays silent.
const DefaultDropRate = 0.1

// Station produces synthetic readings for a single station id.
type Station struct {
	id       int64
	next     int64
	dropRate float64
	rng      *rand.Rand
}

// Option configures a Station.
type Option func(*Station)

// WithDropRate sets the probability that a tick produces no reading.
func WithDropRate(p float64) Option {
	return func(s *Station) { s.dropRate = p }
}

// WithRand sets the random source, mainly for reproducible fixtures and tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Station) { s.rng = r }
}

// New creates a Station whose first reading has sequence number 1.
func New(id int64, opts ...Option) *Station {
	s := &Station{
		id:       id,
		next:     1,
		dropRate: DefaultDropRate,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(id)))
	}
	return s
}

// ID returns the station id.
func (s *Station) ID() int64 { return s.id }

// Next returns the observation for one tick at now. ok is false when the tick
// is dropped; the sequence number only advances for emitted readings.
func (s *Station) Next(now time.Time) (r domain.Reading, ok bool) {
	if s.rng.Float64() < s.dropRate {
		return domain.Reading{}, false
	}

	r = domain.Reading{
		StationID:       s.id,
		SequenceNumber:  s.next,
		BatteryStatus:   s.battery(),
		StatusTimestamp: now.Unix(),
		Weather: domain.Weather{
			Humidity:    s.rng.IntN(101),
			Temperature: 30 + s.rng.IntN(91),
			WindSpeed:   s.rng.IntN(41),
		},
	}
	s.next++
	return r, true
}

// battery draws low 30%, medium 40%, high 30%.
func (s *Station) battery() domain.BatteryStatus {
	switch n := s.rng.IntN(100); {
	case n < 30:
		return domain.BatteryLow
	case n < 70:
		return domain.BatteryMedium
	default:
		return domain.BatteryHigh
	}
}

// Publisher sends readings to the readings topic.
type Publisher interface {
	PublishReading(ctx context.Context, r domain.Reading) error
}

// Run emits one observation every interval until the context is cancelled.
// Publish failures are logged and the reading is lost, like a radio dropout.
func Run(ctx context.Context, s *Station, pub Publisher, clock clockwork.Clock, interval time.Duration, logger *slog.Logger) error {
	logger.Info("station started", "station_id", s.id, "interval", interval, "drop_rate", s.dropRate)

	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("station stopping", "station_id", s.id, "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}

		r, ok := s.Next(clock.Now())
		if !ok {
			logger.Debug("reading dropped", "station_id", s.id)
			continue
		}
		if err := pub.PublishReading(ctx, r); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("publish reading failed", "error", err, "station_id", s.id, "s_no", r.SequenceNumber)
			continue
		}
		logger.Debug("reading published", "station_id", s.id, "s_no", r.SequenceNumber, "humidity", r.Weather.Humidity)
	}
}
