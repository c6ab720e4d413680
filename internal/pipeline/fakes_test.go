package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/weather-station-pipeline/internal/domain"
	"github.com/stretchr/testify/require"
)

// journal records the order of side effects across fakes.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.entries)
}

type pollResult struct {
	events  []domain.RawEvent
	err     error
	advance time.Duration
}

// fakeSource replays scripted polls and cancels the run once they are exhausted.
type fakeSource struct {
	mu        sync.Mutex
	polls     []pollResult
	cancel    context.CancelFunc
	clock     interface{ Advance(time.Duration) }
	journal   *journal
	commitErr error
	committed []domain.RawEvent
}

func (s *fakeSource) Poll(ctx context.Context) ([]domain.RawEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.polls) == 0 {
		s.cancel()
		return nil, ctx.Err()
	}
	next := s.polls[0]
	s.polls = s.polls[1:]
	if next.advance > 0 && s.clock != nil {
		s.clock.Advance(next.advance)
	}
	return next.events, next.err
}

func (s *fakeSource) Commit(_ context.Context, events ...domain.RawEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal.add("commit %d", len(events))
	if s.commitErr != nil {
		return s.commitErr
	}
	s.committed = append(s.committed, events...)
	return nil
}

func (s *fakeSource) offsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int64, 0, len(s.committed))
	for _, e := range s.committed {
		out = append(out, e.Offset)
	}
	return out
}

// fakeSink stores readings keyed by (station, sequence) like the SQL upsert.
type fakeSink struct {
	mu       sync.Mutex
	failures int // fail this many flushes before succeeding; negative fails forever
	journal  *journal
	flushes  [][]domain.Reading
	rows     map[domain.ReadingKey]domain.Reading
}

func (s *fakeSink) Flush(_ context.Context, readings []domain.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures != 0 {
		if s.failures > 0 {
			s.failures--
		}
		s.journal.add("flush failed")
		return errors.New("database unavailable")
	}
	s.journal.add("flush %d", len(readings))
	s.flushes = append(s.flushes, slices.Clone(readings))
	if s.rows == nil {
		s.rows = make(map[domain.ReadingKey]domain.Reading)
	}
	for _, r := range readings {
		s.rows[r.Key()] = r
	}
	return nil
}

func (s *fakeSink) flushSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int, 0, len(s.flushes))
	for _, f := range s.flushes {
		out = append(out, len(f))
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	failOn map[int64]bool // sequence numbers whose publish fails
	alerts []domain.Alert
}

func (p *fakePublisher) PublishAlert(_ context.Context, a domain.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failOn[a.SequenceNumber] {
		return errors.New("broker unavailable")
	}
	p.alerts = append(p.alerts, a)
	return nil
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeReading(station, seq int64, humidity int) domain.Reading {
	return domain.Reading{
		StationID:       station,
		SequenceNumber:  seq,
		BatteryStatus:   domain.BatteryMedium,
		StatusTimestamp: 1700000000 + seq,
		Weather:         domain.Weather{Humidity: humidity, Temperature: 60, WindSpeed: 5},
	}
}

func makeRawEvent(t *testing.T, offset int64, r domain.Reading) domain.RawEvent {
	t.Helper()
	data, err := domain.EncodeReading(r)
	require.NoError(t, err)
	return domain.RawEvent{
		Key:       []byte(fmt.Sprint(r.StationID)),
		Value:     data,
		Topic:     "weather_readings",
		Partition: 0,
		Offset:    offset,
	}
}

func rawPayload(offset int64, payload string) domain.RawEvent {
	return domain.RawEvent{Value: []byte(payload), Topic: "weather_readings", Offset: offset}
}

// makeStream builds n valid events for station 1 with offsets 0..n-1.
func makeStream(t *testing.T, n int) ([]domain.RawEvent, []domain.Reading) {
	t.Helper()
	events := make([]domain.RawEvent, 0, n)
	readings := make([]domain.Reading, 0, n)
	for i := range n {
		r := makeReading(1, int64(i+1), i%101)
		readings = append(readings, r)
		events = append(events, makeRawEvent(t, int64(i), r))
	}
	return events, readings
}
