package pipeline

import (
	"time"

	"github.com/couchcryptid/weather-station-pipeline/internal/domain"
)

// BatchPolicy bounds a batch by reading count, payload bytes and age.
// Whichever limit is hit first triggers a flush. A zero MaxBytes or MaxAge
// disables that limit.
type BatchPolicy struct {
	Size     int
	MaxBytes int
	MaxAge   time.Duration
}

// batch accumulates decoded readings together with every raw message consumed
// since the last checkpoint, including ones that failed to decode.
type batch struct {
	readings []domain.Reading
	consumed []domain.RawEvent
	bytes    int
	started  time.Time
}

func newBatch(size int) *batch {
	return &batch{
		readings: make([]domain.Reading, 0, size),
		consumed: make([]domain.RawEvent, 0, size),
	}
}

func (b *batch) add(r domain.Reading, raw domain.RawEvent, now time.Time) {
	b.track(raw, now)
	b.readings = append(b.readings, r)
}

// skip records a message that produced no reading so it is checkpointed
// together with the batch. Its payload still counts toward MaxBytes.
func (b *batch) skip(raw domain.RawEvent, now time.Time) {
	b.track(raw, now)
}

func (b *batch) track(raw domain.RawEvent, now time.Time) {
	if len(b.consumed) == 0 {
		b.started = now
	}
	b.consumed = append(b.consumed, raw)
	b.bytes += raw.Size()
}

func (b *batch) empty() bool {
	return len(b.consumed) == 0
}

func (b *batch) full(p BatchPolicy) bool {
	if p.Size > 0 && len(b.readings) >= p.Size {
		return true
	}
	return p.MaxBytes > 0 && b.bytes >= p.MaxBytes
}

func (b *batch) expired(p BatchPolicy, now time.Time) bool {
	if p.MaxAge <= 0 || b.empty() {
		return false
	}
	return now.Sub(b.started) >= p.MaxAge
}

// reset starts a new batch. Fresh slices are allocated because the flushed
// readings may still be referenced by the sink.
func (b *batch) reset() {
	*b = *newBatch(cap(b.readings))
}
