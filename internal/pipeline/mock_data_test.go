package pipeline_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/couchcryptid/weather-station-pipeline/internal/adapter/sqlstore"
	"github.com/couchcryptid/weather-station-pipeline/internal/domain"
	"github.com/couchcryptid/weather-station-pipeline/internal/pipeline"
	"github.com/couchcryptid/weather-station-pipeline/internal/station"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simulatedStream interleaves readings from several seeded stations the way
// they would arrive on the topic, one poll per simulated second.
func simulatedStream(t *testing.T, stations, ticks int) ([]pollResult, []domain.Reading) {
	t.Helper()
	sims := make([]*station.Station, stations)
	for i := range sims {
		id := int64(i + 1)
		sims[i] = station.New(id, station.WithRand(rand.New(rand.NewPCG(42, uint64(id)))))
	}

	now := time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)
	var (
		polls    []pollResult
		readings []domain.Reading
		offset   int64
	)
	for range ticks {
		var events []domain.RawEvent
		for _, s := range sims {
			r, ok := s.Next(now)
			if !ok {
				continue
			}
			readings = append(readings, r)
			events = append(events, makeRawEvent(t, offset, r))
			offset++
		}
		polls = append(polls, pollResult{events: events})
		now = now.Add(time.Second)
	}
	return polls, readings
}

func TestIngestor_WithSimulatedStations(t *testing.T) {
	polls, readings := simulatedStream(t, 5, 200)
	require.NotEmpty(t, readings)

	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, ":memory:", discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	src := &fakeSource{polls: polls}
	runIngestor(t, src, store, pipeline.BatchPolicy{Size: 64}, 5*time.Second)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(readings), n, "one row per emitted reading")
	assert.Len(t, src.committed, len(readings), "every message is checkpointed after the drain")

	for _, want := range []domain.Reading{readings[0], readings[len(readings)/2], readings[len(readings)-1]} {
		got, err := store.Get(ctx, want.Key())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestAlertPipeline_WithSimulatedStations(t *testing.T) {
	polls, readings := simulatedStream(t, 5, 200)

	var humid []domain.ReadingKey
	for _, r := range readings {
		if r.Weather.Humidity > domain.DefaultHumidityThreshold {
			humid = append(humid, r.Key())
		}
	}
	require.NotEmpty(t, humid, "seeded stream should contain humid readings")

	src := &fakeSource{polls: polls}
	pub := &fakePublisher{}
	runAlertPipeline(t, src, pub)

	got := make([]domain.ReadingKey, 0, len(pub.alerts))
	for _, a := range pub.alerts {
		assert.Equal(t, domain.RainDetected, a.Alert)
		assert.Greater(t, a.Humidity, domain.DefaultHumidityThreshold)
		got = append(got, domain.ReadingKey{StationID: a.StationID, SequenceNumber: a.SequenceNumber})
	}
	assert.Equal(t, humid, got, "one alert per humid reading, in stream order")
	assert.Len(t, src.committed, len(readings))
}

func TestSimulatedStream_SequencesAreGapless(t *testing.T) {
	_, readings := simulatedStream(t, 3, 100)

	last := map[int64]int64{}
	for _, r := range readings {
		require.Equal(t, last[r.StationID]+1, r.SequenceNumber,
			fmt.Sprintf("station %d sequence gap", r.StationID))
		last[r.StationID] = r.SequenceNumber
	}
}
