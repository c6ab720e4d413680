package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { SetClock(nil) })
}

func TestDetectRain(t *testing.T) {
	now := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	freezeClock(t, now)

	reading := Reading{StationID: 7, SequenceNumber: 42, BatteryStatus: BatteryLow, StatusTimestamp: 1000, Weather: Weather{Humidity: 85, Temperature: 50, WindSpeed: 10}}

	alert, ok := DetectRain(reading, DefaultHumidityThreshold)
	require.True(t, ok)
	assert.Equal(t, Alert{
		StationID:      7,
		SequenceNumber: 42,
		Humidity:       85,
		Alert:          RainDetected,
		Timestamp:      now.Unix(),
	}, alert)
	assert.NotEqual(t, reading.StatusTimestamp, alert.Timestamp, "alert carries detection time")
}

func TestDetectRain_Threshold(t *testing.T) {
	freezeClock(t, time.Unix(5000, 0))

	for humidity := 0; humidity <= 100; humidity++ {
		r := Reading{StationID: 1, SequenceNumber: int64(humidity), BatteryStatus: BatteryHigh, Weather: Weather{Humidity: humidity}}
		alert, ok := DetectRain(r, 70)
		if humidity > 70 {
			require.True(t, ok, "humidity %d should alert", humidity)
			assert.Equal(t, humidity, alert.Humidity)
			assert.Equal(t, int64(humidity), alert.SequenceNumber)
		} else {
			assert.False(t, ok, "humidity %d should not alert", humidity)
			assert.Equal(t, Alert{}, alert)
		}
	}
}

func TestSerializeAlert(t *testing.T) {
	alert := Alert{StationID: 7, SequenceNumber: 42, Humidity: 85, Alert: RainDetected, Timestamp: 1717171717}

	out, err := SerializeAlert(alert)
	require.NoError(t, err)

	assert.Equal(t, []byte("7"), out.Key)
	assert.JSONEq(t, `{"station_id":7,"sequence_number":42,"humidity":85,"alert":"RAIN_DETECTED","timestamp":1717171717}`, string(out.Value))
	assert.Equal(t, RainDetected, out.Headers["alert"])
	assert.Equal(t, "2024-05-31T16:08:37Z", out.Headers["generated_at"])

	var roundtrip Alert
	require.NoError(t, json.Unmarshal(out.Value, &roundtrip))
	assert.Equal(t, alert, roundtrip)
}
