package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// RainDetected is the marker carried by every humidity alert.
const RainDetected = "RAIN_DETECTED"

// DefaultHumidityThreshold is the humidity above which rain is assumed.
const DefaultHumidityThreshold = 70

// Alert is published on the derived stream when a reading crosses the
// humidity threshold. Timestamp is when the alert was generated, not when the
// station took the reading.
type Alert struct {
	StationID      int64  `json:"station_id"`
	SequenceNumber int64  `json:"sequence_number"`
	Humidity       int    `json:"humidity"`
	Alert          string `json:"alert"`
	Timestamp      int64  `json:"timestamp"`
}

// DetectRain returns an alert for r when its humidity is strictly above
// threshold. The alert is stamped with the package clock.
func DetectRain(r Reading, threshold int) (Alert, bool) {
	if r.Weather.Humidity <= threshold {
		return Alert{}, false
	}
	return Alert{
		StationID:      r.StationID,
		SequenceNumber: r.SequenceNumber,
		Humidity:       r.Weather.Humidity,
		Alert:          RainDetected,
		Timestamp:      Now().Unix(),
	}, true
}

// SerializeAlert converts an Alert into an OutputEvent keyed by station.
func SerializeAlert(a Alert) (OutputEvent, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize alert: %w", err)
	}
	return OutputEvent{
		Key:   []byte(strconv.FormatInt(a.StationID, 10)),
		Value: data,
		Headers: map[string]string{
			"alert":        a.Alert,
			"generated_at": time.Unix(a.Timestamp, 0).UTC().Format(time.RFC3339),
		},
	}, nil
}

// OutputEvent is the serialized form destined for a sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
