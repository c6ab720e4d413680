package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrDecode is matched by every DecodeError via errors.Is.
var ErrDecode = errors.New("decode reading")

// DecodeError reports a payload that cannot be turned into a Reading.
// Field is empty when the payload is not valid JSON at all.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode reading: %v", e.Err)
	}
	return fmt.Sprintf("decode reading: field %q: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is lets callers test for decode failures with errors.Is(err, ErrDecode).
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

var errMissing = errors.New("missing required field")

// wireReading mirrors the station payload. Pointers distinguish absent
// fields from zero values.
type wireReading struct {
	StationID       *int64       `json:"station_id"`
	SNo             *int64       `json:"s_no"`
	BatteryStatus   *string      `json:"battery_status"`
	StatusTimestamp *int64       `json:"status_timestamp"`
	Weather         *wireWeather `json:"weather"`
}

type wireWeather struct {
	Humidity    *int `json:"humidity"`
	Temperature *int `json:"temperature"`
	WindSpeed   *int `json:"wind_speed"`
}

// DecodeReading parses a station payload. It never returns a partially
// populated Reading: any missing, mistyped or out-of-range field yields a
// *DecodeError and the zero Reading.
func DecodeReading(payload []byte) (Reading, error) {
	var w wireReading
	if err := json.Unmarshal(payload, &w); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Reading{}, &DecodeError{Field: typeErr.Field, Err: err}
		}
		return Reading{}, &DecodeError{Err: err}
	}

	switch {
	case w.StationID == nil:
		return Reading{}, &DecodeError{Field: "station_id", Err: errMissing}
	case w.SNo == nil:
		return Reading{}, &DecodeError{Field: "s_no", Err: errMissing}
	case w.BatteryStatus == nil:
		return Reading{}, &DecodeError{Field: "battery_status", Err: errMissing}
	case w.StatusTimestamp == nil:
		return Reading{}, &DecodeError{Field: "status_timestamp", Err: errMissing}
	case w.Weather == nil:
		return Reading{}, &DecodeError{Field: "weather", Err: errMissing}
	case w.Weather.Humidity == nil:
		return Reading{}, &DecodeError{Field: "weather.humidity", Err: errMissing}
	case w.Weather.Temperature == nil:
		return Reading{}, &DecodeError{Field: "weather.temperature", Err: errMissing}
	case w.Weather.WindSpeed == nil:
		return Reading{}, &DecodeError{Field: "weather.wind_speed", Err: errMissing}
	}

	battery := BatteryStatus(*w.BatteryStatus)
	if !battery.Valid() {
		return Reading{}, &DecodeError{Field: "battery_status", Err: fmt.Errorf("unknown value %q", *w.BatteryStatus)}
	}
	if h := *w.Weather.Humidity; h < 0 || h > 100 {
		return Reading{}, &DecodeError{Field: "weather.humidity", Err: fmt.Errorf("%d out of range 0-100", h)}
	}
	if ws := *w.Weather.WindSpeed; ws < 0 {
		return Reading{}, &DecodeError{Field: "weather.wind_speed", Err: fmt.Errorf("negative value %d", ws)}
	}
	// The readings table stores weather values as 32-bit INTEGER columns.
	if ws := *w.Weather.WindSpeed; ws > math.MaxInt32 {
		return Reading{}, &DecodeError{Field: "weather.wind_speed", Err: fmt.Errorf("%d overflows int32", ws)}
	}
	if t := *w.Weather.Temperature; t < math.MinInt32 || t > math.MaxInt32 {
		return Reading{}, &DecodeError{Field: "weather.temperature", Err: fmt.Errorf("%d overflows int32", t)}
	}

	return Reading{
		StationID:       *w.StationID,
		SequenceNumber:  *w.SNo,
		BatteryStatus:   battery,
		StatusTimestamp: *w.StatusTimestamp,
		Weather: Weather{
			Humidity:    *w.Weather.Humidity,
			Temperature: *w.Weather.Temperature,
			WindSpeed:   *w.Weather.WindSpeed,
		},
	}, nil
}

// EncodeReading serializes r in the station wire format accepted by DecodeReading.
func EncodeReading(r Reading) ([]byte, error) {
	status := string(r.BatteryStatus)
	data, err := json.Marshal(wireReading{
		StationID:       &r.StationID,
		SNo:             &r.SequenceNumber,
		BatteryStatus:   &status,
		StatusTimestamp: &r.StatusTimestamp,
		Weather: &wireWeather{
			Humidity:    &r.Weather.Humidity,
			Temperature: &r.Weather.Temperature,
			WindSpeed:   &r.Weather.WindSpeed,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode reading: %w", err)
	}
	return data, nil
}
