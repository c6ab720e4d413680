package domain

// BatteryStatus is the charge level reported by a station.
type BatteryStatus string

const (
	BatteryLow    BatteryStatus = "low"
	BatteryMedium BatteryStatus = "medium"
	BatteryHigh   BatteryStatus = "high"
)

// Valid reports whether s is one of the known battery levels.
func (s BatteryStatus) Valid() bool {
	switch s {
	case BatteryLow, BatteryMedium, BatteryHigh:
		return true
	}
	return false
}

// Weather holds the sensor values of a single observation.
type Weather struct {
	Humidity    int // percent, 0-100
	Temperature int
	WindSpeed   int
}

// Reading is a single decoded station observation. Readings are never mutated
// after decoding; (StationID, SequenceNumber) identifies one uniquely.
type Reading struct {
	StationID       int64
	SequenceNumber  int64
	BatteryStatus   BatteryStatus
	StatusTimestamp int64 // epoch seconds, assigned by the station
	Weather         Weather
}

// Key returns the natural idempotency key of the reading.
func (r Reading) Key() ReadingKey {
	return ReadingKey{StationID: r.StationID, SequenceNumber: r.SequenceNumber}
}

// ReadingKey is the (station, sequence) pair used for upserts.
type ReadingKey struct {
	StationID      int64
	SequenceNumber int64
}
