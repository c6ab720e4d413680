// Package domain models weather station telemetry and the alerts derived from it.
//
// # Wire Format
//
// Stations publish one JSON object per observation to the readings topic:
//
//	{"station_id": 7, "s_no": 42, "battery_status": "low", "status_timestamp": 1000,
//	 "weather": {"humidity": 85, "temperature": 50, "wind_speed": 10}}
//
// The payload names the per-station sequence counter "s_no"; the decoded
// [Reading] calls it SequenceNumber. Every field, including the three weather
// values, is required. battery_status is one of "low", "medium" or "high",
// humidity is a percentage (0-100) and wind_speed cannot be negative.
// Anything else is a [DecodeError]; there is no best-effort decoding.
//
// # Alerts
//
// Readings with humidity strictly above the configured threshold (70 by
// default) produce an [Alert] on the alerts topic:
//
//	{"station_id": 7, "sequence_number": 42, "humidity": 85,
//	 "alert": "RAIN_DETECTED", "timestamp": 1717171717}
//
// The output schema deliberately keeps different field names from the input
// (sequence_number vs s_no, timestamp vs status_timestamp) because downstream
// consumers already depend on them. The alert timestamp is the detection time
// in epoch seconds, taken from the package clock (see [SetClock]).
//
// # Identity
//
// (station_id, s_no) identifies a reading. Stations increase s_no
// monotonically, so the pair doubles as the idempotency key for storage
// upserts and makes replays after a crash harmless.
package domain
