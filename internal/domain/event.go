package domain

import "time"

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
}

// Size returns the payload size used for byte-bounded batching.
func (e RawEvent) Size() int {
	return len(e.Value)
}
