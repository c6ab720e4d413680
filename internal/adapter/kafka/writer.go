package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/couchcryptid/weather-station-pipeline/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces messages to a single Kafka topic.
// It implements pipeline.AlertPublisher and station.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic. Messages are keyed by station
// so one station's events stay ordered within a partition.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishAlert serializes and publishes one alert immediately.
func (w *Writer) PublishAlert(ctx context.Context, alert domain.Alert) error {
	out, err := domain.SerializeAlert(alert)
	if err != nil {
		return err
	}
	return w.write(ctx, toMessage(out))
}

// PublishReading publishes a station reading in the station wire format.
func (w *Writer) PublishReading(ctx context.Context, r domain.Reading) error {
	data, err := domain.EncodeReading(r)
	if err != nil {
		return err
	}
	return w.write(ctx, kafkago.Message{
		Key:   []byte(strconv.FormatInt(r.StationID, 10)),
		Value: data,
	})
}

func (w *Writer) write(ctx context.Context, msg kafkago.Message) error {
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", w.writer.Topic, err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// toMessage converts an OutputEvent into a Kafka message.
func toMessage(out domain.OutputEvent) kafkago.Message {
	headers := make([]kafkago.Header, 0, len(out.Headers))
	for _, k := range slices.Sorted(maps.Keys(out.Headers)) {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(out.Headers[k])})
	}
	return kafkago.Message{
		Key:     out.Key,
		Value:   out.Value,
		Headers: headers,
	}
}
