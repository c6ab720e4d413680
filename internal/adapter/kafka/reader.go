package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-station-pipeline/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Reader consumes the readings topic as one consumer group member with
// manual offset commits. It implements pipeline.Source.
type Reader struct {
	reader      *kafkago.Reader
	pollTimeout time.Duration
	maxPoll     int
	logger      *slog.Logger
}

// ReaderConfig selects the topic, consumer group and poll bounds.
type ReaderConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	PollTimeout time.Duration
	MaxPoll     int // maximum messages returned by one Poll
}

// NewReader creates a consumer group reader. CommitInterval is left at zero so
// every Commit is synchronous and the checkpoint never runs ahead of the caller.
func NewReader(cfg ReaderConfig, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafkago.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     cfg.PollTimeout,
	})
	maxPoll := cfg.MaxPoll
	if maxPoll <= 0 {
		maxPoll = 1
	}
	return &Reader{
		reader:      r,
		pollTimeout: cfg.PollTimeout,
		maxPoll:     maxPoll,
		logger:      logger,
	}
}

// Poll fetches up to MaxPoll messages, waiting at most PollTimeout. It returns
// whatever arrived in that window, possibly nothing.
func (r *Reader) Poll(ctx context.Context) ([]domain.RawEvent, error) {
	pollCtx, cancel := context.WithTimeout(ctx, r.pollTimeout)
	defer cancel()

	events := make([]domain.RawEvent, 0, r.maxPoll)
	for len(events) < r.maxPoll {
		msg, err := r.reader.FetchMessage(pollCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if pollCtx.Err() != nil || len(events) > 0 {
				// Poll window elapsed, or a fetch error after some messages:
				// hand over what we have and let the next poll surface the error.
				break
			}
			return nil, fmt.Errorf("fetch message: %w", err)
		}
		events = append(events, mapMessageToRawEvent(msg))
	}
	return events, nil
}

// Commit advances the group offsets past the given events.
func (r *Reader) Commit(ctx context.Context, events ...domain.RawEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i, e := range events {
		msgs[i] = kafkago.Message{Topic: e.Topic, Partition: e.Partition, Offset: e.Offset}
	}
	if err := r.reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("commit %d offsets: %w", len(msgs), err)
	}
	return nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

func mapMessageToRawEvent(msg kafkago.Message) domain.RawEvent {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawEvent{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
