package kafka

import (
	"context"
	"errors"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
)

// CheckTopic dials the brokers in order and returns nil as soon as one of
// them reports at least one partition for topic. Binaries call it at startup
// so an unreachable cluster fails fast instead of looping in poll backoff.
func CheckTopic(ctx context.Context, brokers []string, topic string) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	var errs []error
	for _, broker := range brokers {
		err := checkBroker(ctx, broker, topic)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("broker %s: %w", broker, err))
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

func checkBroker(ctx context.Context, broker, topic string) error {
	conn, err := kafkago.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("set deadline: %w", err)
		}
	}

	partitions, err := conn.ReadPartitions(topic)
	if err != nil {
		return fmt.Errorf("read partitions of %s: %w", topic, err)
	}
	if len(partitions) == 0 {
		return fmt.Errorf("topic %s has no partitions", topic)
	}
	return nil
}
