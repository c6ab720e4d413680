// Command station simulates a single weather station publishing one reading
// per interval to the readings topic.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	kafkaadapter "github.com/couchcryptid/weather-station-pipeline/internal/adapter/kafka"
	"github.com/couchcryptid/weather-station-pipeline/internal/config"
	"github.com/couchcryptid/weather-station-pipeline/internal/observability"
	"github.com/couchcryptid/weather-station-pipeline/internal/station"
)

// startupTimeout bounds the broker check before the pipeline starts.
const startupTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, "station")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checkCtx, cancelCheck := context.WithTimeout(ctx, startupTimeout)
	err = kafkaadapter.CheckTopic(checkCtx, cfg.KafkaBrokers, cfg.KafkaSourceTopic)
	cancelCheck()
	if err != nil {
		logger.Error("kafka unreachable", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSourceTopic, "error", err)
		os.Exit(1)
	}

	writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSourceTopic, logger)

	s := station.New(cfg.StationID, station.WithDropRate(cfg.StationDropRate))
	if err := station.Run(ctx, s, writer, clockwork.NewRealClock(), cfg.StationInterval, logger); err != nil {
		logger.Error("station error", "error", err)
	}

	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	logger.Info("shutdown complete")
}
