// Command rain-detector consumes weather readings and publishes a
// RAIN_DETECTED alert for every reading whose humidity exceeds the threshold.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/couchcryptid/weather-station-pipeline/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/weather-station-pipeline/internal/adapter/kafka"
	"github.com/couchcryptid/weather-station-pipeline/internal/config"
	"github.com/couchcryptid/weather-station-pipeline/internal/observability"
	"github.com/couchcryptid/weather-station-pipeline/internal/pipeline"
)

// startupTimeout bounds the broker check before the pipeline starts.
const startupTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, "rain-detector")
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checkCtx, cancelCheck := context.WithTimeout(ctx, startupTimeout)
	for _, topic := range []string{cfg.KafkaSourceTopic, cfg.KafkaAlertTopic} {
		if err := kafkaadapter.CheckTopic(checkCtx, cfg.KafkaBrokers, topic); err != nil {
			logger.Error("kafka unreachable", "brokers", cfg.KafkaBrokers, "topic", topic, "error", err)
			cancelCheck()
			os.Exit(1)
		}
	}
	cancelCheck()

	reader := kafkaadapter.NewReader(kafkaadapter.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaSourceTopic,
		GroupID:     cfg.AlertGroupID,
		PollTimeout: cfg.PollTimeout,
		MaxPoll:     cfg.BatchSize,
	}, logger)
	writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaAlertTopic, logger)

	p := pipeline.NewAlertPipeline(reader, writer, cfg.HumidityThreshold, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := srv.Run(ctx, cfg.ShutdownTimeout); err != nil {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()

	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
