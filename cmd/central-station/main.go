// Command central-station consumes weather readings from Kafka and stores them
// in batches in the relational database. The consumer group offset is only
// committed after the batch holding a message has been written.
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
	"github.com/couchcryptid/weather-station-pipeline/internal/adapter/sqlstore"
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

	logger := observability.NewLogger(cfg, "central-station")
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checkCtx, cancelCheck := context.WithTimeout(ctx, startupTimeout)
	err = kafkaadapter.CheckTopic(checkCtx, cfg.KafkaBrokers, cfg.KafkaSourceTopic)
	cancelCheck()
	if err != nil {
		logger.Error("kafka unreachable", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSourceTopic, "error", err)
		os.Exit(1)
	}

	store, err := sqlstore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.DatabaseDriver, "error", err)
		os.Exit(1)
	}
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		_ = store.Close()
		os.Exit(1)
	}

	reader := kafkaadapter.NewReader(kafkaadapter.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaSourceTopic,
		GroupID:     cfg.IngestGroupID,
		PollTimeout: cfg.PollTimeout,
		MaxPoll:     cfg.BatchSize,
	}, logger)

	ingestor := pipeline.NewIngestor(reader, store, logger, metrics, pipeline.BatchPolicy{
		Size:     cfg.BatchSize,
		MaxBytes: cfg.BatchMaxBytes,
		MaxAge:   cfg.BatchMaxAge,
	}, cfg.ShutdownTimeout)

	srv := httpadapter.NewServer(cfg.HTTPAddr, ingestor, logger)

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
		if err := ingestor.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Run drains the pending batch before returning; the reader and the
	// database must stay open until then.
	wg.Wait()

	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("shutdown complete")
}
