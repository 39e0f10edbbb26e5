package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/exercisetracker/internal/config"
	"example.com/exercisetracker/internal/consumer"
	"example.com/exercisetracker/internal/logging"
)

func main() {
	cfg := config.Load()

	logger, closeLog := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Service: cfg.ServiceName + "-consumer"})
	defer closeLog()
	slog.SetDefault(logger)

	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS must be set for the consumer")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	handler := consumer.NewPersistenceHandler(pool)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("consumer metrics listening", slog.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()

	var wg sync.WaitGroup
	halted := make(chan error, len(cfg.ConsumerTopics))
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for _, topic := range cfg.ConsumerTopics {
		reader := consumer.NewKafkaReader(cfg.KafkaBrokers, cfg.ConsumerGroupID, topic)
		topicLogger := logger.With(slog.String("topic", topic), slog.String("group", cfg.ConsumerGroupID))
		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(topicLogger))

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close()

			topicLogger.Info("consumer started")
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				topicLogger.Error("consumer halted", slog.String("error", err.Error()))
				halted <- err
			}
		}()
	}

	var haltErr error
	select {
	case <-stop:
		logger.Info("consumer shutdown requested")
	case haltErr = <-halted:
		logger.Error("stopping all topics after a halted consumer", slog.String("error", haltErr.Error()))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", slog.String("error", err.Error()))
	}

	wg.Wait()
	if haltErr != nil {
		pool.Close()
		os.Exit(1)
	}
}
