package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/exercisetracker/internal/api"
	"example.com/exercisetracker/internal/config"
	"example.com/exercisetracker/internal/domain"
	"example.com/exercisetracker/internal/logging"
	"example.com/exercisetracker/internal/observability"
	"example.com/exercisetracker/internal/outbox"
	"example.com/exercisetracker/internal/persistence"
	httptransport "example.com/exercisetracker/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, closeLog := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Service: cfg.ServiceName})
	defer closeLog()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, logger, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		logger.Error("failed to initialise tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", slog.String("backend", cfg.StoreBackend), slog.String("error", err.Error()))
		os.Exit(1)
	}

	var dispatcher *outbox.Dispatcher
	if store.Pool != nil && len(cfg.KafkaBrokers) > 0 {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(store.Pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithLogger(logger.With(slog.String("component", "outbox"))),
			outbox.WithRetryBackoff(cfg.DLQBaseDelay))
		go dispatcher.Start(ctx)
	} else {
		logger.Info("outbox dispatcher disabled", slog.String("backend", store.Backend), slog.Int("kafka_brokers", len(cfg.KafkaBrokers)))
	}

	service := domain.NewService(store.Repository)
	handler := api.NewHandler(service, api.WithLogger(logger), api.WithAdminRoutes(cfg.AdminRoutesEnabled))

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(api.JSONFallback(mux),
		httptransport.Recover(logger),
		httptransport.Trace(cfg.ServiceName),
		httptransport.CORS(cfg.CORSAllowedOrigin),
		httptransport.Observe(logger),
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("exercise tracker listening", slog.String("address", cfg.HTTPAddress), slog.String("backend", store.Backend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
			shutdownCh <- syscall.SIGTERM
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.Error("store close failed", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown failed", slog.String("error", err.Error()))
	}
}
