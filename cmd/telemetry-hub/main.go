package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fieldwatch/telemetry-hub/internal/pkg/application/ingest"
	"github.com/fieldwatch/telemetry-hub/internal/pkg/application/query"
	"github.com/fieldwatch/telemetry-hub/internal/pkg/application/tiles"
	"github.com/fieldwatch/telemetry-hub/internal/pkg/infrastructure/cache"
	"github.com/fieldwatch/telemetry-hub/internal/pkg/infrastructure/config"
	"github.com/fieldwatch/telemetry-hub/internal/pkg/infrastructure/metrics"
	"github.com/fieldwatch/telemetry-hub/internal/pkg/infrastructure/router"
	"github.com/fieldwatch/telemetry-hub/internal/pkg/infrastructure/storage"
	"github.com/fieldwatch/telemetry-hub/internal/pkg/infrastructure/transport"
)

const serviceName string = "telemetry-hub"

func main() {
	serviceVersion := buildinfo.SourceVersion()

	ctx, logger, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion)
	defer cleanup()

	cfg, err := config.Load(env.GetVariableOrDefault(logger, "TELEMETRY_CONFIG", ""))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load settings")
	}

	pgConnString := env.GetVariableOrDie(logger, "POSTGRES_CONNSTRING", "postgres connection string")
	redisAddr := env.GetVariableOrDefault(logger, "REDIS_ADDR", "localhost:6379")
	redisPassword := env.GetVariableOrDefault(logger, "REDIS_PASSWORD", "")
	brokerURL := env.GetVariableOrDie(logger, "MQTT_BROKER_URL", "mqtt broker url")

	db, err := storage.Connect(ctx, pgConnString)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.Initialize(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}

	lvc := cache.NewRedisCache(redisAddr, redisPassword, 0)
	if err := lvc.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to reach cache store")
	}

	if cfg.RebuildCacheOnStart {
		if _, err := ingest.RebuildCache(ctx, db, lvc); err != nil {
			logger.Error().Err(err).Msg("cache rebuild failed, continuing with what the cache holds")
		}
	}

	pipeline := ingest.New(db, lvc, db, metrics.New(prometheus.DefaultRegisterer))

	sub := transport.NewSubscriber(ctx, brokerURL, cfg.MQTT.ClientID, cfg.MQTT.Topic,
		func(ctx context.Context, payload []byte, receivedAt time.Time) {
			if err := pipeline.Ingest(ctx, payload, receivedAt); err != nil {
				logger.Warn().Err(err).Msg("discarded inbound frame")
			}
		},
	)
	if err := sub.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to broker")
	}
	defer sub.Stop()

	queries := query.New(lvc, db, db)
	evaluator := tiles.New(db, queries, db)

	api := router.SetupRouter(chi.NewRouter(), logger, queries, evaluator, db, cfg.Query.OfflineThreshold.AsDuration())

	go func() {
		if err := api.Start(cfg.HTTP.Port); err != nil {
			logger.Fatal().Err(err).Msg("web server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutdown signal received")
}
