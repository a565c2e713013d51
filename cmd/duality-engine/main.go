package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"duality/internal/bus"
	"duality/internal/config"
	"duality/internal/engine"
	"duality/internal/events"
	"duality/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logger := log.With().Str("component", "duality-engine").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("invalid redis url")
	}
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis not reachable at startup")
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	outbox := events.NewOutbox(cfg.OutboxSize)
	eng := engine.New(outbox,
		engine.WithMetrics(collector),
		engine.WithLogger(logger),
		engine.WithInboxSize(cfg.InboxSize),
	)

	stream := bus.NewRedisStream(redisClient)
	sink := bus.NewStreamSink(stream)
	go outbox.Drain(sink, func(ev events.Event, cause error) {
		logger.Error().Err(cause).Str("kind", string(ev.Kind)).Msg("event publish failed, writing to dead letter stream")
		sink.DeadLetter(ev, cause)
	})

	tradingConsumer := bus.NewTradingConsumer(stream, eng, logger, cfg.RequestPoolSize)
	readConsumer := bus.NewReadConsumer(stream, eng, logger, cfg.ReadPoolSize)

	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("engine actor exited")
		}
	}()
	go func() {
		if err := tradingConsumer.Run(ctx, "0"); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("trading consumer exited")
		}
	}()
	go func() {
		if err := readConsumer.Run(ctx, "0"); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("read consumer exited")
		}
	}()

	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(reg),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server exited")
		}
	}()

	logger.Info().Str("metrics_addr", cfg.MetricsAddr).Msg("duality-engine running")
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	outbox.Close()

	os.Exit(0)
}
