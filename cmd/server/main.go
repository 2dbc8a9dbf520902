package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/vmanilo/paralimni/internal/adapter/chutes"
	"github.com/vmanilo/paralimni/internal/adapter/datura"
	"github.com/vmanilo/paralimni/internal/adapter/httpserver"
	"github.com/vmanilo/paralimni/internal/adapter/kafka"
	"github.com/vmanilo/paralimni/internal/adapter/ledger"
	"github.com/vmanilo/paralimni/internal/adapter/memory"
	"github.com/vmanilo/paralimni/internal/adapter/metrics"
	"github.com/vmanilo/paralimni/internal/adapter/postgres"
	"github.com/vmanilo/paralimni/internal/adapter/queue"
	"github.com/vmanilo/paralimni/internal/adapter/redis"
	"github.com/vmanilo/paralimni/internal/app"
	"github.com/vmanilo/paralimni/internal/domain"
	"github.com/vmanilo/paralimni/internal/platform/config"
	"github.com/vmanilo/paralimni/internal/platform/logging"
	"github.com/vmanilo/paralimni/internal/platform/version"
)

const (
	shutdownTimeout     = 10 * time.Second
	memoryCacheCleanup  = time.Minute
	scoreRequestTimeout = 30 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Invalid server config: %v", err)
	}
	return cfg
}

func setupDB(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.NewMetricsTracer(metrics.NewDBMetrics(reg)))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if _, err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

// setupCache returns the dividend cache and, for the redis backend, the client
// behind it so readiness can ping it.
func setupCache(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (domain.DividendCache, *goredis.Client) {
	if cfg.CacheBackend == config.CacheBackendMemory {
		slog.Info("Using in-process dividend cache")
		return memory.NewDividendCache(memoryCacheCleanup), nil
	}

	redisMetrics := metrics.NewRedisMetrics(reg)
	client, err := redis.NewClient(ctx, cfg.RedisURL,
		redis.NewMetricsHook(redisMetrics),
		redis.NewCircuitBreakerHook(redis.BreakerSettings{
			FailureThreshold: uint(cfg.RedisBreakerFailures),
			Delay:            cfg.RedisBreakerDelay,
		}, redisMetrics),
	)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return redis.NewDividendCache(client), client
}

func setupResolver(cfg *config.Config, cache domain.DividendCache, reg prometheus.Registerer) *app.Resolver {
	ledgerClient, err := ledger.NewClient(ledger.Options{
		URL:           cfg.ChainURL,
		MaxConcurrent: cfg.LedgerMaxConcurrent,
		MaxAttempts:   cfg.LedgerMaxRetries,
		RetryBackoff:  cfg.LedgerRetryBackoff,
		DialTimeout:   cfg.LedgerDialTimeout,
		CallTimeout:   cfg.LedgerCallTimeout,
	}, metrics.NewLedgerMetrics(reg))
	if err != nil {
		slog.Error("Failed to create ledger client", "error", err)
		os.Exit(1)
	}

	return app.NewResolver(cache, ledgerClient, app.ResolverOptions{
		TTL:         cfg.DividendCacheTTL,
		NegativeTTL: cfg.DividendNegativeTTL,
		Dedupe:      cfg.ResolverDedupe,
	}, metrics.NewCacheMetrics(reg))
}

func setupAggregator(cfg *config.Config, clock clockwork.Clock, reg prometheus.Registerer) *app.Aggregator {
	sentimentMetrics := metrics.NewSentimentMetrics(reg)

	searcher, err := datura.NewClient(datura.Options{
		APIKey:    cfg.DaturaAPIKey,
		BaseURL:   cfg.DaturaBaseURL,
		DaysRange: cfg.TweetDaysRange,
		Limit:     cfg.TweetLimit,
	}, clock, sentimentMetrics)
	if err != nil {
		slog.Error("Failed to create search client", "error", err)
		os.Exit(1)
	}

	scorer, err := chutes.NewScorer(chutes.Options{
		APIToken:      cfg.ChutesAPIToken,
		BaseURL:       cfg.ChutesBaseURL,
		Model:         cfg.ChutesModel,
		MaxConcurrent: cfg.ChutesMaxConcurrent,
		MaxTokens:     cfg.ChutesMaxTokens,
		Temperature:   cfg.ChutesTemperature,
		Timeout:       scoreRequestTimeout,
	}, sentimentMetrics)
	if err != nil {
		slog.Error("Failed to create sentiment scorer", "error", err)
		os.Exit(1)
	}

	return app.NewAggregator(searcher, scorer, sentimentMetrics)
}

// tradePipeline is the queue the API enqueues on plus whatever drains it.
type tradePipeline struct {
	queue domain.TradeJobQueue
	stop  func(ctx context.Context)
}

func setupTradePipeline(ctx context.Context, cfg *config.Config, aggregator *app.Aggregator, clock clockwork.Clock, reg prometheus.Registerer) tradePipeline {
	jobMetrics := metrics.NewJobMetrics(reg)

	brokers := cfg.KafkaBrokerList()
	if len(brokers) == 0 {
		slog.Warn("KAFKA_BROKERS not set, running trade jobs in-process and logging stake actions")
		runner := app.NewTradeRunner(aggregator, queue.LogActuator{}, cfg.StakeUnitRao, clock, jobMetrics)
		q := queue.NewLocalQueue(cfg.LocalQueueSize, cfg.TradeWorkers, runner.Handle, jobMetrics)
		q.Start()
		return tradePipeline{
			queue: q,
			stop: func(ctx context.Context) {
				if err := q.Shutdown(ctx); err != nil {
					slog.Error("Trade queue shutdown error", "error", err)
				}
			},
		}
	}

	publisher := kafka.NewTradeJobPublisher(brokers, cfg.TradeJobsTopic, jobMetrics)
	actuator := kafka.NewStakeActionPublisher(brokers, cfg.StakeActionsTopic)
	runner := app.NewTradeRunner(aggregator, actuator, cfg.StakeUnitRao, clock, jobMetrics)
	consumer := kafka.NewTradeJobConsumer(brokers, cfg.KafkaGroupID, cfg.TradeJobsTopic, cfg.TradeWorkers)

	consumeCtx, cancelConsume := context.WithCancel(ctx)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		if err := consumer.Run(consumeCtx, runner.Handle); err != nil {
			slog.Error("Trade job consumer stopped", "error", err)
		}
	}()
	slog.Info("Trade jobs via Kafka", "brokers", brokers, "topic", cfg.TradeJobsTopic, "group", cfg.KafkaGroupID)

	return tradePipeline{
		queue: publisher,
		stop: func(ctx context.Context) {
			cancelConsume()
			select {
			case <-consumed:
			case <-ctx.Done():
				slog.Warn("Trade jobs still running at shutdown deadline")
			}
			for name, closer := range map[string]interface{ Close() error }{
				"consumer":  consumer,
				"publisher": publisher,
				"actuator":  actuator,
			} {
				if err := closer.Close(); err != nil {
					slog.Error("Failed to close Kafka client", "client", name, "error", err)
				}
			}
		},
	}
}

func runGracefulShutdown(srv *httpserver.Server, pipeline tradePipeline) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		pipeline.stop(shutdownCtx)

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Version, "cache", cfg.CacheBackend)

	ctx := context.Background()
	reg := metrics.NewRegistry()

	pool := setupDB(ctx, cfg, reg)
	defer pool.Close()

	cache, redisClient := setupCache(ctx, cfg, reg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	resolver := setupResolver(cfg, cache, reg)
	aggregator := setupAggregator(cfg, clock, reg)
	pipeline := setupTradePipeline(ctx, cfg, aggregator, clock, reg)

	appSvc := app.NewService(resolver, pipeline.queue, postgres.NewUserRepo(pool), clock, cfg.TestToken)

	checks := []httpserver.HealthCheck{{Name: "postgres", Check: pool.Ping}}
	if redisClient != nil {
		checks = append(checks, httpserver.HealthCheck{
			Name:     "redis",
			Optional: true,
			Check:    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	srv := httpserver.NewServer(cfg, appSvc, reg, checks)

	done := runGracefulShutdown(srv, pipeline)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
