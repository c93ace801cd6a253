// Command worker consumes interview evaluation jobs from the Redpanda queue,
// runs the evaluation pipeline, and persists reports.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/openai"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/notifier"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/evaluation"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/service/ratelimiter"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Expose job-queue and AI metrics on a dedicated endpoint so Prometheus
	// can scrape the worker separately from the HTTP server.
	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	sessionRepo := postgres.NewSessionRepo(pool)
	evalRepo := postgres.NewEvaluationRepo(pool)

	// Outbound model-call throttling is optional and Redis-backed.
	var limiter ratelimiter.Limiter
	if cfg.RedisURL != "" && cfg.AIRateLimitPerMin > 0 {
		opts, perr := redis.ParseURL(cfg.RedisURL)
		if perr != nil {
			slog.Error("invalid redis url", slog.Any("error", perr))
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		limiter = ratelimiter.NewRedisLuaLimiter(rdb, map[string]ratelimiter.BucketConfig{
			openai.RateLimitKey: ratelimiter.NewBucketConfigFromPerMinute(cfg.AIRateLimitPerMin),
		})
		slog.Info("AI rate limiter enabled", slog.Int("per_minute", cfg.AIRateLimitPerMin))
	}

	aiClient := openai.New(cfg, limiter)
	counter := tokencount.NewCounter()
	pipeline := evaluation.NewPipeline(aiClient, counter, cfg.OpenAIModel)

	callbacks := notifier.New(cfg.CallbackBaseURL, cfg.CallbackTimeout)

	evalSvc := usecase.NewEvaluateService(sessionRepo, evalRepo, pipeline, callbacks, cfg.CallbackTimeout)

	consumer, err := redpanda.NewConsumer(cfg.KafkaBrokers, "ai-interview-evaluator-workers", evalSvc.HandleEvaluateJob)
	if err != nil {
		slog.Error("redpanda consumer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer consumer.Close()

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("worker consuming", slog.String("topic", redpanda.TopicEvaluate))
	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("consumer stopped", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("worker shut down")
}
