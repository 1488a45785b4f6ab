package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/2lu3/tetsumon-dayori/internal/kafka"
	"github.com/2lu3/tetsumon-dayori/internal/postgres"
	redisstore "github.com/2lu3/tetsumon-dayori/internal/redis"
	"github.com/2lu3/tetsumon-dayori/internal/slack"
	"github.com/2lu3/tetsumon-dayori/pkg/telemetry"
	"github.com/2lu3/tetsumon-dayori/services/events"
	"github.com/2lu3/tetsumon-dayori/services/events/config"
	"github.com/2lu3/tetsumon-dayori/services/events/handler"
	"github.com/2lu3/tetsumon-dayori/services/events/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Slack events endpoint and task API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("http-port", "8080", "HTTP server port")
	serveCmd.Flags().String("metrics-addr", ":9095", "Prometheus metrics server address")
	serveCmd.Flags().String("kafka-brokers", "localhost:9092", "comma-separated Kafka broker addresses")
	serveCmd.Flags().String("redis-addr", "localhost:6379", "Redis address (host:port)")
	serveCmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")
	serveCmd.Flags().String("slack-signing-secret", "", "Slack app signing secret")
	serveCmd.Flags().String("slack-task-channel", "", "channel id tracking posts live in")
	serveCmd.Flags().String("slack-bot-user-id", "", "the bot's own user id; its events are ignored")
	serveCmd.Flags().Duration("enqueue-timeout", handler.DefaultEnqueueTimeout, "max time to spend enqueueing one event")

	bindFlag("http_port", serveCmd.Flags(), "http-port")
	bindFlag("metrics_addr", serveCmd.Flags(), "metrics-addr")
	bindFlag("kafka_brokers", serveCmd.Flags(), "kafka-brokers")
	bindFlag("redis_addr", serveCmd.Flags(), "redis-addr")
	bindFlag("otel_endpoint", serveCmd.Flags(), "otel-endpoint")
	bindFlag("slack_signing_secret", serveCmd.Flags(), "slack-signing-secret")
	bindFlag("slack_task_channel", serveCmd.Flags(), "slack-task-channel")
	bindFlag("slack_bot_user_id", serveCmd.Flags(), "slack-bot-user-id")
	bindFlag("enqueue_timeout", serveCmd.Flags(), "enqueue-timeout")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = viper.BindEnv("slack_signing_secret", "SLACK_SIGNING_SECRET")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := buildLogger(cfg.LogLevel, "events")

	shutdownTracer, err := telemetry.InitTracer(context.Background(), "events", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	producer := kafka.NewProducer(strings.Split(cfg.KafkaBrokers, ","))
	defer func() { _ = producer.Close() }()

	redisClient := redisstore.NewClient(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := postgres.NewPool(initCtx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	ready := func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		return redisClient.Ping(ctx).Err()
	}

	slackHandler := handler.NewSlack(
		slack.NewVerifier(cfg.SlackSigningSecret),
		events.NewRouter(cfg.SlackTaskChannel, cfg.SlackBotUserID),
		kafka.NewJobQueue(producer),
		cfg.EnqueueTimeout,
		logger,
	)
	tasksHandler := handler.NewTasks(postgres.NewRepository(pool), ready, logger)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.MaxBodySize(1 << 20))
	r.Get("/healthz", tasksHandler.Healthz)
	r.Get("/readyz", tasksHandler.Readyz)
	r.Post("/slack/events", slackHandler.HandleEvent)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tasks/{id}", tasksHandler.GetTask)
	})

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry.StartMetricsServer(runCtx, cfg.MetricsAddr, ready, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("events HTTP starting",
			slog.String("addr", httpSrv.Addr),
			slog.String("task_channel", cfg.SlackTaskChannel),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-runCtx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("shutting down...")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("stopped")
	return nil
}
