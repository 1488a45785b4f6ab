package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
	"github.com/2lu3/tetsumon-dayori/internal/handlers"
	"github.com/2lu3/tetsumon-dayori/internal/kafka"
	"github.com/2lu3/tetsumon-dayori/pkg/retry"
	"github.com/2lu3/tetsumon-dayori/pkg/telemetry"
)

// Worker consumes jobs from the job topics and runs their handlers.
type Worker struct {
	consumer   kafka.Consumer
	producer   kafka.Producer
	registry   *handlers.Registry
	workerID   string
	maxRetries int
	timeout    time.Duration
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *slog.Logger

	wg sync.WaitGroup
}

// Option configures a Worker.
type Option func(*Worker)

func WithRetries(n int) Option             { return func(w *Worker) { w.maxRetries = n } }
func WithTimeout(d time.Duration) Option   { return func(w *Worker) { w.timeout = d } }
func WithLogger(l *slog.Logger) Option     { return func(w *Worker) { w.logger = l } }
func WithBaseDelay(d time.Duration) Option { return func(w *Worker) { w.baseDelay = d } }
func WithMaxDelay(d time.Duration) Option  { return func(w *Worker) { w.maxDelay = d } }

// NewWorker constructs a Worker with the given dependencies and options.
func NewWorker(
	workerID string,
	consumer kafka.Consumer,
	producer kafka.Producer,
	registry *handlers.Registry,
	opts ...Option,
) *Worker {
	w := &Worker{
		workerID:   workerID,
		consumer:   consumer,
		producer:   producer,
		registry:   registry,
		maxRetries: 3,
		timeout:    4 * time.Minute,
		baseDelay:  time.Second,
		maxDelay:   30 * time.Second,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts consuming and processing messages. Blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.consumer.Subscribe(ctx, w.processMessage)
}

// Wait blocks until all in-flight jobs finish. Call after Run returns.
func (w *Worker) Wait() { w.wg.Wait() }

// processMessage is the Kafka HandlerFunc, called for each message.
// It returns an error only when the message could neither be handled nor
// dead-lettered, so the offset stays uncommitted and Kafka redelivers it.
func (w *Worker) processMessage(consumerCtx context.Context, msg kafka.Message) error {
	var job domain.Job
	if err := json.Unmarshal(msg.Value, &job); err != nil || job.Name == "" {
		w.logger.Error("malformed job message, dead-lettering",
			slog.String("topic", msg.Topic),
			slog.String("raw", string(msg.Value)),
		)
		return w.deadLetter(consumerCtx, "unknown", string(msg.Key), msg.Value)
	}

	// Child span parented to the trace context extracted from Kafka headers.
	ctx, span := otel.Tracer(telemetry.TracerName).Start(consumerCtx, "worker.process_job")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.name", string(job.Name)),
		attribute.String("worker.id", w.workerID),
	)

	name := string(job.Name)
	log := w.logger.With(
		slog.String("job_id", job.ID),
		slog.String("job", name),
		slog.String("worker_id", w.workerID),
	)

	h, err := w.registry.Get(&job)
	if err != nil {
		log.Error("no handler for job", slog.String("error", err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "no handler registered")
		telemetry.WorkerJobsProcessed.WithLabelValues(name, "invalid").Inc()
		return w.deadLetter(ctx, name, string(msg.Key), msg.Value)
	}

	w.wg.Add(1)
	telemetry.WorkerJobsInFlight.WithLabelValues(name).Inc()
	defer func() {
		telemetry.WorkerJobsInFlight.WithLabelValues(name).Dec()
		w.wg.Done()
	}()

	start := time.Now()
	attempts := 0

	execErr := retry.Do(ctx, retry.Config{
		MaxAttempts: w.maxRetries + 1,
		BaseDelay:   w.baseDelay,
		MaxDelay:    w.maxDelay,
		OnRetry: func(attempt int, retryErr error) {
			telemetry.WorkerRetriesTotal.WithLabelValues(name).Inc()
			log.Warn("attempt failed, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", retryErr.Error()),
			)
		},
	}, func(attempt int) error {
		attempts = attempt
		// Fresh context so the job timeout is independent of consumer
		// shutdown; handler spans are still parented here.
		execCtx, cancel := context.WithTimeout(
			trace.ContextWithSpan(context.Background(), span),
			w.timeout,
		)
		defer cancel()
		err := h.Handle(execCtx, &job)
		var invalid *domain.InvalidJobError
		if errors.As(err, &invalid) {
			return retry.Permanent(err)
		}
		return err
	})

	duration := time.Since(start)
	telemetry.WorkerJobDurationSeconds.WithLabelValues(name).Observe(duration.Seconds())

	if execErr == nil {
		log.Info("job completed",
			slog.Int64("duration_ms", duration.Milliseconds()),
			slog.Int("attempts", attempts),
		)
		telemetry.WorkerJobsProcessed.WithLabelValues(name, "done").Inc()
		return nil
	}

	log.Error("job failed, dead-lettering",
		slog.Int("attempts", attempts),
		slog.String("error", execErr.Error()),
		slog.Int64("duration_ms", duration.Milliseconds()),
	)
	span.RecordError(execErr)
	span.SetStatus(codes.Error, "job failed")
	telemetry.WorkerJobsProcessed.WithLabelValues(name, "dead").Inc()
	return w.deadLetter(ctx, name, string(msg.Key), msg.Value)
}

func (w *Worker) deadLetter(ctx context.Context, name, key string, raw []byte) error {
	if err := w.producer.Publish(ctx, kafka.TopicDLQ, key, raw); err != nil {
		w.logger.Error("failed to publish to DLQ", slog.String("job", name), slog.String("error", err.Error()))
		return fmt.Errorf("dead-letter %s: %w", name, err)
	}
	telemetry.WorkerDLQTotal.WithLabelValues(name).Inc()
	return nil
}
