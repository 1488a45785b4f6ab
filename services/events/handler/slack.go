package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
	"github.com/2lu3/tetsumon-dayori/pkg/telemetry"
	"github.com/2lu3/tetsumon-dayori/services/events"
)

// DefaultEnqueueTimeout keeps the callback well inside Slack's 3 second
// acknowledgement deadline.
const DefaultEnqueueTimeout = 2 * time.Second

// Enqueuer publishes jobs onto the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, name domain.JobName, key string, args any) error
}

// Verifier authenticates an inbound request body.
type Verifier interface {
	Verify(header http.Header, body []byte) error
}

// Slack serves the Events API callback.
type Slack struct {
	verifier Verifier
	router   *events.Router
	queue    Enqueuer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSlack creates the events callback handler.
func NewSlack(verifier Verifier, router *events.Router, queue Enqueuer, timeout time.Duration, logger *slog.Logger) *Slack {
	if timeout <= 0 {
		timeout = DefaultEnqueueTimeout
	}
	return &Slack{verifier: verifier, router: router, queue: queue, timeout: timeout, logger: logger}
}

// HandleEvent handles POST /slack/events. It only classifies and enqueues;
// all work happens in the worker.
func (h *Slack) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(r.Context(), "events.handle")
	defer span.End()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "unreadable body")
		return
	}
	if err := h.verifier.Verify(r.Header, body); err != nil {
		telemetry.EventsRejected.Inc()
		h.logger.Warn("rejected event", slog.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	if gjson.GetBytes(body, "type").String() == "url_verification" {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": gjson.GetBytes(body, "challenge").String()})
		return
	}

	route, ok := h.router.Classify(body)
	if !ok {
		telemetry.EventsReceived.WithLabelValues(events.RouteIgnored).Inc()
		w.WriteHeader(http.StatusOK)
		return
	}
	telemetry.EventsReceived.WithLabelValues(string(route.Job)).Inc()
	span.SetAttributes(attribute.String("job.name", string(route.Job)), attribute.String("job.key", route.Key))

	enqCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := h.queue.Enqueue(enqCtx, route.Job, route.Key, route.Args); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue failed")
		h.logger.Error("enqueue failed",
			slog.String("job", string(route.Job)),
			slog.String("key", route.Key),
			slog.String("error", err.Error()),
		)
		// Slack redelivers on a non-2xx response; every job is idempotent.
		writeError(w, http.StatusInternalServerError, "failed to enqueue")
		return
	}

	h.logger.Debug("event routed",
		slog.String("job", string(route.Job)),
		slog.String("key", route.Key),
		slog.String("event_id", gjson.GetBytes(body, "event_id").String()),
	)
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
