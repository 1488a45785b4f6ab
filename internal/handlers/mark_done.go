package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
	"github.com/2lu3/tetsumon-dayori/pkg/telemetry"
)

// MarkDoneHandler resolves the task behind a tracking post.
type MarkDoneHandler struct {
	base
	store TaskStore
}

// NewMarkDoneHandler returns a MarkDoneHandler.
func NewMarkDoneHandler(store TaskStore, opts ...Option) *MarkDoneHandler {
	return &MarkDoneHandler{base: newBase(opts), store: store}
}

func (h *MarkDoneHandler) JobName() domain.JobName { return domain.JobMarkDone }

func (h *MarkDoneHandler) Handle(ctx context.Context, job *domain.Job) error {
	var args domain.MarkDoneArgs
	if err := job.Decode(&args); err != nil {
		return err
	}
	if args.TaskMessageID == "" {
		return &domain.InvalidJobError{JobID: job.ID, Name: job.Name, Reason: "missing task message id"}
	}

	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "handler.mark_done")
	defer span.End()
	span.SetAttributes(attribute.String("task.message_id", args.TaskMessageID))

	task, err := h.store.GetByTaskMessage(ctx, args.TaskMessageID)
	var notFound *domain.TaskNotFoundError
	if errors.As(err, &notFound) {
		h.logger.Warn("done reaction on a message that is not a tracking post",
			slog.String("task_message_id", args.TaskMessageID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	log := h.logger.With(slog.Int64("task_id", task.ID), slog.String("actor", args.Actor))

	if task.Status != domain.StatusOpen {
		log.Debug("task already resolved", slog.String("status", string(task.Status)))
		return nil
	}
	resolved, err := h.store.Resolve(ctx, task.ID, domain.StatusDone)
	if err != nil {
		return fmt.Errorf("resolve task: %w", err)
	}
	if !resolved {
		log.Debug("task resolved concurrently")
		return nil
	}
	telemetry.TasksResolved.WithLabelValues(string(domain.StatusDone)).Inc()
	log.Info("task marked done")
	return nil
}
