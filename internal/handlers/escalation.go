package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
	"github.com/2lu3/tetsumon-dayori/pkg/telemetry"
)

// EscalationHandler closes a task left open past the escalation horizon.
type EscalationHandler struct {
	base
	store   TaskStore
	gateway Gateway
}

// NewEscalationHandler returns an EscalationHandler.
func NewEscalationHandler(store TaskStore, gateway Gateway, opts ...Option) *EscalationHandler {
	return &EscalationHandler{base: newBase(opts), store: store, gateway: gateway}
}

func (h *EscalationHandler) JobName() domain.JobName { return domain.JobEscalate }

func (h *EscalationHandler) Handle(ctx context.Context, job *domain.Job) error {
	var args domain.EscalationArgs
	if err := job.Decode(&args); err != nil {
		return err
	}
	if args.TaskID == 0 {
		return &domain.InvalidJobError{JobID: job.ID, Name: job.Name, Reason: "missing task id"}
	}

	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "handler.escalate")
	defer span.End()
	span.SetAttributes(attribute.Int64("task.id", args.TaskID))

	task, err := h.store.GetByID(ctx, args.TaskID)
	var notFound *domain.TaskNotFoundError
	if errors.As(err, &notFound) {
		h.logger.Warn("escalation for unknown task", slog.Int64("task_id", args.TaskID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	log := h.logger.With(slog.Int64("task_id", task.ID))

	if task.Status != domain.StatusOpen {
		log.Debug("escalation skipped, task resolved", slog.String("status", string(task.Status)))
		return nil
	}
	if task.EscalateAt == nil || task.EscalateAt.After(h.now()) {
		log.Debug("escalation skipped, not due")
		return nil
	}

	if _, err := h.gateway.PostMessage(ctx, task.TaskChannel, EscalationText(task.SourcePermalink), ""); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "post escalation notice")
		return fmt.Errorf("post escalation notice: %w", err)
	}

	closed, err := h.store.Resolve(ctx, task.ID, domain.StatusClosed)
	if err != nil {
		return fmt.Errorf("close task: %w", err)
	}
	if !closed {
		log.Debug("task resolved while escalating")
		return nil
	}
	telemetry.TasksResolved.WithLabelValues(string(domain.StatusClosed)).Inc()
	log.Info("task escalated and closed")
	return nil
}
