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

// ReminderHandler posts a due reminder and advances the task's plan.
type ReminderHandler struct {
	base
	store   TaskStore
	gateway Gateway
}

// NewReminderHandler returns a ReminderHandler.
func NewReminderHandler(store TaskStore, gateway Gateway, opts ...Option) *ReminderHandler {
	return &ReminderHandler{base: newBase(opts), store: store, gateway: gateway}
}

func (h *ReminderHandler) JobName() domain.JobName { return domain.JobSendReminder }

// Handle re-reads the task and does nothing unless the reminder the scanner
// saw is still armed and due.
func (h *ReminderHandler) Handle(ctx context.Context, job *domain.Job) error {
	var args domain.ReminderArgs
	if err := job.Decode(&args); err != nil {
		return err
	}
	if args.TaskID == 0 {
		return &domain.InvalidJobError{JobID: job.ID, Name: job.Name, Reason: "missing task id"}
	}

	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "handler.send_reminder")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("task.id", args.TaskID),
		attribute.String("task.remind_kind", string(args.Kind)),
	)

	task, err := h.store.GetByID(ctx, args.TaskID)
	var notFound *domain.TaskNotFoundError
	if errors.As(err, &notFound) {
		h.logger.Warn("reminder for unknown task", slog.Int64("task_id", args.TaskID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	log := h.logger.With(slog.Int64("task_id", task.ID))

	now := h.now()
	switch {
	case task.Status != domain.StatusOpen:
		log.Debug("reminder skipped, task resolved", slog.String("status", string(task.Status)))
		return nil
	case task.RemindKind == domain.RemindNone:
		log.Debug("reminder skipped, plan cleared")
		return nil
	case args.Kind != domain.RemindNone && task.RemindKind != args.Kind:
		log.Debug("reminder skipped, plan changed",
			slog.String("seen", string(args.Kind)), slog.String("current", string(task.RemindKind)))
		return nil
	case task.NextRemindAt != nil && task.NextRemindAt.After(now):
		log.Debug("reminder skipped, not due yet", slog.Time("next_remind_at", *task.NextRemindAt))
		return nil
	}

	text := ReminderText(task.RemindKind, Mentions(task.Assignee, task.Reactors), task.SourcePermalink)
	if _, err := h.gateway.PostMessage(ctx, task.TaskChannel, text, task.TaskMessageID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "post reminder")
		return fmt.Errorf("post reminder: %w", err)
	}
	telemetry.RemindersSent.WithLabelValues(string(task.RemindKind)).Inc()

	next, kind := domain.NextReminder(task.RemindKind, task.NextRemindAt, now)
	advanced, err := h.store.AdvanceReminder(ctx, task.ID, task.NextRemindAt, next, kind)
	if err != nil {
		return fmt.Errorf("advance reminder: %w", err)
	}
	if !advanced {
		log.Debug("plan changed while reminding, leaving it as is")
		return nil
	}

	if next != nil {
		log.Info("reminder sent", slog.String("kind", string(task.RemindKind)), slog.Time("next_remind_at", *next))
	} else {
		log.Info("reminder sent", slog.String("kind", string(task.RemindKind)))
	}
	return nil
}
