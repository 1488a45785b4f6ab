package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
	"github.com/2lu3/tetsumon-dayori/pkg/telemetry"
)

// CreateTaskHandler materializes a task from a reacted-to source message.
type CreateTaskHandler struct {
	base
	store       TaskStore
	gateway     Gateway
	queue       Enqueuer
	taskChannel string
}

// NewCreateTaskHandler returns a handler posting tracking messages to taskChannel.
func NewCreateTaskHandler(store TaskStore, gateway Gateway, queue Enqueuer, taskChannel string, opts ...Option) *CreateTaskHandler {
	return &CreateTaskHandler{
		base:        newBase(opts),
		store:       store,
		gateway:     gateway,
		queue:       queue,
		taskChannel: taskChannel,
	}
}

func (h *CreateTaskHandler) JobName() domain.JobName { return domain.JobCreateTask }

// Handle is safe to repeat: the task row is keyed by the source message, and
// the remaining steps only run while the row has no tracking post.
func (h *CreateTaskHandler) Handle(ctx context.Context, job *domain.Job) error {
	var args domain.CreateTaskArgs
	if err := job.Decode(&args); err != nil {
		return err
	}
	if args.SourceChannel == "" || args.SourceMessageID == "" {
		return &domain.InvalidJobError{JobID: job.ID, Name: job.Name, Reason: "missing source message reference"}
	}

	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "handler.create_task")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.source_channel", args.SourceChannel),
		attribute.String("task.source_message_id", args.SourceMessageID),
	)
	fail := func(msg string, err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		return fmt.Errorf("%s: %w", msg, err)
	}

	permalink, err := h.gateway.Permalink(ctx, args.SourceChannel, args.SourceMessageID)
	if err != nil {
		return fail("resolve source permalink", err)
	}
	reactors, err := h.gateway.Reactors(ctx, args.SourceChannel, args.SourceMessageID, domain.ReactionCreate)
	if err != nil {
		return fail("list reactors", err)
	}
	reactors = domain.MergeReactors(reactors, args.Reactor)

	now := h.now()
	plan := domain.ComputePlan(nil, now, now, h.loc)
	task, created, err := h.store.CreateOrMerge(ctx, &domain.Task{
		SourceChannel:   args.SourceChannel,
		SourceMessageID: args.SourceMessageID,
		SourcePermalink: permalink,
		TaskChannel:     h.taskChannel,
		CreatedAt:       now,
		Reactors:        reactors,
		NextRemindAt:    plan.NextRemindAt,
		RemindKind:      plan.Kind,
		EscalateAt:      &plan.EscalateAt,
	})
	if err != nil {
		return fail("store task", err)
	}
	span.SetAttributes(attribute.Int64("task.id", task.ID))
	log := h.logger.With(slog.Int64("task_id", task.ID))
	if created {
		telemetry.TasksCreated.Inc()
	}

	if task.HasTrackingPost() {
		log.Info("task already tracked, merged reactors", slog.Int("reactors", len(task.Reactors)))
		// A retry after a failed replan enqueue lands here before any replan
		// has been stored.
		if task.Status == domain.StatusOpen && task.ReplannedAt == nil {
			if err := h.queue.Enqueue(ctx, domain.JobReplan, task.TaskMessageID, domain.ReplanArgs{TaskID: task.ID}); err != nil {
				return fail("enqueue replan", err)
			}
		}
		return nil
	}

	trackingTS, err := h.gateway.PostMessage(ctx, task.TaskChannel, task.SourcePermalink, "")
	if err != nil {
		return fail("post tracking message", err)
	}
	set, err := h.store.SetTrackingMessage(ctx, task.ID, trackingTS)
	if err != nil {
		return fail("record tracking message", err)
	}
	if !set {
		// A concurrent run recorded its own post first; it owns the follow-up steps.
		log.Warn("tracking message already recorded by another run", slog.String("orphan_ts", trackingTS))
		return nil
	}
	task.TaskMessageID = trackingTS

	if err := h.gateway.AddReaction(ctx, task.TaskChannel, trackingTS, domain.ReactionDone); err != nil {
		log.Error("failed to mark tracking post", slog.String("error", err.Error()))
	}

	trackingLink, err := h.gateway.Permalink(ctx, task.TaskChannel, trackingTS)
	if err != nil {
		log.Warn("failed to resolve tracking permalink", slog.String("error", err.Error()))
		trackingLink = ""
	}
	reply := CreatedReplyText(Mentions("", task.Reactors), trackingLink)
	if _, err := h.gateway.PostMessage(ctx, task.SourceChannel, reply, task.SourceMessageID); err != nil {
		log.Error("failed to reply in source thread", slog.String("error", err.Error()))
	}

	if err := h.queue.Enqueue(ctx, domain.JobReplan, trackingTS, domain.ReplanArgs{TaskID: task.ID}); err != nil {
		return fail("enqueue replan", err)
	}

	log.Info("task created", slog.String("task_message_id", trackingTS))
	return nil
}
