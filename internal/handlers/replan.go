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

// ReplanHandler re-reads a task's thread, extracts assignee and due date,
// and replaces the task's reminder plan.
type ReplanHandler struct {
	base
	store     TaskStore
	gateway   Gateway
	extractor Extractor
	seq       Sequencer
}

// NewReplanHandler returns a ReplanHandler. seq may be nil, in which case
// overlapping runs for one task are not ordered and the last to finish wins.
func NewReplanHandler(store TaskStore, gateway Gateway, extractor Extractor, seq Sequencer, opts ...Option) *ReplanHandler {
	return &ReplanHandler{
		base:      newBase(opts),
		store:     store,
		gateway:   gateway,
		extractor: extractor,
		seq:       seq,
	}
}

func (h *ReplanHandler) JobName() domain.JobName { return domain.JobReplan }

func (h *ReplanHandler) Handle(ctx context.Context, job *domain.Job) error {
	var args domain.ReplanArgs
	if err := job.Decode(&args); err != nil {
		return err
	}
	if args.TaskID == 0 && args.TaskMessageID == "" {
		return &domain.InvalidJobError{JobID: job.ID, Name: job.Name, Reason: "missing task reference"}
	}

	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "handler.replan")
	defer span.End()
	fail := func(msg string, err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		return fmt.Errorf("%s: %w", msg, err)
	}

	task, err := h.load(ctx, args)
	var notFound *domain.TaskNotFoundError
	if errors.As(err, &notFound) {
		h.logger.Warn("replan for unknown task", slog.String("key", notFound.Key))
		return nil
	}
	if err != nil {
		return fail("load task", err)
	}
	span.SetAttributes(attribute.Int64("task.id", task.ID))
	log := h.logger.With(slog.Int64("task_id", task.ID))

	if task.Status != domain.StatusOpen || !task.HasTrackingPost() {
		log.Debug("replan skipped", slog.String("status", string(task.Status)))
		telemetry.Replans.WithLabelValues("skipped").Inc()
		return nil
	}

	var seq int64
	if h.seq != nil {
		if seq, err = h.seq.Begin(ctx, task.ID); err != nil {
			return fail("begin replan", err)
		}
	}

	msgs, err := h.gateway.Replies(ctx, task.TaskChannel, task.TaskMessageID)
	if err != nil {
		return fail("fetch thread", err)
	}
	res, err := h.extractor.Extract(ctx, RenderThread(msgs), h.now())
	if err != nil {
		return fail("extract", err)
	}

	if h.seq != nil {
		latest, err := h.seq.IsLatest(ctx, task.ID, seq)
		if err != nil {
			return fail("check replan order", err)
		}
		if !latest {
			log.Info("discarding replan result", slog.String("reason", (&domain.StaleReplanError{TaskID: task.ID, Seq: seq}).Error()))
			telemetry.Replans.WithLabelValues("stale").Inc()
			return nil
		}
	}

	plan := domain.ComputePlan(res.DueDate, task.CreatedAt, h.now(), h.loc)
	applied, err := h.store.ApplyReplan(ctx, task.ID, res.Assignee, res.DueDate, plan)
	if err != nil {
		return fail("store replan", err)
	}
	if !applied {
		log.Debug("task resolved during replan")
		telemetry.Replans.WithLabelValues("skipped").Inc()
		return nil
	}
	telemetry.Replans.WithLabelValues("applied").Inc()

	if err := h.gateway.AddReaction(ctx, task.TaskChannel, task.TaskMessageID, domain.ReactionRecognized); err != nil {
		log.Debug("could not mark tracking post as recognized", slog.String("error", err.Error()))
	}

	attrs := []any{
		slog.String("assignee", res.Assignee),
		slog.String("remind_kind", string(plan.Kind)),
	}
	if res.DueDate != nil {
		attrs = append(attrs, slog.String("due_date", res.DueDate.String()))
	}
	if plan.NextRemindAt != nil {
		attrs = append(attrs, slog.Time("next_remind_at", *plan.NextRemindAt))
	}
	log.Info("task replanned", attrs...)
	return nil
}

func (h *ReplanHandler) load(ctx context.Context, args domain.ReplanArgs) (*domain.Task, error) {
	if args.TaskID != 0 {
		return h.store.GetByID(ctx, args.TaskID)
	}
	return h.store.GetByTaskMessage(ctx, args.TaskMessageID)
}
