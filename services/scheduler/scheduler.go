package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
	"github.com/2lu3/tetsumon-dayori/pkg/telemetry"
)

const (
	// DefaultSpec fires both scans at the top of every minute.
	DefaultSpec = "* * * * *"

	// DefaultLeaderTTL outlives the gap between two DefaultSpec ticks so the
	// holder renews its lease before it lapses.
	DefaultLeaderTTL = 90 * time.Second

	defaultBatch = 500
)

// DueLister finds tasks whose reminder or escalation time has arrived.
type DueLister interface {
	ListDueReminders(ctx context.Context, now time.Time, limit int) ([]*domain.Task, error)
	ListDueEscalations(ctx context.Context, now time.Time, limit int) ([]*domain.Task, error)
}

// Enqueuer publishes dispatch jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, name domain.JobName, key string, args any) error
}

// Claimer suppresses re-enqueueing a dispatch that is already in flight.
type Claimer interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Leader reports whether this instance may run the scans.
type Leader interface {
	Acquire(ctx context.Context) (leader, acquired bool, err error)
}

// Scheduler runs the reminder and escalation scans on a cron cadence.
// Only the instance holding the leader lease scans.
type Scheduler struct {
	store  DueLister
	queue  Enqueuer
	claims Claimer
	leader Leader
	spec   string
	loc    *time.Location
	batch  int
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithSpec(spec string) Option            { return func(s *Scheduler) { s.spec = spec } }
func WithLocation(loc *time.Location) Option { return func(s *Scheduler) { s.loc = loc } }
func WithBatch(n int) Option                 { return func(s *Scheduler) { s.batch = n } }
func WithClock(now func() time.Time) Option  { return func(s *Scheduler) { s.now = now } }
func WithLogger(l *slog.Logger) Option       { return func(s *Scheduler) { s.logger = l } }

// NewScheduler returns a Scheduler. leader may be nil to always scan.
func NewScheduler(store DueLister, queue Enqueuer, claims Claimer, leader Leader, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:  store,
		queue:  queue,
		claims: claims,
		leader: leader,
		spec:   DefaultSpec,
		loc:    time.UTC,
		batch:  defaultBatch,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run scans once immediately, then on every cron tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("parse cron spec %q: %w", s.spec, err)
	}

	s.Tick(ctx)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Tick runs both scans if this instance is the leader.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.leader != nil {
		leader, acquired, err := s.leader.Acquire(ctx)
		if err != nil {
			s.logger.Error("leader election", slog.String("error", err.Error()))
			return
		}
		if acquired {
			s.logger.Info("acquired scheduler leadership")
		}
		if !leader {
			return
		}
	}

	now := s.now()
	if _, err := s.ScanReminders(ctx, now); err != nil {
		s.logger.Error("reminder scan", slog.String("error", err.Error()))
	}
	if _, err := s.ScanEscalations(ctx, now); err != nil {
		s.logger.Error("escalation scan", slog.String("error", err.Error()))
	}
}

// ScanReminders enqueues one send_reminder job per open task whose reminder
// is due. It returns the number of jobs enqueued.
func (s *Scheduler) ScanReminders(ctx context.Context, now time.Time) (int, error) {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "scheduler.scan_reminders")
	defer span.End()

	tasks, err := s.store.ListDueReminders(ctx, now, s.batch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range tasks {
		if t.NextRemindAt == nil {
			continue
		}
		claim := "remind:" + strconv.FormatInt(t.ID, 10) + ":" + strconv.FormatInt(t.NextRemindAt.Unix(), 10)
		args := domain.ReminderArgs{TaskID: t.ID, Kind: t.RemindKind}
		if s.dispatch(ctx, "reminder", claim, domain.JobSendReminder, t, args) {
			n++
		}
	}
	span.SetAttributes(attribute.Int("scan.due", len(tasks)), attribute.Int("scan.enqueued", n))
	return n, nil
}

// ScanEscalations enqueues one escalate job per open task past its
// escalation time. It returns the number of jobs enqueued.
func (s *Scheduler) ScanEscalations(ctx context.Context, now time.Time) (int, error) {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "scheduler.scan_escalations")
	defer span.End()

	tasks, err := s.store.ListDueEscalations(ctx, now, s.batch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range tasks {
		claim := "escalate:" + strconv.FormatInt(t.ID, 10)
		if s.dispatch(ctx, "escalation", claim, domain.JobEscalate, t, domain.EscalationArgs{TaskID: t.ID}) {
			n++
		}
	}
	span.SetAttributes(attribute.Int("scan.due", len(tasks)), attribute.Int("scan.enqueued", n))
	return n, nil
}

func (s *Scheduler) dispatch(ctx context.Context, scan, claim string, name domain.JobName, t *domain.Task, args any) bool {
	log := s.logger.With(slog.String("scan", scan), slog.Int64("task_id", t.ID))

	ok, err := s.claims.Claim(ctx, claim)
	if err != nil {
		log.Error("claim failed", slog.String("error", err.Error()))
		return false
	}
	if !ok {
		telemetry.ScanDuplicates.WithLabelValues(scan).Inc()
		log.Debug("dispatch already in flight")
		return false
	}

	if err := s.queue.Enqueue(ctx, name, jobKey(t), args); err != nil {
		log.Error("enqueue failed", slog.String("error", err.Error()))
		if err := s.claims.Release(ctx, claim); err != nil {
			log.Error("release claim failed", slog.String("error", err.Error()))
		}
		return false
	}
	telemetry.ScanHits.WithLabelValues(scan).Inc()
	return true
}

// jobKey keeps every job for a task on one partition: the tracking post id
// where one exists, as the event router uses.
func jobKey(t *domain.Task) string {
	if t.TaskMessageID != "" {
		return t.TaskMessageID
	}
	return "task:" + strconv.FormatInt(t.ID, 10)
}
