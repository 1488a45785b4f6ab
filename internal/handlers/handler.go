// Package handlers holds the worker's job handlers: task creation, done,
// replan, reminder dispatch and escalation dispatch.
package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
	"github.com/2lu3/tetsumon-dayori/internal/extraction"
	"github.com/2lu3/tetsumon-dayori/internal/slack"
)

// Handler processes jobs of one name.
type Handler interface {
	Handle(ctx context.Context, job *domain.Job) error
	JobName() domain.JobName
}

// TaskStore is the part of the task repository the handlers use.
type TaskStore interface {
	CreateOrMerge(ctx context.Context, task *domain.Task) (*domain.Task, bool, error)
	GetByID(ctx context.Context, id int64) (*domain.Task, error)
	GetByTaskMessage(ctx context.Context, taskMessageID string) (*domain.Task, error)
	SetTrackingMessage(ctx context.Context, id int64, taskMessageID string) (bool, error)
	ApplyReplan(ctx context.Context, id int64, assignee string, due *domain.Date, plan domain.Plan) (bool, error)
	AdvanceReminder(ctx context.Context, id int64, prev, next *time.Time, kind domain.RemindKind) (bool, error)
	Resolve(ctx context.Context, id int64, status domain.Status) (bool, error)
}

// Gateway is the messaging platform. *slack.Client satisfies it.
type Gateway interface {
	Permalink(ctx context.Context, channel, ts string) (string, error)
	Reactors(ctx context.Context, channel, ts, reaction string) ([]string, error)
	PostMessage(ctx context.Context, channel, text, threadTS string) (string, error)
	AddReaction(ctx context.Context, channel, ts, name string) error
	Replies(ctx context.Context, channel, ts string) ([]slack.ThreadMessage, error)
}

// Extractor turns thread text into an assignee and due date.
type Extractor interface {
	Extract(ctx context.Context, thread string, now time.Time) (extraction.Result, error)
}

// Enqueuer publishes follow-up jobs. *kafka.JobQueue satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, name domain.JobName, key string, args any) error
}

// Sequencer orders concurrent replans of one task.
type Sequencer interface {
	Begin(ctx context.Context, taskID int64) (int64, error)
	IsLatest(ctx context.Context, taskID, seq int64) (bool, error)
}

// base carries what every handler shares.
type base struct {
	logger *slog.Logger
	now    func() time.Time
	loc    *time.Location
}

// Option configures a handler.
type Option func(*base)

// WithLogger sets the handler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *base) { b.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithLocation sets the workspace timezone used for plan arithmetic.
func WithLocation(loc *time.Location) Option {
	return func(b *base) { b.loc = loc }
}

func newBase(opts []Option) base {
	b := base{
		logger: slog.Default(),
		now:    time.Now,
		loc:    time.UTC,
	}
	for _, o := range opts {
		o(&b)
	}
	return b
}

// Registry maps job names to their handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.JobName]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.JobName]Handler)}
}

// Register adds a handler. Safe to call concurrently.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.JobName()] = h
}

// Get returns the handler for the job's name, or an InvalidJobError when
// none is registered.
func (r *Registry) Get(job *domain.Job) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[job.Name]
	if !ok {
		return nil, &domain.InvalidJobError{JobID: job.ID, Name: job.Name, Reason: "no handler registered"}
	}
	return h, nil
}

// Names returns the registered job names.
func (r *Registry) Names() []domain.JobName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]domain.JobName, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	return names
}
