package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
	"github.com/2lu3/tetsumon-dayori/internal/extraction"
	"github.com/2lu3/tetsumon-dayori/internal/slack"
)

var jst = time.FixedZone("JST", 9*3600)

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, jst)
}

func clock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newJob(t *testing.T, name domain.JobName, args any) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(name, args)
	require.NoError(t, err)
	return job
}

// memStore mirrors the conditional updates of the Postgres repository.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*domain.Task
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[int64]*domain.Task)}
}

func (s *memStore) put(t *domain.Task) *domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		s.nextID++
		t.ID = s.nextID
	}
	if t.Status == "" {
		t.Status = domain.StatusOpen
	}
	s.tasks[t.ID] = t
	cp := *t
	return &cp
}

func (s *memStore) get(id int64) *domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.tasks[id]
	return &cp
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *memStore) CreateOrMerge(_ context.Context, task *domain.Task) (*domain.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.SourceChannel == task.SourceChannel && t.SourceMessageID == task.SourceMessageID {
			t.Reactors = domain.MergeReactors(t.Reactors, task.Reactors...)
			cp := *t
			return &cp, false, nil
		}
	}
	s.nextID++
	cp := *task
	cp.ID = s.nextID
	cp.Status = domain.StatusOpen
	cp.Reactors = domain.MergeReactors(nil, task.Reactors...)
	s.tasks[cp.ID] = &cp
	out := cp
	return &out, true, nil
}

func (s *memStore) GetByID(_ context.Context, id int64) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, &domain.TaskNotFoundError{Key: "id=" + strconv.FormatInt(id, 10)}
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) GetByTaskMessage(_ context.Context, ts string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.TaskMessageID == ts {
			cp := *t
			return &cp, nil
		}
	}
	return nil, &domain.TaskNotFoundError{Key: "task_message_id=" + ts}
}

func (s *memStore) SetTrackingMessage(_ context.Context, id int64, ts string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	if t == nil || t.TaskMessageID != "" {
		return false, nil
	}
	t.TaskMessageID = ts
	return true, nil
}

func (s *memStore) ApplyReplan(_ context.Context, id int64, assignee string, due *domain.Date, plan domain.Plan) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	if t == nil || t.Status != domain.StatusOpen {
		return false, nil
	}
	t.Assignee, t.DueDate = assignee, due
	t.NextRemindAt, t.RemindKind = plan.NextRemindAt, plan.Kind
	stamp := time.Now()
	t.ReplannedAt = &stamp
	if t.EscalateAt == nil {
		e := plan.EscalateAt
		t.EscalateAt = &e
	}
	return true, nil
}

func (s *memStore) AdvanceReminder(_ context.Context, id int64, prev, next *time.Time, kind domain.RemindKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	if t == nil || t.Status != domain.StatusOpen || !sameTime(t.NextRemindAt, prev) {
		return false, nil
	}
	t.NextRemindAt, t.RemindKind = next, kind
	return true, nil
}

func (s *memStore) Resolve(_ context.Context, id int64, status domain.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	if t == nil || t.Status != domain.StatusOpen {
		return false, nil
	}
	t.Status = status
	t.NextRemindAt, t.RemindKind, t.EscalateAt = nil, domain.RemindNone, nil
	return true, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

type post struct {
	Channel, Text, Thread string
}

type reaction struct {
	Channel, TS, Name string
}

// fakeGateway records outbound calls. Errors are injected per method.
type fakeGateway struct {
	mu        sync.Mutex
	reactors  []string
	thread    []slack.ThreadMessage
	posts     []post
	reactions []reaction
	errs      map[string]error
	seq       int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{errs: map[string]error{}}
}

func (g *fakeGateway) Permalink(_ context.Context, channel, ts string) (string, error) {
	if err := g.errs["Permalink"]; err != nil {
		return "", err
	}
	return fmt.Sprintf("https://example.slack.com/archives/%s/p%s", channel, ts), nil
}

func (g *fakeGateway) Reactors(context.Context, string, string, string) ([]string, error) {
	if err := g.errs["Reactors"]; err != nil {
		return nil, err
	}
	return append([]string(nil), g.reactors...), nil
}

func (g *fakeGateway) PostMessage(_ context.Context, channel, text, thread string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.errs["PostMessage"]; err != nil {
		return "", err
	}
	g.seq++
	g.posts = append(g.posts, post{Channel: channel, Text: text, Thread: thread})
	return fmt.Sprintf("9%03d.000", g.seq), nil
}

func (g *fakeGateway) AddReaction(_ context.Context, channel, ts, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.errs["AddReaction"]; err != nil {
		return err
	}
	g.reactions = append(g.reactions, reaction{Channel: channel, TS: ts, Name: name})
	return nil
}

func (g *fakeGateway) Replies(context.Context, string, string) ([]slack.ThreadMessage, error) {
	if err := g.errs["Replies"]; err != nil {
		return nil, err
	}
	return g.thread, nil
}

type fakeExtractor struct {
	result  extraction.Result
	err     error
	gotText string
	// during runs inside Extract, before the result is returned.
	during func()
}

func (e *fakeExtractor) Extract(_ context.Context, thread string, _ time.Time) (extraction.Result, error) {
	e.gotText = thread
	if e.during != nil {
		e.during()
	}
	return e.result, e.err
}

type enqueued struct {
	Name domain.JobName
	Key  string
	Args json.RawMessage
}

type fakeQueue struct {
	jobs []enqueued
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, name domain.JobName, key string, args any) error {
	if q.err != nil {
		return q.err
	}
	raw, _ := json.Marshal(args)
	q.jobs = append(q.jobs, enqueued{Name: name, Key: key, Args: raw})
	return nil
}

type fakeSequencer struct {
	mu     sync.Mutex
	latest map[int64]int64
}

func newFakeSequencer() *fakeSequencer {
	return &fakeSequencer{latest: map[int64]int64{}}
}

func (s *fakeSequencer) Begin(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[id]++
	return s.latest[id], nil
}

func (s *fakeSequencer) IsLatest(_ context.Context, id, seq int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[id] == seq, nil
}
