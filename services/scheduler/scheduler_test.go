package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
)

type fakeLister struct {
	reminders   []*domain.Task
	escalations []*domain.Task
	err         error
	gotNow      time.Time
}

func (f *fakeLister) ListDueReminders(_ context.Context, now time.Time, _ int) ([]*domain.Task, error) {
	f.gotNow = now
	return f.reminders, f.err
}

func (f *fakeLister) ListDueEscalations(_ context.Context, _ time.Time, _ int) ([]*domain.Task, error) {
	return f.escalations, f.err
}

type enqueued struct {
	name domain.JobName
	key  string
	args any
}

type fakeQueue struct {
	jobs []enqueued
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, name domain.JobName, key string, args any) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, enqueued{name: name, key: key, args: args})
	return nil
}

// memClaims is an in-memory Claimer without expiry.
type memClaims struct {
	held     map[string]bool
	released []string
}

func newMemClaims() *memClaims { return &memClaims{held: map[string]bool{}} }

func (c *memClaims) Claim(_ context.Context, key string) (bool, error) {
	if c.held[key] {
		return false, nil
	}
	c.held[key] = true
	return true, nil
}

func (c *memClaims) Release(_ context.Context, key string) error {
	delete(c.held, key)
	c.released = append(c.released, key)
	return nil
}

type fixedLeader struct{ leader bool }

func (l fixedLeader) Acquire(context.Context) (bool, bool, error) { return l.leader, false, nil }

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func dueTask(id int64, ts string, at time.Time, kind domain.RemindKind) *domain.Task {
	return &domain.Task{ID: id, TaskMessageID: ts, Status: domain.StatusOpen, NextRemindAt: &at, RemindKind: kind}
}

func TestScanReminders_OneJobPerDueTask(t *testing.T) {
	now := time.Date(2024, 1, 8, 0, 0, 30, 0, time.UTC)
	lister := &fakeLister{reminders: []*domain.Task{
		dueTask(1, "9.1", now.Add(-30*time.Second), domain.RemindWeekly),
		dueTask(2, "", now.Add(-time.Hour), domain.RemindDueMinus1),
	}}
	q := &fakeQueue{}
	s := NewScheduler(lister, q, newMemClaims(), nil, WithLogger(quiet))

	n, err := s.ScanReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, now, lister.gotNow)

	require.Len(t, q.jobs, 2)
	assert.Equal(t, enqueued{
		name: domain.JobSendReminder, key: "9.1",
		args: domain.ReminderArgs{TaskID: 1, Kind: domain.RemindWeekly},
	}, q.jobs[0])
	assert.Equal(t, "task:2", q.jobs[1].key)
	assert.Equal(t, domain.ReminderArgs{TaskID: 2, Kind: domain.RemindDueMinus1}, q.jobs[1].args)
}

func TestScanReminders_SecondTickDoesNotDuplicate(t *testing.T) {
	now := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	lister := &fakeLister{reminders: []*domain.Task{dueTask(1, "9.1", now, domain.RemindWeekly)}}
	q := &fakeQueue{}
	s := NewScheduler(lister, q, newMemClaims(), nil, WithLogger(quiet))

	_, _ = s.ScanReminders(context.Background(), now)
	n, err := s.ScanReminders(context.Background(), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, q.jobs, 1)
}

func TestScanReminders_AdvancedPlanIsANewClaim(t *testing.T) {
	now := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	claims := newMemClaims()
	q := &fakeQueue{}
	lister := &fakeLister{reminders: []*domain.Task{dueTask(1, "9.1", now, domain.RemindWeekly)}}
	s := NewScheduler(lister, q, claims, nil, WithLogger(quiet))
	_, _ = s.ScanReminders(context.Background(), now)

	next := now.AddDate(0, 0, 7)
	lister.reminders = []*domain.Task{dueTask(1, "9.1", next, domain.RemindWeekly)}
	n, err := s.ScanReminders(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestScanReminders_EnqueueFailureReleasesClaim(t *testing.T) {
	now := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	claims := newMemClaims()
	q := &fakeQueue{err: errors.New("broker down")}
	lister := &fakeLister{reminders: []*domain.Task{dueTask(1, "9.1", now, domain.RemindWeekly)}}
	s := NewScheduler(lister, q, claims, nil, WithLogger(quiet))

	n, err := s.ScanReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, claims.released, 1)
	assert.Empty(t, claims.held, "the next tick may try again")
}

func TestScanEscalations(t *testing.T) {
	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	esc := now.Add(-time.Hour)
	lister := &fakeLister{escalations: []*domain.Task{{ID: 7, TaskMessageID: "9.7", Status: domain.StatusOpen, EscalateAt: &esc}}}
	q := &fakeQueue{}
	s := NewScheduler(lister, q, newMemClaims(), nil, WithLogger(quiet))

	n, err := s.ScanEscalations(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, enqueued{name: domain.JobEscalate, key: "9.7", args: domain.EscalationArgs{TaskID: 7}}, q.jobs[0])

	n, _ = s.ScanEscalations(context.Background(), now.Add(time.Minute))
	assert.Zero(t, n)
}

func TestScan_StoreErrorIsReturned(t *testing.T) {
	s := NewScheduler(&fakeLister{err: errors.New("db down")}, &fakeQueue{}, newMemClaims(), nil, WithLogger(quiet))
	_, err := s.ScanReminders(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestTick_FollowerDoesNotScan(t *testing.T) {
	now := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	lister := &fakeLister{reminders: []*domain.Task{dueTask(1, "9.1", now, domain.RemindWeekly)}}
	q := &fakeQueue{}

	NewScheduler(lister, q, newMemClaims(), fixedLeader{leader: false}, WithLogger(quiet), WithClock(func() time.Time { return now })).
		Tick(context.Background())
	assert.Empty(t, q.jobs)

	NewScheduler(lister, q, newMemClaims(), fixedLeader{leader: true}, WithLogger(quiet), WithClock(func() time.Time { return now })).
		Tick(context.Background())
	assert.Len(t, q.jobs, 1)
}

func TestRun_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(&fakeLister{}, &fakeQueue{}, newMemClaims(), nil, WithLogger(quiet), WithSpec("not a spec"))
	assert.Error(t, s.Run(context.Background()))
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := &fakeQueue{}
	s := NewScheduler(&fakeLister{}, q, newMemClaims(), nil, WithLogger(quiet))

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDefaultLeaderTTL_OutlivesTickInterval(t *testing.T) {
	sched, err := cron.ParseStandard(DefaultSpec)
	require.NoError(t, err)

	first := sched.Next(time.Date(2024, 1, 8, 0, 0, 30, 0, time.UTC))
	second := sched.Next(first)
	assert.Greater(t, DefaultLeaderTTL, second.Sub(first),
		"the leader must renew on the next tick before its lease lapses")
}
