package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
)

var jst = time.FixedZone("JST", 9*60*60)

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, jst)
}

func TestComputePlan_DueDate_ArmsEveReminder(t *testing.T) {
	due := domain.Date{Year: 2024, Month: time.December, Day: 31}
	created := at(2024, time.December, 1, 0, 0)
	now := at(2024, time.December, 10, 0, 0)

	plan := domain.ComputePlan(&due, created, now, jst)

	require.NotNil(t, plan.NextRemindAt)
	assert.True(t, plan.NextRemindAt.Equal(at(2024, time.December, 30, 9, 0)), "got %s", plan.NextRemindAt)
	assert.Equal(t, domain.RemindDueMinus1, plan.Kind)
	assert.True(t, plan.EscalateAt.Equal(created.Add(75*24*time.Hour)))
}

func TestComputePlan_DueDate_EveAlreadyPassed(t *testing.T) {
	due := domain.Date{Year: 2024, Month: time.December, Day: 31}
	created := at(2024, time.December, 1, 0, 0)

	for _, now := range []time.Time{
		at(2024, time.December, 30, 9, 0), // exactly at the candidate: not strictly after
		at(2024, time.December, 30, 12, 0),
		at(2025, time.January, 15, 0, 0),
	} {
		plan := domain.ComputePlan(&due, created, now, jst)
		assert.Nil(t, plan.NextRemindAt, "now=%s", now)
		assert.Equal(t, domain.RemindNone, plan.Kind, "now=%s", now)
	}
}

func TestComputePlan_NoDueDate_NextMonday(t *testing.T) {
	created := at(2024, time.January, 3, 10, 0) // Wednesday

	plan := domain.ComputePlan(nil, created, created, jst)

	require.NotNil(t, plan.NextRemindAt)
	assert.True(t, plan.NextRemindAt.Equal(at(2024, time.January, 8, 9, 0)), "got %s", plan.NextRemindAt)
	assert.Equal(t, domain.RemindWeekly, plan.Kind)
}

func TestComputePlan_NoDueDate_MondayBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		created time.Time
		want    time.Time
	}{
		{"monday before nine", at(2024, time.January, 8, 8, 0), at(2024, time.January, 8, 9, 0)},
		{"monday at nine", at(2024, time.January, 8, 9, 0), at(2024, time.January, 15, 9, 0)},
		{"monday after nine", at(2024, time.January, 8, 10, 0), at(2024, time.January, 15, 9, 0)},
		{"sunday night", at(2024, time.January, 7, 23, 59), at(2024, time.January, 8, 9, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := domain.ComputePlan(nil, tt.created, tt.created, jst)
			require.NotNil(t, plan.NextRemindAt)
			assert.True(t, plan.NextRemindAt.Equal(tt.want), "got %s want %s", plan.NextRemindAt, tt.want)
		})
	}
}

func TestComputePlan_NoDueDate_AdvancesPastNow(t *testing.T) {
	created := at(2024, time.January, 3, 10, 0)
	now := at(2024, time.March, 20, 15, 30) // Wednesday, many weeks later

	plan := domain.ComputePlan(nil, created, now, jst)

	require.NotNil(t, plan.NextRemindAt)
	assert.True(t, plan.NextRemindAt.Equal(at(2024, time.March, 25, 9, 0)), "got %s", plan.NextRemindAt)
	assert.Equal(t, time.Monday, plan.NextRemindAt.In(jst).Weekday())
}

func TestComputePlan_UsesWorkspaceZone(t *testing.T) {
	// 2024-01-07 23:30 UTC is Monday 08:30 in JST.
	created := time.Date(2024, time.January, 7, 23, 30, 0, 0, time.UTC)

	plan := domain.ComputePlan(nil, created, created, jst)

	require.NotNil(t, plan.NextRemindAt)
	assert.True(t, plan.NextRemindAt.Equal(at(2024, time.January, 8, 9, 0)), "got %s", plan.NextRemindAt)
}

func TestComputePlan_AlwaysInFuture(t *testing.T) {
	created := at(2024, time.February, 28, 17, 45)
	dues := []*domain.Date{
		nil,
		{Year: 2024, Month: time.March, Day: 1},
		{Year: 2024, Month: time.February, Day: 29},
		{Year: 2023, Month: time.December, Day: 25},
	}
	for _, due := range dues {
		for offset := time.Duration(0); offset < 200*24*time.Hour; offset += 13 * time.Hour {
			now := created.Add(offset)
			plan := domain.ComputePlan(due, created, now, jst)

			assert.Equal(t, plan.NextRemindAt == nil, plan.Kind == domain.RemindNone,
				"remind time and kind must be set together (due=%v now=%s)", due, now)
			if plan.NextRemindAt != nil {
				assert.True(t, plan.NextRemindAt.After(now), "reminder %s not after %s", plan.NextRemindAt, now)
			}
			assert.True(t, plan.EscalateAt.Equal(created.Add(domain.EscalationHorizon)))
		}
	}
}

func TestComputePlan_Deterministic(t *testing.T) {
	due := domain.Date{Year: 2024, Month: time.June, Day: 3}
	created := at(2024, time.May, 1, 12, 0)
	now := at(2024, time.May, 5, 12, 0)

	a := domain.ComputePlan(&due, created, now, jst)
	b := domain.ComputePlan(&due, created, now, jst)
	assert.Equal(t, a, b)
}

func TestNextReminder_WeeklyAddsSevenDays(t *testing.T) {
	prev := at(2024, time.January, 8, 9, 0)

	next, kind := domain.NextReminder(domain.RemindWeekly, &prev, prev)

	require.NotNil(t, next)
	assert.True(t, next.Equal(at(2024, time.January, 15, 9, 0)))
	assert.Equal(t, domain.RemindWeekly, kind)
}

func TestNextReminder_WeeklyWithoutPrevious(t *testing.T) {
	now := at(2024, time.January, 10, 14, 0)

	next, kind := domain.NextReminder(domain.RemindWeekly, nil, now)

	require.NotNil(t, next)
	assert.True(t, next.Equal(now.Add(7*24*time.Hour)))
	assert.Equal(t, domain.RemindWeekly, kind)
}

func TestNextReminder_DueEveIsOneShot(t *testing.T) {
	prev := at(2024, time.December, 30, 9, 0)

	next, kind := domain.NextReminder(domain.RemindDueMinus1, &prev, prev)

	assert.Nil(t, next)
	assert.Equal(t, domain.RemindNone, kind)
}

func TestComputePlan_NoDueDate_AdvanceAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name    string
		created time.Time
		now     time.Time
		want    time.Time
	}{
		{
			// Oct 7 09:00 EDT is the first Monday; the gap to now is 28d+30m of
			// absolute time because of the fall-back on Nov 3.
			name:    "fall back",
			created: time.Date(2024, time.October, 6, 12, 0, 0, 0, ny),
			now:     time.Date(2024, time.November, 4, 8, 30, 0, 0, ny),
			want:    time.Date(2024, time.November, 4, 9, 0, 0, 0, ny),
		},
		{
			name:    "spring forward",
			created: time.Date(2024, time.February, 25, 12, 0, 0, 0, ny),
			now:     time.Date(2024, time.March, 11, 8, 30, 0, 0, ny),
			want:    time.Date(2024, time.March, 11, 9, 0, 0, 0, ny),
		},
		{
			name:    "just past the reminder after fall back",
			created: time.Date(2024, time.October, 6, 12, 0, 0, 0, ny),
			now:     time.Date(2024, time.November, 4, 9, 0, 0, 0, ny),
			want:    time.Date(2024, time.November, 11, 9, 0, 0, 0, ny),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := domain.ComputePlan(nil, tt.created, tt.now, ny)
			require.NotNil(t, plan.NextRemindAt)
			assert.True(t, plan.NextRemindAt.Equal(tt.want), "got %s", plan.NextRemindAt.In(ny))
		})
	}
}
