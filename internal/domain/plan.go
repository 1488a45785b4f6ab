package domain

import "time"

const (
	// EscalationHorizon is how long an unresolved task stays tracked.
	EscalationHorizon = 75 * 24 * time.Hour

	// ReminderHour is the workspace-local hour every reminder fires at.
	ReminderHour = 9

	// WeeklyReminderDay is the weekday weekly check-ins are sent on.
	WeeklyReminderDay = time.Monday

	weeklyIntervalDays = 7
)

// Plan is the reminder schedule derived for a task.
// NextRemindAt is nil iff Kind is RemindNone.
type Plan struct {
	NextRemindAt *time.Time
	Kind         RemindKind
	EscalateAt   time.Time
}

// ComputePlan derives the reminder plan for a task. It is pure: the same
// inputs always produce the same plan, and an armed reminder is always
// strictly after now.
//
// With a due date the reminder fires at 09:00 on the eve of the due date, or
// not at all if that moment has passed. Without one it fires on the first
// Monday 09:00 strictly after createdAt, advanced by whole weeks past now.
func ComputePlan(due *Date, createdAt, now time.Time, loc *time.Location) Plan {
	if loc == nil {
		loc = time.UTC
	}
	plan := Plan{EscalateAt: EscalateAt(createdAt)}

	if due != nil {
		candidate := due.At(loc, -1, ReminderHour)
		if candidate.After(now) {
			plan.NextRemindAt = &candidate
			plan.Kind = RemindDueMinus1
		}
		return plan
	}

	next := advancePast(firstWeekly(createdAt, loc), now)
	plan.NextRemindAt = &next
	plan.Kind = RemindWeekly
	return plan
}

// EscalateAt returns the escalation instant for a task created at createdAt.
func EscalateAt(createdAt time.Time) time.Time {
	return createdAt.Add(EscalationHorizon)
}

// NextReminder advances a plan after a reminder of the given kind was sent.
// A due-eve reminder is one-shot; a weekly reminder moves forward one week,
// or to now plus one week when no previous time is known.
func NextReminder(kind RemindKind, prev *time.Time, now time.Time) (*time.Time, RemindKind) {
	if kind != RemindWeekly {
		return nil, RemindNone
	}
	var next time.Time
	if prev != nil {
		next = prev.AddDate(0, 0, weeklyIntervalDays)
	} else {
		next = now.AddDate(0, 0, weeklyIntervalDays)
	}
	return &next, RemindWeekly
}

// firstWeekly returns the first WeeklyReminderDay at ReminderHour strictly
// after createdAt, evaluated in loc.
func firstWeekly(createdAt time.Time, loc *time.Location) time.Time {
	local := createdAt.In(loc)
	days := (int(WeeklyReminderDay) - int(local.Weekday()) + 7) % 7
	base := DateOf(local).At(loc, days, ReminderHour)
	if !base.After(createdAt) {
		base = base.AddDate(0, 0, weeklyIntervalDays)
	}
	return base
}

func advancePast(t, now time.Time) time.Time {
	if t.After(now) {
		return t
	}
	// Whole absolute weeks never overshoot a wall-clock week across a DST
	// change; the loop covers the remainder.
	week := time.Duration(weeklyIntervalDays) * 24 * time.Hour
	weeks := int(now.Sub(t) / week)
	t = t.AddDate(0, 0, weeks*weeklyIntervalDays)
	for !t.After(now) {
		t = t.AddDate(0, 0, weeklyIntervalDays)
	}
	return t
}
