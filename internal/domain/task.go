package domain

import "time"

// Status represents the lifecycle states of a tracked task.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusDone   Status = "DONE"
	StatusClosed Status = "CLOSED"
)

// IsTerminal returns true if no further follow-up may happen for the task.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusClosed
}

// RemindKind names the reminder rule currently armed on a task.
// The empty value means no reminder is armed.
type RemindKind string

const (
	RemindNone      RemindKind = ""
	RemindDueMinus1 RemindKind = "DUE_MINUS_1"
	RemindWeekly    RemindKind = "WEEKLY"
)

// Valid reports whether k is one of the armed reminder kinds.
func (k RemindKind) Valid() bool {
	return k == RemindDueMinus1 || k == RemindWeekly
}

// Reaction names the bot reacts to or places.
const (
	// ReactionCreate on any message turns it into a task.
	ReactionCreate = "task"
	// ReactionDone on a tracking post resolves the task. The bot places it
	// on every new tracking post so users can click it.
	ReactionDone = "done"
	// ReactionRecognized marks a tracking post whose thread has been analysed.
	ReactionRecognized = "white_check_mark"
)

// Task is a unit of work created from a reacted-to chat message.
//
// Optional attributes use pointers (timestamps, due date) or the empty
// string (identifiers, remind kind) to represent absence.
type Task struct {
	ID int64 `json:"id"`

	SourceChannel   string `json:"source_channel"`
	SourceMessageID string `json:"source_message_id"`
	SourcePermalink string `json:"source_permalink"`

	TaskChannel   string `json:"task_channel"`
	TaskMessageID string `json:"task_message_id,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Assignee string   `json:"assignee,omitempty"`
	DueDate  *Date    `json:"due_date,omitempty"`
	Reactors []string `json:"reactors"`

	NextRemindAt *time.Time `json:"next_remind_at,omitempty"`
	RemindKind   RemindKind `json:"remind_kind,omitempty"`
	EscalateAt   *time.Time `json:"escalate_at,omitempty"`

	// ReplannedAt is when a replan last stored its result; nil until the
	// thread has been analysed once.
	ReplannedAt *time.Time `json:"replanned_at,omitempty"`
}

// HasTrackingPost reports whether the tracking message was posted and recorded.
func (t *Task) HasTrackingPost() bool { return t.TaskMessageID != "" }

// MergeReactors returns the union of existing and incoming in insertion
// order with duplicates and empty ids removed.
func MergeReactors(existing []string, incoming ...string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
