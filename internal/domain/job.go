package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobName identifies a kind of asynchronous work.
type JobName string

const (
	JobCreateTask   JobName = "create_task"
	JobMarkDone     JobName = "mark_done"
	JobReplan       JobName = "replan"
	JobSendReminder JobName = "send_reminder"
	JobEscalate     JobName = "escalate"
)

// AllJobs lists every job name the worker consumes.
var AllJobs = []JobName{JobCreateTask, JobMarkDone, JobReplan, JobSendReminder, JobEscalate}

// Job is the envelope carried on the job queue.
type Job struct {
	ID         string          `json:"id"`
	Name       JobName         `json:"name"`
	Args       json.RawMessage `json:"args"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewJob encodes args into a fresh job envelope.
func NewJob(name JobName, args any) (*Job, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", name, err)
	}
	return &Job{
		ID:         uuid.New().String(),
		Name:       name,
		Args:       raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the job arguments into dst.
// A malformed payload is reported as an InvalidJobError.
func (j *Job) Decode(dst any) error {
	if err := json.Unmarshal(j.Args, dst); err != nil {
		return &InvalidJobError{JobID: j.ID, Name: j.Name, Reason: err.Error()}
	}
	return nil
}

// CreateTaskArgs asks the worker to materialize a task from a source message.
type CreateTaskArgs struct {
	SourceChannel   string `json:"source_channel"`
	SourceMessageID string `json:"source_message_id"`
	Reactor         string `json:"reactor"`
}

// MarkDoneArgs asks the worker to resolve the task behind a tracking post.
type MarkDoneArgs struct {
	TaskChannel   string `json:"task_channel"`
	TaskMessageID string `json:"task_message_id"`
	Actor         string `json:"actor"`
}

// ReplanArgs references a task by id or by its tracking post.
type ReplanArgs struct {
	TaskID        int64  `json:"task_id,omitempty"`
	TaskMessageID string `json:"task_message_id,omitempty"`
}

// ReminderArgs carries the remind kind observed by the scanner.
type ReminderArgs struct {
	TaskID int64      `json:"task_id"`
	Kind   RemindKind `json:"kind"`
}

// EscalationArgs references the task to escalate.
type EscalationArgs struct {
	TaskID int64 `json:"task_id"`
}
