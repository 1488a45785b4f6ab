package domain

import "fmt"

// TaskNotFoundError is returned when no task matches a lookup key.
type TaskNotFoundError struct {
	Key string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.Key)
}

// InvalidJobError is returned for a job that can never succeed, such as one
// with undecodable arguments or no registered handler.
type InvalidJobError struct {
	JobID  string
	Name   JobName
	Reason string
}

func (e *InvalidJobError) Error() string {
	return fmt.Sprintf("invalid job %s (%s): %s", e.JobID, e.Name, e.Reason)
}

// ExtractionError is returned when the extraction service fails or answers
// with output that does not parse into a result.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// GatewayError is returned when the messaging platform rejects a call.
type GatewayError struct {
	Method string
	Code   string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("messaging gateway %s: %s", e.Method, e.Code)
}

// RateLimitExceededError is returned when an outbound call exceeds its rate limit.
type RateLimitExceededError struct {
	Key   string
	Limit int
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q: limit is %d", e.Key, e.Limit)
}

// StaleReplanError is returned when a newer replan for the same task started
// while this one was waiting on extraction.
type StaleReplanError struct {
	TaskID int64
	Seq    int64
}

func (e *StaleReplanError) Error() string {
	return fmt.Sprintf("replan %d for task %d superseded by a newer run", e.Seq, e.TaskID)
}
