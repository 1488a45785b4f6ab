package domain_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
)

func TestTaskNotFoundError(t *testing.T) {
	err := &domain.TaskNotFoundError{Key: "task_message_id=1700000000.000100"}
	if !strings.Contains(err.Error(), "1700000000.000100") {
		t.Errorf("error message should contain the lookup key, got: %q", err.Error())
	}
}

func TestInvalidJobError(t *testing.T) {
	err := &domain.InvalidJobError{JobID: "j-9", Name: domain.JobReplan, Reason: "bad args"}
	msg := err.Error()
	for _, want := range []string{"j-9", "replan", "bad args"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message should contain %q, got: %q", want, msg)
		}
	}
}

func TestExtractionError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &domain.ExtractionError{Reason: "completion request", Err: cause}
	if !errors.Is(err, cause) {
		t.Errorf("ExtractionError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("error message should contain cause, got: %q", err.Error())
	}
}

func TestRateLimitExceededError(t *testing.T) {
	err := &domain.RateLimitExceededError{Key: "chat.postMessage", Limit: 1}
	msg := err.Error()
	if !strings.Contains(msg, "chat.postMessage") || !strings.Contains(msg, "1") {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestAllErrorTypesImplementError(t *testing.T) {
	var _ error = &domain.TaskNotFoundError{}
	var _ error = &domain.InvalidJobError{}
	var _ error = &domain.ExtractionError{}
	var _ error = &domain.GatewayError{}
	var _ error = &domain.RateLimitExceededError{}
	var _ error = &domain.StaleReplanError{}
}
