package validate

import (
	"fmt"
	"strings"
	"time"

	"learnlynk/internal/domain"
)

// CreateTaskInput is a raw creation request as received from a caller.
// All fields arrive as strings; DueAt must be an RFC3339 timestamp.
type CreateTaskInput struct {
	ApplicationID string
	TaskType      string
	DueAt         string
}

// RequiredFields are the fields a creation request must carry.
var RequiredFields = []string{"application_id", "task_type", "due_at"}

// MissingFieldsError reports which required fields were absent.
type MissingFieldsError struct {
	Fields []string
}

func (e MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// InvalidTaskTypeError reports a task type outside the allowed set.
type InvalidTaskTypeError struct {
	Value   string
	Allowed []string
}

func (e InvalidTaskTypeError) Error() string {
	return fmt.Sprintf("invalid task_type %q; allowed: %s", e.Value, strings.Join(e.Allowed, ", "))
}

// InvalidTimestampError reports an unparseable due_at value.
type InvalidTimestampError struct {
	Value string
}

func (e InvalidTimestampError) Error() string {
	return fmt.Sprintf("invalid due_at timestamp %q", e.Value)
}

// NotFutureError reports a due_at that is not strictly after "now".
type NotFutureError struct {
	DueAt time.Time
}

func (e NotFutureError) Error() string {
	return "due_at must be in the future"
}

// Validate checks a creation request and produces a normalized draft.
// Checks run in a fixed order and stop at the first failure: presence,
// type domain, timestamp parseability, future constraint. It performs no
// I/O; now is the single clock sample for the whole operation.
func Validate(in CreateTaskInput, now time.Time) (domain.TaskDraft, error) {
	var missing []string
	if strings.TrimSpace(in.ApplicationID) == "" {
		missing = append(missing, "application_id")
	}
	if strings.TrimSpace(in.TaskType) == "" {
		missing = append(missing, "task_type")
	}
	if strings.TrimSpace(in.DueAt) == "" {
		missing = append(missing, "due_at")
	}
	if len(missing) > 0 {
		return domain.TaskDraft{}, MissingFieldsError{Fields: missing}
	}

	taskType, err := domain.ParseTaskType(in.TaskType)
	if err != nil {
		return domain.TaskDraft{}, InvalidTaskTypeError{Value: in.TaskType, Allowed: domain.TaskTypeStrings()}
	}

	dueAt, err := time.Parse(time.RFC3339, in.DueAt)
	if err != nil {
		return domain.TaskDraft{}, InvalidTimestampError{Value: in.DueAt}
	}

	if !dueAt.After(now) {
		return domain.TaskDraft{}, NotFutureError{DueAt: dueAt}
	}

	return domain.TaskDraft{
		ApplicationID: strings.TrimSpace(in.ApplicationID),
		Type:          taskType,
		DueAt:         dueAt.UTC().Format(time.RFC3339),
		Status:        domain.StatusOpen,
	}, nil
}
