package domain

import "fmt"

// TaskType is the closed set of follow-up actions an operator can schedule
// against an application.
type TaskType string

const (
	TaskTypeCall   TaskType = "call"
	TaskTypeEmail  TaskType = "email"
	TaskTypeReview TaskType = "review"
)

// TaskTypes lists the allowed task types in display order.
func TaskTypes() []TaskType {
	return []TaskType{TaskTypeCall, TaskTypeEmail, TaskTypeReview}
}

// TaskTypeStrings returns the allowed task types as plain strings for error
// payloads and schema enums.
func TaskTypeStrings() []string {
	types := TaskTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// ParseTaskType validates a raw string against the closed enum.
func ParseTaskType(raw string) (TaskType, error) {
	switch TaskType(raw) {
	case TaskTypeCall, TaskTypeEmail, TaskTypeReview:
		return TaskType(raw), nil
	}
	return "", fmt.Errorf("unknown task type %q", raw)
}

// TaskStatus is the task lifecycle state: open until completed, exactly once.
type TaskStatus string

const (
	StatusOpen      TaskStatus = "open"
	StatusCompleted TaskStatus = "completed"
)

// ParseTaskStatus validates a raw string against the closed enum.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	switch TaskStatus(raw) {
	case StatusOpen, StatusCompleted:
		return TaskStatus(raw), nil
	}
	return "", fmt.Errorf("unknown task status %q", raw)
}

// Task is a follow-up action tied to an application record.
// Timestamps are RFC3339 strings in UTC, as persisted.
type Task struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"application_id"`
	Type          TaskType   `json:"type" enum:"call,email,review"`
	Status        TaskStatus `json:"status" enum:"open,completed"`
	DueAt         string     `json:"due_at" format:"date-time"`
	CreatedAt     string     `json:"created_at" format:"date-time"`
	UpdatedAt     string     `json:"updated_at" format:"date-time"`
}

// TaskDraft is the normalized, not-yet-persisted form of a task produced by
// validation. The store assigns id/created_at/updated_at on insert.
type TaskDraft struct {
	ApplicationID string
	Type          TaskType
	DueAt         string
	Status        TaskStatus
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
