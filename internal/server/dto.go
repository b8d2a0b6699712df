package server

import "learnlynk/internal/domain"

// Request payloads

// CreateTaskRequest fields are optional at the schema level; presence is
// checked by the validator so absent fields report as missing_fields with
// the required list rather than as a schema error.
type CreateTaskRequest struct {
	ApplicationID string `json:"application_id,omitempty"`
	TaskType      string `json:"task_type,omitempty" example:"call"`
	DueAt         string `json:"due_at,omitempty" example:"2024-03-16T09:00:00Z"`
}

// Response payloads

type CreateTaskResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
}

type CompleteTaskResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
	Status  string `json:"status" enum:"open,completed"`
}

type TaskResponse struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	Type          string `json:"type" enum:"call,email,review"`
	Status        string `json:"status" enum:"open,completed"`
	DueAt         string `json:"due_at" format:"date-time"`
	CreatedAt     string `json:"created_at" format:"date-time"`
	UpdatedAt     string `json:"updated_at" format:"date-time"`
}

type TaskListResponse struct {
	Items []TaskResponse `json:"items"`
	Count int            `json:"count"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:            t.ID,
		ApplicationID: t.ApplicationID,
		Type:          string(t.Type),
		Status:        string(t.Status),
		DueAt:         t.DueAt,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func mapTasks(tasks []domain.Task) []TaskResponse {
	res := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, taskResponse(t))
	}
	return res
}

func mapEvents(evts []domain.Event) []EventResponse {
	res := make([]EventResponse, 0, len(evts))
	for _, e := range evts {
		res = append(res, EventResponse{
			ID:         e.ID,
			TS:         e.TS,
			Type:       e.Type,
			EntityKind: e.EntityKind,
			EntityID:   e.EntityID,
			ActorID:    e.ActorID,
			Payload:    e.Payload,
		})
	}
	return res
}
