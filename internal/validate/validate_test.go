package validate

import (
	"errors"
	"testing"
	"time"

	"learnlynk/internal/domain"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func TestMissingFields(t *testing.T) {
	cases := []struct {
		name    string
		in      CreateTaskInput
		missing []string
	}{
		{"all empty", CreateTaskInput{}, []string{"application_id", "task_type", "due_at"}},
		{"no application", CreateTaskInput{TaskType: "call", DueAt: "2024-03-16T12:00:00Z"}, []string{"application_id"}},
		{"no type", CreateTaskInput{ApplicationID: "app-1", DueAt: "2024-03-16T12:00:00Z"}, []string{"task_type"}},
		{"no due_at", CreateTaskInput{ApplicationID: "app-1", TaskType: "call"}, []string{"due_at"}},
		{"whitespace only", CreateTaskInput{ApplicationID: "  ", TaskType: "call", DueAt: "2024-03-16T12:00:00Z"}, []string{"application_id"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.in, testNow)
			var mf MissingFieldsError
			if !errors.As(err, &mf) {
				t.Fatalf("expected MissingFieldsError, got %v", err)
			}
			if len(mf.Fields) != len(tc.missing) {
				t.Fatalf("expected missing %v, got %v", tc.missing, mf.Fields)
			}
			for i, f := range tc.missing {
				if mf.Fields[i] != f {
					t.Fatalf("expected missing %v, got %v", tc.missing, mf.Fields)
				}
			}
		})
	}
}

func TestInvalidTaskType(t *testing.T) {
	for _, bad := range []string{"sms", "CALL", "meeting"} {
		_, err := Validate(CreateTaskInput{
			ApplicationID: "app-1",
			TaskType:      bad,
			DueAt:         "2024-03-16T12:00:00Z",
		}, testNow)
		var it InvalidTaskTypeError
		if !errors.As(err, &it) {
			t.Fatalf("task_type %q: expected InvalidTaskTypeError, got %v", bad, err)
		}
		want := []string{"call", "email", "review"}
		if len(it.Allowed) != len(want) {
			t.Fatalf("allowed set %v, want %v", it.Allowed, want)
		}
		for i := range want {
			if it.Allowed[i] != want[i] {
				t.Fatalf("allowed set %v, want %v", it.Allowed, want)
			}
		}
	}
}

func TestPresenceCheckedBeforeType(t *testing.T) {
	// an empty due_at must report MissingFields even when task_type is bogus
	_, err := Validate(CreateTaskInput{ApplicationID: "app-1", TaskType: "sms"}, testNow)
	var mf MissingFieldsError
	if !errors.As(err, &mf) {
		t.Fatalf("expected MissingFieldsError, got %v", err)
	}
}

func TestInvalidTimestamp(t *testing.T) {
	for _, bad := range []string{"not-a-date", "2024-13-40T00:00:00Z", "tomorrow"} {
		_, err := Validate(CreateTaskInput{
			ApplicationID: "app-1",
			TaskType:      "email",
			DueAt:         bad,
		}, testNow)
		var ts InvalidTimestampError
		if !errors.As(err, &ts) {
			t.Fatalf("due_at %q: expected InvalidTimestampError, got %v", bad, err)
		}
	}
}

func TestFutureConstraint(t *testing.T) {
	// due_at equal to now is rejected
	_, err := Validate(CreateTaskInput{
		ApplicationID: "app-1",
		TaskType:      "call",
		DueAt:         testNow.Format(time.RFC3339),
	}, testNow)
	var nf NotFutureError
	if !errors.As(err, &nf) {
		t.Fatalf("due_at == now: expected NotFutureError, got %v", err)
	}

	// due_at in the past is rejected
	_, err = Validate(CreateTaskInput{
		ApplicationID: "app-1",
		TaskType:      "call",
		DueAt:         testNow.Add(-time.Hour).Format(time.RFC3339),
	}, testNow)
	if !errors.As(err, &nf) {
		t.Fatalf("past due_at: expected NotFutureError, got %v", err)
	}

	// one second later is accepted
	draft, err := Validate(CreateTaskInput{
		ApplicationID: "app-1",
		TaskType:      "call",
		DueAt:         testNow.Add(time.Second).Format(time.RFC3339),
	}, testNow)
	if err != nil {
		t.Fatalf("now+1s should validate: %v", err)
	}
	if draft.Status != domain.StatusOpen {
		t.Fatalf("draft status %q, want open", draft.Status)
	}
}

func TestDraftNormalizesToUTC(t *testing.T) {
	draft, err := Validate(CreateTaskInput{
		ApplicationID: " app-1 ",
		TaskType:      "review",
		DueAt:         "2024-03-16T14:00:00+02:00",
	}, testNow)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if draft.DueAt != "2024-03-16T12:00:00Z" {
		t.Fatalf("due_at %q not normalized to UTC", draft.DueAt)
	}
	if draft.ApplicationID != "app-1" {
		t.Fatalf("application_id %q not trimmed", draft.ApplicationID)
	}
	if draft.Type != domain.TaskTypeReview {
		t.Fatalf("type %q, want review", draft.Type)
	}
}
