package repo_test

import (
	"context"
	"errors"
	"testing"

	"learnlynk/internal/db"
	"learnlynk/internal/domain"
	"learnlynk/internal/migrate"
	"learnlynk/internal/repo"
)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func insertTask(t *testing.T, r repo.Repo, id string, status domain.TaskStatus, dueAt string) {
	t.Helper()
	ctx := context.Background()
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	err = r.InsertTask(ctx, tx, domain.Task{
		ID:            id,
		ApplicationID: "app-1",
		Type:          domain.TaskTypeCall,
		Status:        status,
		DueAt:         dueAt,
		CreatedAt:     "2024-03-14T00:00:00Z",
		UpdatedAt:     "2024-03-14T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("insert %s: %v", id, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestTransitionTaskStatus(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	insertTask(t, r, "t-1", domain.StatusOpen, "2024-03-15T10:00:00Z")

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	err = r.TransitionTaskStatus(ctx, tx, "t-1", domain.StatusOpen, domain.StatusCompleted, "2024-03-15T12:00:00Z")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := r.GetTask(ctx, "t-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusCompleted || got.UpdatedAt != "2024-03-15T12:00:00Z" {
		t.Fatalf("row not updated: %+v", got)
	}
}

func TestTransitionConflictAndNotFound(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	insertTask(t, r, "t-done", domain.StatusCompleted, "2024-03-15T10:00:00Z")

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	err = r.TransitionTaskStatus(ctx, tx, "t-done", domain.StatusOpen, domain.StatusCompleted, "2024-03-15T12:00:00Z")
	if !errors.Is(err, repo.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}

	err = r.TransitionTaskStatus(ctx, tx, "missing", domain.StatusOpen, domain.StatusCompleted, "2024-03-15T12:00:00Z")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTasksDueBetweenBoundsAndExclusion(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	insertTask(t, r, "t-start", domain.StatusOpen, "2024-03-15T00:00:00Z")
	insertTask(t, r, "t-end", domain.StatusOpen, "2024-03-15T23:59:59Z")
	insertTask(t, r, "t-before", domain.StatusOpen, "2024-03-14T23:59:59Z")
	insertTask(t, r, "t-after", domain.StatusOpen, "2024-03-16T00:00:00Z")
	insertTask(t, r, "t-completed", domain.StatusCompleted, "2024-03-15T12:00:00Z")

	tasks, err := r.TasksDueBetween(ctx, "2024-03-15T00:00:00Z", "2024-03-15T23:59:59Z",
		[]domain.TaskStatus{domain.StatusCompleted})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d: %+v", len(tasks), tasks)
	}
	if tasks[0].ID != "t-start" || tasks[1].ID != "t-end" {
		t.Fatalf("unexpected order/content: %s, %s", tasks[0].ID, tasks[1].ID)
	}
}

func TestListTasksFilters(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	insertTask(t, r, "t-1", domain.StatusOpen, "2024-03-15T10:00:00Z")
	insertTask(t, r, "t-2", domain.StatusCompleted, "2024-03-15T11:00:00Z")

	open, err := r.ListTasks(ctx, repo.TaskFilters{Status: domain.StatusOpen})
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 || open[0].ID != "t-1" {
		t.Fatalf("status filter broken: %+v", open)
	}

	byApp, err := r.ListTasks(ctx, repo.TaskFilters{ApplicationID: "app-1", Limit: 1})
	if err != nil {
		t.Fatalf("list by app: %v", err)
	}
	if len(byApp) != 1 {
		t.Fatalf("limit not applied: %d rows", len(byApp))
	}
}

func TestAPIKeyRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	hash := repo.HashAPIKey("secret-key")
	err := r.InsertAPIKey(ctx, domain.APIKey{
		ID:      "key-1",
		ActorID: "counselor-1",
		Name:    "dashboard",
		KeyHash: hash,
	})
	if err != nil {
		t.Fatalf("insert key: %v", err)
	}
	key, err := r.GetAPIKeyByHash(ctx, hash)
	if err != nil {
		t.Fatalf("get key: %v", err)
	}
	if key.ActorID != "counselor-1" {
		t.Fatalf("unexpected key %+v", key)
	}
	if _, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey("wrong")); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for unknown hash, got %v", err)
	}
	if err := r.DeleteAPIKey(ctx, "key-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.DeleteAPIKey(ctx, "key-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
