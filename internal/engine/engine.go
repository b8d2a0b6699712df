package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"learnlynk/internal/config"
	"learnlynk/internal/domain"
	"learnlynk/internal/events"
	"learnlynk/internal/repo"
	"learnlynk/internal/validate"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// PersistenceError wraps a store failure with the operation that hit it.
// Validation failures and caller cancellation are never wrapped in it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e PersistenceError) Unwrap() error { return e.Err }

// storeErr classifies a repository failure. Cancellation passes through
// unwrapped so callers can tell a deadline from a broken store.
func storeErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return PersistenceError{Op: op, Err: err}
}

// CreateTaskOptions are parameters for creating a follow-up task.
// ApplicationID, TaskType and DueAt arrive unvalidated.
type CreateTaskOptions struct {
	ApplicationID string
	TaskType      string
	DueAt         string
	ActorID       string
}

// CreateTask validates the request and persists the task. Validation runs
// fully before any I/O; a validation failure is returned verbatim and
// nothing is written.
func (e Engine) CreateTask(ctx context.Context, opts CreateTaskOptions) (domain.Task, error) {
	now := e.now()
	draft, err := validate.Validate(validate.CreateTaskInput{
		ApplicationID: opts.ApplicationID,
		TaskType:      opts.TaskType,
		DueAt:         opts.DueAt,
	}, now)
	if err != nil {
		return domain.Task{}, err
	}

	ts := now.UTC().Format(time.RFC3339)
	t := domain.Task{
		ID:            uuid.NewString(),
		ApplicationID: draft.ApplicationID,
		Type:          draft.Type,
		Status:        draft.Status,
		DueAt:         draft.DueAt,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, storeErr("begin create task", err)
	}
	defer tx.Rollback()

	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, storeErr("insert task", err)
	}
	if err := e.Events.Append(ctx, tx, ts, "task.created", "task", t.ID, opts.ActorID, events.EventPayload{
		"application_id": t.ApplicationID,
		"type":           string(t.Type),
		"due_at":         t.DueAt,
	}); err != nil {
		return domain.Task{}, storeErr("append task.created event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, storeErr("commit create task", err)
	}
	return t, nil
}

// ListDueToday returns open tasks whose due_at falls on the current day in
// the configured reference timezone. Both day boundaries are inclusive and
// results come back ascending by due_at. An empty day is not an error.
func (e Engine) ListDueToday(ctx context.Context) ([]domain.Task, error) {
	loc := time.UTC
	if e.Config != nil {
		l, err := e.Config.Location()
		if err != nil {
			return nil, fmt.Errorf("resolve timezone: %w", err)
		}
		loc = l
	}
	now := e.now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, loc)

	tasks, err := e.Repo.TasksDueBetween(ctx,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
		[]domain.TaskStatus{domain.StatusCompleted})
	if err != nil {
		return nil, storeErr("query tasks due today", err)
	}
	return tasks, nil
}

// CompleteTask transitions an open task to completed. The update is
// conditioned on the task still being open, so of two concurrent
// completions at most one succeeds; the loser sees ErrStatusConflict.
func (e Engine) CompleteTask(ctx context.Context, id, actorID string) (domain.Task, error) {
	now := e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, storeErr("begin complete task", err)
	}
	defer tx.Rollback()

	err = e.Repo.TransitionTaskStatus(ctx, tx, id, domain.StatusOpen, domain.StatusCompleted, now)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrStatusConflict) {
			return domain.Task{}, fmt.Errorf("complete task %s: %w", id, err)
		}
		return domain.Task{}, storeErr("update task status", err)
	}
	if err := e.Events.Append(ctx, tx, now, "task.completed", "task", id, actorID, events.EventPayload{
		"status": string(domain.StatusCompleted),
	}); err != nil {
		return domain.Task{}, storeErr("append task.completed event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, storeErr("commit complete task", err)
	}

	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, storeErr("reload completed task", err)
	}
	return t, nil
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Task{}, fmt.Errorf("task %s: %w", id, err)
		}
		return domain.Task{}, storeErr("get task", err)
	}
	return t, nil
}

func (e Engine) ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error) {
	tasks, err := e.Repo.ListTasks(ctx, f)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	return tasks, nil
}
