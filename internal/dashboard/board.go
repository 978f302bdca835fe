// Package dashboard turns the cached board into views and routes user
// intents to the optimistic engine.
package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"kanbandash/internal/kanban"
	"kanbandash/internal/optimistic"
	"kanbandash/internal/store"
)

var (
	ErrEmptyTitle    = errors.New("title is required")
	ErrSubmitting    = errors.New("a task is already being created")
	ErrNotCreating   = errors.New("no column is in create mode")
	ErrUnknownColumn = errors.New("unknown column")
)

// Reader is satisfied by store.Cache.
type Reader interface {
	Read() store.Snapshot
}

// Engine is satisfied by optimistic.Engine.
type Engine interface {
	Create(ctx context.Context, in optimistic.CreateInput) (*kanban.Task, error)
	Archive(ctx context.Context, taskID string) error
}

var (
	_ Reader = (*store.Cache)(nil)
	_ Engine = (*optimistic.Engine)(nil)
)

// Draft is the content of the create-task input.
type Draft struct {
	Title    string
	Priority kanban.Priority
	DueDate  string
}

type TaskView struct {
	ID       string
	Title    string
	Priority kanban.Priority
	DueDate  string
	// DueLabel is DueDate formatted as "Jan 2", empty when unset or unparsable.
	DueLabel string
	// Pending is true until the server assigned a permanent id.
	Pending bool
}

type ColumnView struct {
	ID       string
	Title    string
	Color    string
	Order    int
	Count    int
	Creating bool
	Tasks    []TaskView
}

type BoardView struct {
	Title      string
	Columns    []ColumnView
	Loading    bool
	Submitting bool
	Err        error
}

type Board struct {
	cache    Reader
	engine   Engine
	notifier Notifier

	mu         sync.Mutex
	creating   string
	submitting bool
}

func New(cache Reader, engine Engine, notifier Notifier) *Board {
	return &Board{cache: cache, engine: engine, notifier: notifier}
}

// View builds the current presentation: columns ascending by order, tasks in
// the column's own sequence.
func (b *Board) View() BoardView {
	snap := b.cache.Read()
	b.mu.Lock()
	creating, submitting := b.creating, b.submitting
	b.mu.Unlock()

	v := BoardView{Loading: snap.Loading || (snap.Data == nil && snap.Err == nil), Submitting: submitting, Err: snap.Err}
	if snap.Data == nil {
		return v
	}
	v.Title = snap.Data.Board.Title
	for _, col := range snap.Data.OrderedColumns() {
		cv := ColumnView{
			ID:       col.ID,
			Title:    col.Title,
			Color:    col.Color,
			Order:    col.Order,
			Creating: col.ID == creating,
		}
		for _, t := range snap.Data.ColumnTasks(col.ID) {
			cv.Tasks = append(cv.Tasks, TaskView{
				ID:       t.ID,
				Title:    t.Title,
				Priority: t.Priority,
				DueDate:  t.DueDate,
				DueLabel: DueLabel(t.DueDate),
				Pending:  kanban.IsTempID(t.ID),
			})
		}
		cv.Count = len(cv.Tasks)
		v.Columns = append(v.Columns, cv)
	}
	return v
}

// BeginCreate opens the create input on columnID, closing any other.
func (b *Board) BeginCreate(columnID string) error {
	snap := b.cache.Read()
	if snap.Data == nil || snap.Data.Columns[columnID] == nil {
		return ErrUnknownColumn
	}
	b.mu.Lock()
	b.creating = columnID
	b.mu.Unlock()
	return nil
}

func (b *Board) CancelCreate() {
	b.mu.Lock()
	if !b.submitting {
		b.creating = ""
	}
	b.mu.Unlock()
}

// ConfirmCreate submits d into the column in create mode. The input stays
// open when the create fails so the user can retry.
func (b *Board) ConfirmCreate(ctx context.Context, d Draft) (*kanban.Task, error) {
	title := strings.TrimSpace(d.Title)
	if d.Priority == "" {
		d.Priority = kanban.PriorityMedium
	}

	b.mu.Lock()
	switch {
	case b.submitting:
		b.mu.Unlock()
		return nil, ErrSubmitting
	case b.creating == "":
		b.mu.Unlock()
		return nil, ErrNotCreating
	case title == "":
		b.mu.Unlock()
		return nil, ErrEmptyTitle
	case !d.Priority.Valid():
		b.mu.Unlock()
		_, err := kanban.ParsePriority(string(d.Priority))
		return nil, err
	}
	columnID := b.creating
	b.submitting = true
	b.mu.Unlock()

	task, err := b.engine.Create(ctx, optimistic.CreateInput{
		Title:    title,
		Priority: d.Priority,
		DueDate:  d.DueDate,
		ColumnID: columnID,
		Order:    kanban.NextOrder(b.cache.Read().Data, columnID),
	})

	b.mu.Lock()
	b.submitting = false
	if err == nil && b.creating == columnID {
		b.creating = ""
	}
	b.mu.Unlock()

	if err != nil {
		b.notifier.Error("Failed to create task", err)
		return nil, err
	}
	b.notifier.Success("Task created")
	return task, nil
}

func (b *Board) Archive(ctx context.Context, taskID string) error {
	if err := b.engine.Archive(ctx, taskID); err != nil {
		b.notifier.Error("Failed to archive task", err)
		return err
	}
	b.notifier.Success("Task archived")
	return nil
}

// DueLabel formats an ISO date or timestamp as "Jan 2".
func DueLabel(due string) string {
	if due == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, due); err == nil {
			return t.Format("Jan 2")
		}
	}
	return ""
}
