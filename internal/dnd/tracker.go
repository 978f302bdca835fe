// Package dnd tracks a single drag gesture and reports where a task landed.
package dnd

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"kanbandash/internal/kanban"
	"kanbandash/internal/optimistic"
)

var ErrNotDragging = errors.New("no drag in progress")

// DropResult describes a finished drag. Moved is false when the task was
// dropped outside any column or back onto its own column. Index is the
// position in To; 0 is the head.
type DropResult struct {
	TaskID string
	From   string
	To     string
	Index  int
	Moved  bool
}

// CommitFunc runs after a drop that changed columns.
type CommitFunc func(ctx context.Context, r DropResult) error

// NoopCommit acknowledges the drop without persisting it.
func NoopCommit(context.Context, DropResult) error { return nil }

// Mover is satisfied by optimistic.Engine.
type Mover interface {
	Move(ctx context.Context, in optimistic.MoveInput) (*kanban.Task, error)
}

var _ Mover = (*optimistic.Engine)(nil)

// EngineCommit persists drops through the engine, placing the task at the
// drop index of the destination column.
func EngineCommit(m Mover) CommitFunc {
	return func(ctx context.Context, r DropResult) error {
		_, err := m.Move(ctx, optimistic.MoveInput{TaskID: r.TaskID, ToColumnID: r.To, Index: r.Index})
		return err
	}
}

type Option func(*Tracker)

func WithCommit(fn CommitFunc) Option {
	return func(t *Tracker) { t.commit = fn }
}

func WithLogger(l log.FieldLogger) Option {
	return func(t *Tracker) { t.logger = l }
}

type Tracker struct {
	commit CommitFunc
	logger log.FieldLogger

	mu     sync.Mutex
	active bool
	taskID string
	from   string
	over   string
	index  int
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{commit: NoopCommit, logger: log.StandardLogger()}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start begins dragging taskID out of fromColumnID. A drag already in
// progress is replaced.
func (t *Tracker) Start(taskID, fromColumnID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = true
	t.taskID = taskID
	t.from = fromColumnID
	t.over = ""
	t.index = 0
}

// Over records the column under the pointer, dropping at its head. An empty
// id means none.
func (t *Tracker) Over(columnID string) {
	t.OverAt(columnID, 0)
}

// OverAt records the column under the pointer and the slot within it.
func (t *Tracker) OverAt(columnID string, index int) {
	if index < 0 {
		index = 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		t.over = columnID
		t.index = index
	}
}

// Dragging returns the dragged task id and whether a drag is in progress.
func (t *Tracker) Dragging() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.taskID, t.active
}

func (t *Tracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
}

// Drop ends the drag. The commit hook only runs when the task changed
// columns.
func (t *Tracker) Drop(ctx context.Context) (DropResult, error) {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return DropResult{}, ErrNotDragging
	}
	r := DropResult{TaskID: t.taskID, From: t.from, To: t.over, Index: t.index}
	t.reset()
	t.mu.Unlock()

	r.Moved = r.To != "" && r.To != r.From
	if !r.Moved {
		return r, nil
	}

	t.logger.WithFields(log.Fields{"task": r.TaskID, "from": r.From, "to": r.To}).Debug("drag completed")
	return r, t.commit(ctx, r)
}

func (t *Tracker) reset() {
	t.active = false
	t.taskID, t.from, t.over = "", "", ""
	t.index = 0
}
