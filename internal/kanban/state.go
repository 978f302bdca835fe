// Package kanban holds the normalized board state shared by the gateway,
// the client cache and the optimistic engine.
package kanban

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority accepts low, medium or high.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q", s)
	}
	return p, nil
}

type Board struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	ColumnIDs []string `json:"columnIds"`
}

type Column struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Order   int      `json:"order"`
	Color   string   `json:"color"`
	TaskIDs []string `json:"taskIds"`
}

type Task struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Priority   Priority   `json:"priority"`
	DueDate    string     `json:"dueDate"`
	Order      float64    `json:"order"`
	ColumnID   string     `json:"columnId"`
	ArchivedAt *time.Time `json:"archivedAt"`
}

// Archived reports whether the task has been archived.
func (t *Task) Archived() bool {
	return t.ArchivedAt != nil
}

// TaskFields are the user supplied fields of a new task.
type TaskFields struct {
	Title    string   `json:"title"`
	Priority Priority `json:"priority"`
	DueDate  string   `json:"dueDate"`
	ColumnID string   `json:"columnId"`
	Order    float64  `json:"order"`
}

// NormalizedState is the client held source of truth for one board.
// Values handed out by the cache are never modified in place; updaters
// work on a Clone.
type NormalizedState struct {
	Board   Board              `json:"board"`
	Columns map[string]*Column `json:"columns"`
	Tasks   map[string]*Task   `json:"tasks"`
}

// NewState returns an empty state for the given board.
func NewState(board Board) *NormalizedState {
	return &NormalizedState{
		Board:   board,
		Columns: make(map[string]*Column),
		Tasks:   make(map[string]*Task),
	}
}

func (s *NormalizedState) Clone() *NormalizedState {
	if s == nil {
		return nil
	}
	out := &NormalizedState{
		Board: Board{
			ID:        s.Board.ID,
			Title:     s.Board.Title,
			ColumnIDs: slices.Clone(s.Board.ColumnIDs),
		},
		Columns: make(map[string]*Column, len(s.Columns)),
		Tasks:   make(map[string]*Task, len(s.Tasks)),
	}
	for id, c := range s.Columns {
		cc := *c
		cc.TaskIDs = slices.Clone(c.TaskIDs)
		out.Columns[id] = &cc
	}
	for id, t := range s.Tasks {
		out.Tasks[id] = t.Clone()
	}
	return out
}

func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	tt := *t
	if t.ArchivedAt != nil {
		at := *t.ArchivedAt
		tt.ArchivedAt = &at
	}
	return &tt
}

// OrderedColumns returns the board's columns sorted ascending by Order.
func (s *NormalizedState) OrderedColumns() []*Column {
	cols := make([]*Column, 0, len(s.Board.ColumnIDs))
	for _, id := range s.Board.ColumnIDs {
		if c, ok := s.Columns[id]; ok {
			cols = append(cols, c)
		}
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Order < cols[j].Order })
	return cols
}

// ColumnTasks returns the tasks of a column in TaskIDs order. Ids without a
// task record are skipped.
func (s *NormalizedState) ColumnTasks(columnID string) []*Task {
	c, ok := s.Columns[columnID]
	if !ok {
		return nil
	}
	tasks := make([]*Task, 0, len(c.TaskIDs))
	for _, id := range c.TaskIDs {
		if t, ok := s.Tasks[id]; ok {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// ColumnOf returns the id of the column whose TaskIDs hold taskID.
func (s *NormalizedState) ColumnOf(taskID string) (string, int, bool) {
	for id, c := range s.Columns {
		if i := slices.Index(c.TaskIDs, taskID); i >= 0 {
			return id, i, true
		}
	}
	return "", -1, false
}
