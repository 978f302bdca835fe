package service

import (
	"fmt"
	"time"

	"kanbandash/internal/kanban"
	"kanbandash/internal/model"
)

// BuildState assembles the normalized snapshot. Columns list their tasks by
// descending sort order, the same order the repository returns them in.
func BuildState(board *model.Board, columns []model.Column, tasks []model.Task) *kanban.NormalizedState {
	state := kanban.NewState(kanban.Board{ID: board.ID.String(), Title: board.Title, ColumnIDs: []string{}})
	for _, c := range columns {
		id := c.ID.String()
		state.Board.ColumnIDs = append(state.Board.ColumnIDs, id)
		state.Columns[id] = &kanban.Column{
			ID:      id,
			Title:   c.Title,
			Order:   c.SortOrder,
			Color:   c.Color,
			TaskIDs: []string{},
		}
	}
	for i := range tasks {
		t := &tasks[i]
		if t.ArchivedAt != nil {
			continue
		}
		col, ok := state.Columns[t.ColumnID.String()]
		if !ok {
			continue
		}
		task := ToRecord(t).Task()
		state.Tasks[task.ID] = task
		col.TaskIDs = append(col.TaskIDs, task.ID)
	}
	return state
}

func ToRecord(t *model.Task) kanban.TaskRecord {
	r := kanban.TaskRecord{
		ID:         t.ID.String(),
		Title:      t.Title,
		Priority:   kanban.Priority(t.Priority),
		SortOrder:  t.SortOrder,
		ColumnID:   t.ColumnID.String(),
		ArchivedAt: t.ArchivedAt,
	}
	if t.DueDate != nil {
		r.DueDate = t.DueDate.UTC().Format(time.RFC3339)
	}
	return r
}

// ParseDueDate accepts RFC 3339 timestamps and plain dates. Empty means no
// due date.
func ParseDueDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: due date %q", ErrInvalidInput, s)
}
