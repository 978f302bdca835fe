package kanban

import "time"

// TaskRecord is a task as stored and returned by the task endpoints. Field
// names follow the database (snake_case); Task() maps it onto the in-memory
// model without changing meaning.
type TaskRecord struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Priority   Priority   `json:"priority"`
	DueDate    string     `json:"due_date"`
	SortOrder  float64    `json:"sort_order"`
	ColumnID   string     `json:"column_id"`
	ArchivedAt *time.Time `json:"archived_at"`
}

func (r TaskRecord) Task() *Task {
	return &Task{
		ID:         r.ID,
		Title:      r.Title,
		Priority:   r.Priority,
		DueDate:    r.DueDate,
		Order:      r.SortOrder,
		ColumnID:   r.ColumnID,
		ArchivedAt: r.ArchivedAt,
	}
}

func RecordFromTask(t *Task) TaskRecord {
	return TaskRecord{
		ID:         t.ID,
		Title:      t.Title,
		Priority:   t.Priority,
		DueDate:    t.DueDate,
		SortOrder:  t.Order,
		ColumnID:   t.ColumnID,
		ArchivedAt: t.ArchivedAt,
	}
}
