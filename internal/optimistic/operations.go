package optimistic

import (
	"context"
	"slices"

	"kanbandash/internal/kanban"
	"kanbandash/internal/store"
)

type CreateInput struct {
	Title    string
	Priority kanban.Priority
	DueDate  string
	ColumnID string
	// Order of the new task. Zero means kanban.NextOrder for the column.
	Order float64
}

// Create shows a provisional task at the head of its column under a temp id,
// then swaps in the stored task at the same position.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*kanban.Task, error) {
	tempID := kanban.NewTempID()

	return Run(ctx, e, Op[*kanban.Task]{
		Kind: "create",
		Key:  tempID,
		Precondition: func(s *kanban.NormalizedState) error {
			if s == nil || s.Columns[in.ColumnID] == nil {
				return ErrUnknownColumn
			}
			if in.Order == 0 {
				in.Order = kanban.NextOrder(s, in.ColumnID)
			}
			return nil
		},
		Apply: func(s *kanban.NormalizedState) *kanban.NormalizedState {
			if s == nil || s.Columns[in.ColumnID] == nil {
				return s
			}
			col := s.Columns[in.ColumnID]
			s.Tasks[tempID] = &kanban.Task{
				ID:       tempID,
				Title:    in.Title,
				Priority: in.Priority,
				DueDate:  in.DueDate,
				Order:    in.Order,
				ColumnID: in.ColumnID,
			}
			col.TaskIDs = slices.Insert(col.TaskIDs, 0, tempID)
			return s
		},
		Remote: func(ctx context.Context) Result[*kanban.Task] {
			return Call(ctx, func(ctx context.Context) (*kanban.Task, error) {
				return e.gw.CreateTask(ctx, kanban.TaskFields{
					Title:    in.Title,
					Priority: in.Priority,
					DueDate:  in.DueDate,
					ColumnID: in.ColumnID,
					Order:    in.Order,
				})
			})
		},
		Settle: func(task *kanban.Task) store.Updater {
			return func(s *kanban.NormalizedState) *kanban.NormalizedState {
				return replaceTemp(s, tempID, task)
			}
		},
		Rollback: func(s *kanban.NormalizedState) *kanban.NormalizedState {
			return removeTask(s, tempID)
		},
	})
}

// Archive hides a task at once and restores it at the head of its column if
// the server refuses. Absent or already archived tasks are left alone.
func (e *Engine) Archive(ctx context.Context, taskID string) error {
	at := e.now().UTC()

	_, err := Run(ctx, e, Op[struct{}]{
		Kind: "archive",
		Key:  taskID,
		Precondition: func(s *kanban.NormalizedState) error {
			if s == nil {
				return ErrNoop
			}
			if t := s.Tasks[taskID]; t == nil || t.Archived() {
				return ErrNoop
			}
			return nil
		},
		Apply: func(s *kanban.NormalizedState) *kanban.NormalizedState {
			if s == nil || s.Tasks[taskID] == nil {
				return s
			}
			t := s.Tasks[taskID]
			t.ArchivedAt = &at
			detach(s, taskID)
			return s
		},
		Remote: func(ctx context.Context) Result[struct{}] {
			return Call(ctx, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, e.gw.ArchiveTask(ctx, taskID)
			})
		},
		Rollback: func(s *kanban.NormalizedState) *kanban.NormalizedState {
			if s == nil || s.Tasks[taskID] == nil {
				return s
			}
			t := s.Tasks[taskID]
			t.ArchivedAt = nil
			if col := s.Columns[t.ColumnID]; col != nil && !slices.Contains(col.TaskIDs, taskID) {
				col.TaskIDs = slices.Insert(col.TaskIDs, 0, taskID)
			}
			return s
		},
	})
	return err
}

type MoveInput struct {
	TaskID     string
	ToColumnID string
	// Index is the position in the destination column, clamped to its
	// length. 0 is the head.
	Index int
}

// Move places a task at Index of another (or the same) column and gives it
// an order between its new neighbours. A failed move puts the task back at
// its original column, index and order.
func (e *Engine) Move(ctx context.Context, in MoveInput) (*kanban.Task, error) {
	var (
		fromCol   string
		fromIdx   int
		fromOrder float64
		newOrder  float64
	)

	return Run(ctx, e, Op[*kanban.Task]{
		Kind: "move",
		Key:  in.TaskID,
		Precondition: func(s *kanban.NormalizedState) error {
			if s == nil {
				return ErrNoop
			}
			t := s.Tasks[in.TaskID]
			if t == nil || t.Archived() {
				return ErrNoop
			}
			dest := s.Columns[in.ToColumnID]
			if dest == nil {
				return ErrUnknownColumn
			}
			col, idx, ok := s.ColumnOf(in.TaskID)
			if ok && col == in.ToColumnID && idx == clampIndex(in.Index, len(dest.TaskIDs)-1) {
				return ErrNoop
			}
			return nil
		},
		Apply: func(s *kanban.NormalizedState) *kanban.NormalizedState {
			if s == nil || s.Tasks[in.TaskID] == nil || s.Columns[in.ToColumnID] == nil {
				return s
			}
			t := s.Tasks[in.TaskID]
			dest := s.Columns[in.ToColumnID]
			fromOrder = t.Order
			fromCol, fromIdx, _ = s.ColumnOf(in.TaskID)
			if fromCol == "" {
				fromCol = t.ColumnID
			}
			detach(s, in.TaskID)

			idx := clampIndex(in.Index, len(dest.TaskIDs))
			newOrder = orderAt(s, dest.TaskIDs, idx)
			dest.TaskIDs = slices.Insert(dest.TaskIDs, idx, in.TaskID)
			t.ColumnID = in.ToColumnID
			t.Order = newOrder
			return s
		},
		Remote: func(ctx context.Context) Result[*kanban.Task] {
			return Call(ctx, func(ctx context.Context) (*kanban.Task, error) {
				return e.gw.MoveTask(ctx, in.TaskID, in.ToColumnID, newOrder)
			})
		},
		Settle: func(task *kanban.Task) store.Updater {
			return func(s *kanban.NormalizedState) *kanban.NormalizedState {
				if s == nil || s.Tasks[in.TaskID] == nil || task == nil {
					return s
				}
				t := s.Tasks[in.TaskID]
				t.Order = task.Order
				if task.Title != "" {
					t.Title = task.Title
					t.Priority = task.Priority
					t.DueDate = task.DueDate
				}
				return s
			}
		},
		Rollback: func(s *kanban.NormalizedState) *kanban.NormalizedState {
			if s == nil || s.Tasks[in.TaskID] == nil {
				return s
			}
			t := s.Tasks[in.TaskID]
			detach(s, in.TaskID)
			t.ColumnID = fromCol
			t.Order = fromOrder
			if col := s.Columns[fromCol]; col != nil && !t.Archived() {
				col.TaskIDs = slices.Insert(col.TaskIDs, clampIndex(fromIdx, len(col.TaskIDs)), in.TaskID)
			}
			return s
		},
	})
}

// orderAt returns the order for a task inserted at idx of ids. Columns list
// the highest order first.
func orderAt(s *kanban.NormalizedState, ids []string, idx int) float64 {
	var prev, next *float64
	if idx > 0 {
		if t := s.Tasks[ids[idx-1]]; t != nil {
			o := t.Order
			prev = &o
		}
	}
	if idx < len(ids) {
		if t := s.Tasks[ids[idx]]; t != nil {
			o := t.Order
			next = &o
		}
	}
	return kanban.OrderBetween(prev, next)
}

func clampIndex(i, max int) int {
	if i < 0 {
		return 0
	}
	if i > max {
		return max
	}
	return i
}

// detach removes id from whichever column lists it.
func detach(s *kanban.NormalizedState, id string) {
	if s == nil {
		return
	}
	for _, col := range s.Columns {
		if i := slices.Index(col.TaskIDs, id); i >= 0 {
			col.TaskIDs = slices.Delete(col.TaskIDs, i, i+1)
			return
		}
	}
}

func removeTask(s *kanban.NormalizedState, id string) *kanban.NormalizedState {
	if s == nil {
		return s
	}
	detach(s, id)
	delete(s.Tasks, id)
	return s
}

// replaceTemp swaps the provisional task for the stored one, keeping its
// position. If the provisional entry is gone the task goes to the head of
// its column.
func replaceTemp(s *kanban.NormalizedState, tempID string, task *kanban.Task) *kanban.NormalizedState {
	if s == nil || task == nil {
		return removeTask(s, tempID)
	}
	stored := task.Clone()
	delete(s.Tasks, tempID)
	detach(s, stored.ID)

	placed := false
	for id, col := range s.Columns {
		if i := slices.Index(col.TaskIDs, tempID); i >= 0 {
			if id == stored.ColumnID {
				col.TaskIDs[i] = stored.ID
				placed = true
			} else {
				col.TaskIDs = slices.Delete(col.TaskIDs, i, i+1)
			}
			break
		}
	}
	if !placed {
		col := s.Columns[stored.ColumnID]
		if col == nil {
			return s
		}
		col.TaskIDs = slices.Insert(col.TaskIDs, 0, stored.ID)
	}
	s.Tasks[stored.ID] = stored
	return s
}
