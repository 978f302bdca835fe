package kanban

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvariant = errors.New("board invariant violated")

// Validate checks the structural invariants of a state and returns every
// violation joined into one error.
func (s *NormalizedState) Validate() error {
	if s == nil {
		return nil
	}
	var errs []error

	owners := make(map[string][]string)
	for colID, c := range s.Columns {
		for _, id := range c.TaskIDs {
			owners[id] = append(owners[id], colID)
		}
	}

	for id, t := range s.Tasks {
		cols := owners[id]
		sort.Strings(cols)
		switch {
		case t.Archived() && len(cols) > 0:
			errs = append(errs, fmt.Errorf("%w: archived task %s listed in %v", ErrInvariant, id, cols))
		case t.Archived():
		case len(cols) != 1:
			errs = append(errs, fmt.Errorf("%w: task %s listed in %d columns %v", ErrInvariant, id, len(cols), cols))
		case cols[0] != t.ColumnID:
			errs = append(errs, fmt.Errorf("%w: task %s has columnId %s but is listed in %s", ErrInvariant, id, t.ColumnID, cols[0]))
		}
	}
	for id := range owners {
		if _, ok := s.Tasks[id]; !ok {
			errs = append(errs, fmt.Errorf("%w: column lists unknown task %s", ErrInvariant, id))
		}
	}

	seen := make(map[string]bool, len(s.Board.ColumnIDs))
	for _, id := range s.Board.ColumnIDs {
		if seen[id] {
			errs = append(errs, fmt.Errorf("%w: column %s listed twice on board", ErrInvariant, id))
		}
		seen[id] = true
		if _, ok := s.Columns[id]; !ok {
			errs = append(errs, fmt.Errorf("%w: board lists unknown column %s", ErrInvariant, id))
		}
	}
	for id := range s.Columns {
		if !seen[id] {
			errs = append(errs, fmt.Errorf("%w: column %s missing from board", ErrInvariant, id))
		}
	}

	return errors.Join(errs...)
}
