package kanban

import (
	"strings"

	"github.com/google/uuid"
)

// OrderStep is the gap left between a new task and its highest sibling.
const OrderStep = 1000.0

const tempPrefix = "temp-"

// NextOrder returns the order for a task created in columnID: one step above
// the highest sibling, or OrderStep for an empty column. Tasks display in
// descending order, so the new task sorts first.
func NextOrder(s *NormalizedState, columnID string) float64 {
	if s == nil {
		return OrderStep
	}
	tasks := s.ColumnTasks(columnID)
	if len(tasks) == 0 {
		return OrderStep
	}
	max := tasks[0].Order
	for _, t := range tasks[1:] {
		if t.Order > max {
			max = t.Order
		}
	}
	return max + OrderStep
}

// OrderBetween returns the order for a task dropped between prev (displayed
// above, higher order) and next (displayed below, lower order). Either may be
// nil at the ends of a column. When the neighbours leave no room the result
// ties with prev; secondary ordering of ties is unspecified.
func OrderBetween(prev, next *float64) float64 {
	switch {
	case prev == nil && next == nil:
		return OrderStep
	case prev == nil:
		return *next + OrderStep
	case next == nil:
		return *prev - OrderStep
	}
	mid := *prev + (*next-*prev)/2
	if mid >= *prev || mid <= *next {
		return *prev
	}
	return mid
}

// NewTempID returns an identifier that cannot collide with a server id.
func NewTempID() string {
	return tempPrefix + uuid.NewString()
}

func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}
