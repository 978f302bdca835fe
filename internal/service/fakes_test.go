package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"kanbandash/internal/model"
	"kanbandash/internal/repository"
)

// memStore is an in-memory stand-in for the three gorm repositories.
type memStore struct {
	mu          sync.Mutex
	boards      map[uuid.UUID]*model.Board
	columns     map[uuid.UUID]*model.Column
	tasks       map[uuid.UUID]*model.Task
	createCalls int
	dupOnCreate bool
}

func newMemStore() *memStore {
	return &memStore{
		boards:  map[uuid.UUID]*model.Board{},
		columns: map[uuid.UUID]*model.Column{},
		tasks:   map[uuid.UUID]*model.Task{},
	}
}

func (m *memStore) GetByOwner(_ context.Context, ownerID uuid.UUID) (*model.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.boards {
		if b.OwnerID == ownerID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, repository.ErrBoardNotFound
}

func (m *memStore) CreateWithColumns(_ context.Context, board *model.Board, columns []model.Column) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.dupOnCreate {
		// Simulate a concurrent bootstrap that won the unique index race.
		winner := &model.Board{ID: uuid.New(), Title: board.Title, OwnerID: board.OwnerID}
		m.boards[winner.ID] = winner
		return gorm.ErrDuplicatedKey
	}
	for _, b := range m.boards {
		if b.OwnerID == board.OwnerID {
			return gorm.ErrDuplicatedKey
		}
	}
	board.ID = uuid.New()
	cp := *board
	m.boards[board.ID] = &cp
	for i := range columns {
		columns[i].ID = uuid.New()
		columns[i].BoardID = board.ID
		c := columns[i]
		m.columns[c.ID] = &c
	}
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*model.Column, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.columns[id]
	if !ok {
		return nil, repository.ErrColumnNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) GetByBoardID(_ context.Context, boardID uuid.UUID) ([]model.Column, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Column
	for _, c := range m.columns {
		if c.BoardID == boardID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

// memTasks shares memStore's maps but satisfies TaskStore, whose GetByID
// collides with ColumnStore's.
type memTasks struct{ *memStore }

func (m memTasks) Create(_ context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.ID = uuid.New()
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func (m memTasks) GetByID(_ context.Context, id uuid.UUID) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m memTasks) ListActive(_ context.Context, columnIDs []uuid.UUID) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range columnIDs {
		want[id] = true
	}
	var out []model.Task
	for _, t := range m.tasks {
		if want[t.ColumnID] && t.ArchivedAt == nil {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder > out[j].SortOrder })
	return out, nil
}

func (m memTasks) Archive(_ context.Context, taskID, userID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.CreatedBy != userID {
		return repository.ErrTaskNotFound
	}
	t.ArchivedAt = &at
	return nil
}

func (m memTasks) Move(_ context.Context, taskID, columnID uuid.UUID, sortOrder float64) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	t.ColumnID = columnID
	t.SortOrder = sortOrder
	cp := *t
	return &cp, nil
}

type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) Invalidate(ctx context.Context, userID string) {
	m.Called(ctx, userID)
}

// slowTasks blocks the first ListActive after it has read its rows, so a
// write can land while a snapshot is being built.
type slowTasks struct {
	memTasks
	once    sync.Once
	listed  chan struct{}
	release chan struct{}
}

func newSlowTasks(store *memStore) *slowTasks {
	return &slowTasks{memTasks: memTasks{store}, listed: make(chan struct{}), release: make(chan struct{})}
}

func (s *slowTasks) ListActive(ctx context.Context, columnIDs []uuid.UUID) ([]model.Task, error) {
	rows, err := s.memTasks.ListActive(ctx, columnIDs)
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.listed)
		<-s.release
	}
	return rows, err
}
