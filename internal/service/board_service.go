package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"kanbandash/internal/kanban"
	"kanbandash/internal/model"
	"kanbandash/internal/repository"
)

// BoardStore is the subset of the board repository the service needs.
type BoardStore interface {
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*model.Board, error)
	CreateWithColumns(ctx context.Context, board *model.Board, columns []model.Column) error
}

type ColumnStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Column, error)
	GetByBoardID(ctx context.Context, boardID uuid.UUID) ([]model.Column, error)
}

type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	ListActive(ctx context.Context, columnIDs []uuid.UUID) ([]model.Task, error)
	Archive(ctx context.Context, taskID, userID uuid.UUID, at time.Time) error
	Move(ctx context.Context, taskID, columnID uuid.UUID, sortOrder float64) (*model.Task, error)
}

var (
	_ BoardStore  = (*repository.BoardRepository)(nil)
	_ ColumnStore = (*repository.ColumnRepository)(nil)
	_ TaskStore   = (*repository.TaskRepository)(nil)
)

// CreateTaskInput carries a validated create request.
type CreateTaskInput struct {
	Title    string
	Priority kanban.Priority
	DueDate  string
	ColumnID uuid.UUID
	Order    float64
}

type Option func(*BoardService)

func WithSnapshotCache(c *SnapshotCache) Option {
	return func(s *BoardService) { s.cache = c }
}

func WithInvalidator(i Invalidator) Option {
	return func(s *BoardService) { s.invalidator = i }
}

func WithLogger(l log.FieldLogger) Option {
	return func(s *BoardService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *BoardService) { s.now = now }
}

// BoardService owns the board snapshot served to clients and every task
// write. Each user has exactly one board, created on first read.
type BoardService struct {
	boards      BoardStore
	columns     ColumnStore
	tasks       TaskStore
	cache       *SnapshotCache
	invalidator Invalidator
	logger      log.FieldLogger
	now         func() time.Time
	bootstrap   singleflight.Group
}

func NewBoardService(boards BoardStore, columns ColumnStore, tasks TaskStore, opts ...Option) *BoardService {
	s := &BoardService{
		boards:  boards,
		columns: columns,
		tasks:   tasks,
		logger:  log.StandardLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchBoardState returns the normalized board of userID, bootstrapping the
// default board when the user has none.
func (s *BoardService) FetchBoardState(ctx context.Context, userID uuid.UUID) (*kanban.NormalizedState, error) {
	key := userID.String()
	if state, ok := s.cache.Get(ctx, key); ok {
		return state, nil
	}
	gen := s.cache.Generation(ctx, key)

	board, err := s.ensureBoard(ctx, userID)
	if err != nil {
		return nil, err
	}
	columns, err := s.columns.GetByBoardID(ctx, board.ID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(columns))
	for _, c := range columns {
		ids = append(ids, c.ID)
	}
	tasks, err := s.tasks.ListActive(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	state := BuildState(board, columns, tasks)
	s.cache.Set(ctx, key, gen, state)
	return state, nil
}

func (s *BoardService) ensureBoard(ctx context.Context, userID uuid.UUID) (*model.Board, error) {
	v, err, _ := s.bootstrap.Do(userID.String(), func() (any, error) {
		board, err := s.boards.GetByOwner(ctx, userID)
		if err == nil {
			return board, nil
		}
		if !errors.Is(err, repository.ErrBoardNotFound) {
			return nil, fmt.Errorf("get board: %w", err)
		}

		board = &model.Board{Title: model.DefaultBoardTitle, OwnerID: userID}
		columns := make([]model.Column, len(model.DefaultColumns))
		copy(columns, model.DefaultColumns)
		err = s.boards.CreateWithColumns(ctx, board, columns)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Another replica bootstrapped first.
			return s.boards.GetByOwner(ctx, userID)
		}
		if err != nil {
			return nil, fmt.Errorf("create default board: %w", err)
		}
		s.logger.WithFields(log.Fields{"user_id": userID, "board_id": board.ID}).Info("created default board")
		return board, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Board), nil
}

// ListTasks returns the non-archived tasks of the requested columns that
// belong to the caller's board. Foreign column ids are ignored.
func (s *BoardService) ListTasks(ctx context.Context, userID uuid.UUID, columnIDs []uuid.UUID) ([]kanban.TaskRecord, error) {
	board, err := s.ensureBoard(ctx, userID)
	if err != nil {
		return nil, err
	}
	columns, err := s.columns.GetByBoardID(ctx, board.ID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	owned := make(map[uuid.UUID]bool, len(columns))
	for _, c := range columns {
		owned[c.ID] = true
	}
	var ids []uuid.UUID
	for _, id := range columnIDs {
		if owned[id] {
			ids = append(ids, id)
		}
	}

	tasks, err := s.tasks.ListActive(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	records := make([]kanban.TaskRecord, 0, len(tasks))
	for i := range tasks {
		records = append(records, ToRecord(&tasks[i]))
	}
	return records, nil
}

func (s *BoardService) CreateTask(ctx context.Context, userID uuid.UUID, in CreateTaskInput) (kanban.TaskRecord, error) {
	if strings.TrimSpace(in.Title) == "" || !in.Priority.Valid() {
		return kanban.TaskRecord{}, ErrInvalidInput
	}
	due, err := ParseDueDate(in.DueDate)
	if err != nil {
		return kanban.TaskRecord{}, err
	}
	if err := s.checkColumn(ctx, userID, in.ColumnID); err != nil {
		return kanban.TaskRecord{}, err
	}

	task := &model.Task{
		ColumnID:  in.ColumnID,
		Title:     strings.TrimSpace(in.Title),
		Priority:  string(in.Priority),
		DueDate:   due,
		SortOrder: in.Order,
		CreatedBy: userID,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return kanban.TaskRecord{}, fmt.Errorf("create task: %w", err)
	}

	s.logger.WithFields(log.Fields{"user_id": userID, "task_id": task.ID, "column_id": in.ColumnID}).Debug("task created")
	s.changed(ctx, userID)
	return ToRecord(task), nil
}

// ArchiveTask stamps archived_at on a task the caller created.
func (s *BoardService) ArchiveTask(ctx context.Context, userID, taskID uuid.UUID) error {
	if err := s.tasks.Archive(ctx, taskID, userID, s.now().UTC()); err != nil {
		return err
	}
	s.logger.WithFields(log.Fields{"user_id": userID, "task_id": taskID}).Debug("task archived")
	s.changed(ctx, userID)
	return nil
}

// MoveTask places a task of the caller into columnID at the given order.
func (s *BoardService) MoveTask(ctx context.Context, userID, taskID, columnID uuid.UUID, order float64) (kanban.TaskRecord, error) {
	if err := s.checkColumn(ctx, userID, columnID); err != nil {
		return kanban.TaskRecord{}, err
	}
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return kanban.TaskRecord{}, err
	}
	if task.CreatedBy != userID || task.ArchivedAt != nil {
		return kanban.TaskRecord{}, repository.ErrTaskNotFound
	}

	moved, err := s.tasks.Move(ctx, taskID, columnID, order)
	if err != nil {
		return kanban.TaskRecord{}, err
	}
	s.changed(ctx, userID)
	return ToRecord(moved), nil
}

// checkColumn reports ErrColumnNotFound unless columnID is on the caller's board.
func (s *BoardService) checkColumn(ctx context.Context, userID, columnID uuid.UUID) error {
	column, err := s.columns.GetByID(ctx, columnID)
	if err != nil {
		return err
	}
	board, err := s.ensureBoard(ctx, userID)
	if err != nil {
		return err
	}
	if column.BoardID != board.ID {
		return repository.ErrColumnNotFound
	}
	return nil
}

func (s *BoardService) changed(ctx context.Context, userID uuid.UUID) {
	key := userID.String()
	s.cache.Evict(ctx, key)
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, key)
	}
}
