package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kanbandash/internal/model"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create adds a new task to the database
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error
}

// GetByID retrieves a task by its ID
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	result := r.db.WithContext(ctx).First(&task, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, result.Error
	}
	return &task, nil
}

// ListActive retrieves the non-archived tasks of the given columns, highest
// sort order first
func (r *TaskRepository) ListActive(ctx context.Context, columnIDs []uuid.UUID) ([]model.Task, error) {
	var tasks []model.Task
	if len(columnIDs) == 0 {
		return tasks, nil
	}
	result := r.db.WithContext(ctx).
		Where("column_id IN ?", columnIDs).
		Where("archived_at IS NULL").
		Order("sort_order DESC").
		Find(&tasks)
	if result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}

// Archive stamps archived_at on a task created by userID
func (r *TaskRepository) Archive(ctx context.Context, taskID, userID uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND created_by = ?", taskID, userID).
		Update("archived_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Move sets the column and sort order of a task and returns the stored row
func (r *TaskRepository) Move(ctx context.Context, taskID, columnID uuid.UUID, sortOrder float64) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, "id = ?", taskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return err
		}
		task.ColumnID = columnID
		task.SortOrder = sortOrder
		return tx.Model(&task).Updates(map[string]any{
			"column_id":  columnID,
			"sort_order": sortOrder,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}
