package repository

import (
	"context"
	"errors"

	"kanbandash/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BoardRepository struct {
	db *gorm.DB
}

func NewBoardRepository(db *gorm.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

// GetByOwner returns the board owned by ownerID or ErrBoardNotFound.
func (r *BoardRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*model.Board, error) {
	var board model.Board
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&board).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBoardNotFound
		}
		return nil, err
	}
	return &board, nil
}

// CreateWithColumns inserts a board and its columns in one transaction.
// The columns get the new board's id.
func (r *BoardRepository) CreateWithColumns(ctx context.Context, board *model.Board, columns []model.Column) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(board).Error; err != nil {
			return err
		}
		if len(columns) == 0 {
			return nil
		}
		for i := range columns {
			columns[i].BoardID = board.ID
		}
		return tx.Omit(clause.Associations).Create(&columns).Error
	})
}
