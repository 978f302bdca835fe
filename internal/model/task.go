package model

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	ColumnID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	Title      string     `gorm:"not null"`
	Priority   string     `gorm:"not null;check:priority IN ('low', 'medium', 'high')"`
	DueDate    *time.Time `gorm:"column:due_date"`
	SortOrder  float64    `gorm:"column:sort_order;not null"`
	CreatedBy  uuid.UUID  `gorm:"type:uuid;not null"`
	ArchivedAt *time.Time `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Column  Column `gorm:"foreignKey:ColumnID"`
	Creator User   `gorm:"foreignKey:CreatedBy"`
}
