package model

import (
	"time"

	"github.com/google/uuid"
)

type Column struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	BoardID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Title     string    `gorm:"not null"`
	Color     string    `gorm:"not null"`
	SortOrder int       `gorm:"column:sort_order;not null"`
	CreatedAt time.Time

	Board Board `gorm:"foreignKey:BoardID"`
}
