package model

import (
	"time"

	"github.com/google/uuid"
)

// Board is the single board owned by a user.
type Board struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Title     string    `gorm:"not null"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Owner   User     `gorm:"foreignKey:OwnerID"`
	Columns []Column `gorm:"foreignKey:BoardID"`
}

// Default columns created with a new board.
var DefaultColumns = []Column{
	{Title: "To Do", Color: "bg-blue-500", SortOrder: 0},
	{Title: "In Progress", Color: "bg-amber-500", SortOrder: 1},
	{Title: "Done", Color: "bg-green-500", SortOrder: 2},
}

const DefaultBoardTitle = "My First Board"
