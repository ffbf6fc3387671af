package entity

import (
	"time"

	"github.com/google/uuid"
)

// Block is a single smartblock. Content holds the serialized editor
// payload (block tree JSON or plain text for legacy blocks).
type Block struct {
	Id        uuid.UUID
	Type      string
	Content   string
	Position  int
	FileId    uuid.UUID
	UserId    uuid.UUID
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}
