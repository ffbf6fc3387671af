package entity

import (
	"time"

	"github.com/google/uuid"
)

// File is a named container of blocks inside a document. Files nest
// through ParentId, nil means the document root.
type File struct {
	Id         uuid.UUID
	Name       string
	DocumentId uuid.UUID
	ParentId   *uuid.UUID
	UserId     uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	DeletedAt  *time.Time
	IsDeleted  bool
}
