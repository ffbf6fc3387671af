package contract

import (
	"context"

	"ai-docpilot-be/internal/entity"
	"ai-docpilot-be/internal/repository/specification"

	"github.com/google/uuid"
)

type FileRepository interface {
	Create(ctx context.Context, file *entity.File) error
	Update(ctx context.Context, file *entity.File) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.File, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.File, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// FindByProjectId lists files across every document of a project.
	FindByProjectId(ctx context.Context, projectId uuid.UUID) ([]*entity.File, error)
}
