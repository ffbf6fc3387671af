package contract

import (
	"context"

	"ai-docpilot-be/internal/entity"
	"ai-docpilot-be/internal/repository/specification"

	"github.com/google/uuid"
)

type BlockRepository interface {
	Create(ctx context.Context, block *entity.Block) error
	CreateBulk(ctx context.Context, blocks []*entity.Block) error
	Update(ctx context.Context, block *entity.Block) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByFileId(ctx context.Context, fileId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Block, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Block, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// FindByFileId returns blocks ordered by position.
	FindByFileId(ctx context.Context, fileId uuid.UUID) ([]*entity.Block, error)
}
