package contract

import (
	"context"

	"ai-docpilot-be/internal/entity"
	"ai-docpilot-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredBlockEmbedding wraps BlockEmbedding with its similarity score
// and the file it belongs to.
type ScoredBlockEmbedding struct {
	Embedding  *entity.BlockEmbedding
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
	FileId     uuid.UUID
	FileName   string
}

type BlockEmbeddingRepository interface {
	Create(ctx context.Context, embedding *entity.BlockEmbedding) error
	CreateBulk(ctx context.Context, embeddings []*entity.BlockEmbedding) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByBlockId(ctx context.Context, blockId uuid.UUID) error
	DeleteByFileId(ctx context.Context, fileId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.BlockEmbedding, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.BlockEmbedding, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilar runs a cosine-distance search scoped to the owner,
	// optionally narrowed to a single file.
	SearchSimilar(ctx context.Context, embedding []float32, limit int, userId uuid.UUID, fileId *uuid.UUID) ([]*ScoredBlockEmbedding, error)
}
