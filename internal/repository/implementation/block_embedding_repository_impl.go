package implementation

import (
	"context"
	"errors"

	"ai-docpilot-be/internal/entity"
	"ai-docpilot-be/internal/mapper"
	"ai-docpilot-be/internal/model"
	"ai-docpilot-be/internal/repository/contract"
	"ai-docpilot-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type BlockEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.BlockEmbeddingMapper
}

func NewBlockEmbeddingRepository(db *gorm.DB) contract.BlockEmbeddingRepository {
	return &BlockEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewBlockEmbeddingMapper(),
	}
}

func (r *BlockEmbeddingRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *BlockEmbeddingRepositoryImpl) Create(ctx context.Context, embedding *entity.BlockEmbedding) error {
	m := r.mapper.ToModel(embedding)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*embedding = *r.mapper.ToEntity(m)
	return nil
}

func (r *BlockEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*entity.BlockEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	models := make([]*model.BlockEmbedding, len(embeddings))
	for i, e := range embeddings {
		models[i] = r.mapper.ToModel(e)
	}
	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*embeddings[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *BlockEmbeddingRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.BlockEmbedding{}, id).Error
}

func (r *BlockEmbeddingRepositoryImpl) DeleteByBlockId(ctx context.Context, blockId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("block_id = ?", blockId).Delete(&model.BlockEmbedding{}).Error
}

func (r *BlockEmbeddingRepositoryImpl) DeleteByFileId(ctx context.Context, fileId uuid.UUID) error {
	subQuery := r.db.Table("blocks").Select("id").Where("file_id = ?", fileId)
	return r.db.WithContext(ctx).Where("block_id IN (?)", subQuery).Delete(&model.BlockEmbedding{}).Error
}

func (r *BlockEmbeddingRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.BlockEmbedding, error) {
	var m model.BlockEmbedding
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *BlockEmbeddingRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.BlockEmbedding, error) {
	var models []*model.BlockEmbedding
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *BlockEmbeddingRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.BlockEmbedding{}).Count(&count).Error
	return count, err
}

// SearchSimilar runs a cosine-distance search over block embeddings.
// The join chain blocks -> files -> documents restricts hits to the
// owner's live content; fileId narrows the search to one file.
func (r *BlockEmbeddingRepositoryImpl) SearchSimilar(ctx context.Context, embedding []float32, limit int, userId uuid.UUID, fileId *uuid.UUID) ([]*contract.ScoredBlockEmbedding, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is 1 - cosine_similarity, so
	// 1 - (embedding_value <=> query_vector) gives the similarity.
	type result struct {
		model.BlockEmbedding
		Similarity float64
		FileId     uuid.UUID
		FileName   string
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	query := r.db.WithContext(ctx).
		Table("block_embeddings").
		Select("block_embeddings.*, 1 - (embedding_value <=> ?) as similarity, files.id as file_id, files.name as file_name", queryVector).
		Joins("JOIN blocks ON blocks.id = block_embeddings.block_id").
		Joins("JOIN files ON files.id = blocks.file_id").
		Where("blocks.user_id = ?", userId).
		Where("block_embeddings.deleted_at IS NULL").
		Where("blocks.deleted_at IS NULL").
		Where("files.deleted_at IS NULL")

	if fileId != nil {
		query = query.Where("files.id = ?", *fileId)
	}

	err := query.
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredBlockEmbedding, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredBlockEmbedding{
			Embedding:  r.mapper.ToEntity(&res.BlockEmbedding),
			Similarity: res.Similarity,
			FileId:     res.FileId,
			FileName:   res.FileName,
		}
	}
	return scored, nil
}
