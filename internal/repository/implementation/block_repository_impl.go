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
	"gorm.io/gorm"
)

type BlockRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.BlockMapper
}

func NewBlockRepository(db *gorm.DB) contract.BlockRepository {
	return &BlockRepositoryImpl{
		db:     db,
		mapper: mapper.NewBlockMapper(),
	}
}

func (r *BlockRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *BlockRepositoryImpl) Create(ctx context.Context, block *entity.Block) error {
	m := r.mapper.ToModel(block)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*block = *r.mapper.ToEntity(m)
	return nil
}

func (r *BlockRepositoryImpl) CreateBulk(ctx context.Context, blocks []*entity.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	models := make([]*model.Block, len(blocks))
	for i, b := range blocks {
		models[i] = r.mapper.ToModel(b)
	}
	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*blocks[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *BlockRepositoryImpl) Update(ctx context.Context, block *entity.Block) error {
	m := r.mapper.ToModel(block)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*block = *r.mapper.ToEntity(m)
	return nil
}

func (r *BlockRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Block{}, id).Error
}

func (r *BlockRepositoryImpl) DeleteByFileId(ctx context.Context, fileId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("file_id = ?", fileId).Delete(&model.Block{}).Error
}

func (r *BlockRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Block, error) {
	var m model.Block
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *BlockRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Block, error) {
	var models []*model.Block
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *BlockRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Block{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *BlockRepositoryImpl) FindByFileId(ctx context.Context, fileId uuid.UUID) ([]*entity.Block, error) {
	var models []*model.Block
	err := r.db.WithContext(ctx).
		Where("file_id = ?", fileId).
		Order("position ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}
