package mapper

import (
	"time"

	"ai-docpilot-be/internal/entity"
	"ai-docpilot-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BlockMapper struct{}

func NewBlockMapper() *BlockMapper {
	return &BlockMapper{}
}

func (m *BlockMapper) ToEntity(b *model.Block) *entity.Block {
	if b == nil {
		return nil
	}

	var deletedAt *time.Time
	if b.DeletedAt.Valid {
		t := b.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !b.UpdatedAt.IsZero() {
		t := b.UpdatedAt
		updatedAt = &t
	}

	return &entity.Block{
		Id:        b.Id,
		Type:      b.Type,
		Content:   string(b.Content),
		Position:  b.Position,
		FileId:    b.FileId,
		UserId:    b.UserId,
		CreatedAt: b.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
		IsDeleted: b.DeletedAt.Valid,
	}
}

func (m *BlockMapper) ToModel(b *entity.Block) *model.Block {
	if b == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if b.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *b.DeletedAt, Valid: true}
	} else if b.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if b.UpdatedAt != nil {
		updatedAt = *b.UpdatedAt
	}

	return &model.Block{
		Id:        b.Id,
		Type:      b.Type,
		Content:   datatypes.JSON(b.Content),
		Position:  b.Position,
		FileId:    b.FileId,
		UserId:    b.UserId,
		CreatedAt: b.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
	}
}

func (m *BlockMapper) ToEntities(blocks []*model.Block) []*entity.Block {
	entities := make([]*entity.Block, len(blocks))
	for i, b := range blocks {
		entities[i] = m.ToEntity(b)
	}
	return entities
}

func (m *BlockMapper) ToModels(blocks []*entity.Block) []*model.Block {
	models := make([]*model.Block, len(blocks))
	for i, b := range blocks {
		models[i] = m.ToModel(b)
	}
	return models
}
