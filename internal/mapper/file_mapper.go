package mapper

import (
	"time"

	"ai-docpilot-be/internal/entity"
	"ai-docpilot-be/internal/model"

	"gorm.io/gorm"
)

type FileMapper struct{}

func NewFileMapper() *FileMapper {
	return &FileMapper{}
}

func (m *FileMapper) ToEntity(f *model.File) *entity.File {
	if f == nil {
		return nil
	}

	var deletedAt *time.Time
	if f.DeletedAt.Valid {
		t := f.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !f.UpdatedAt.IsZero() {
		t := f.UpdatedAt
		updatedAt = &t
	}

	return &entity.File{
		Id:         f.Id,
		Name:       f.Name,
		DocumentId: f.DocumentId,
		ParentId:   f.ParentId,
		UserId:     f.UserId,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  updatedAt,
		DeletedAt:  deletedAt,
		IsDeleted:  f.DeletedAt.Valid,
	}
}

func (m *FileMapper) ToModel(f *entity.File) *model.File {
	if f == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if f.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *f.DeletedAt, Valid: true}
	} else if f.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if f.UpdatedAt != nil {
		updatedAt = *f.UpdatedAt
	}

	return &model.File{
		Id:         f.Id,
		Name:       f.Name,
		DocumentId: f.DocumentId,
		ParentId:   f.ParentId,
		UserId:     f.UserId,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  updatedAt,
		DeletedAt:  deletedAt,
	}
}

func (m *FileMapper) ToEntities(files []*model.File) []*entity.File {
	entities := make([]*entity.File, len(files))
	for i, f := range files {
		entities[i] = m.ToEntity(f)
	}
	return entities
}

func (m *FileMapper) ToModels(files []*entity.File) []*model.File {
	models := make([]*model.File, len(files))
	for i, f := range files {
		models[i] = m.ToModel(f)
	}
	return models
}
