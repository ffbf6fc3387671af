package unitofwork

import (
	"context"

	"ai-docpilot-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ProjectRepository() contract.ProjectRepository
	DocumentRepository() contract.DocumentRepository
	FileRepository() contract.FileRepository
	BlockRepository() contract.BlockRepository
	BlockEmbeddingRepository() contract.BlockEmbeddingRepository
	ChatMessageRepository() contract.ChatMessageRepository
}
