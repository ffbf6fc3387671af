package toolloop

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"ai-docpilot-be/internal/entity"
	"ai-docpilot-be/internal/repository/specification"
	"ai-docpilot-be/internal/repository/unitofwork"
	"ai-docpilot-be/pkg/llm"
)

// EmbedPublisher queues a block for embedding after the tool loop
// persisted it.
type EmbedPublisher interface {
	PublishBlockEmbed(blockId uuid.UUID) error
}

// Mention marks a file the model asked to reference inline; the
// executor turns each into an insert_smartblock_mention operation.
type Mention struct {
	FileId   uuid.UUID
	FileName string
}

// Toolbox is the per-run tool registry. Executions mutate the store
// through the unit of work and record editor-facing side effects.
type Toolbox struct {
	factory   unitofwork.RepositoryFactory
	publisher EmbedPublisher
	docId     uuid.UUID
	userId    uuid.UUID
	logger    *log.Logger

	mentions []Mention
}

func NewToolbox(factory unitofwork.RepositoryFactory, publisher EmbedPublisher, docId, userId uuid.UUID, logger *log.Logger) *Toolbox {
	return &Toolbox{
		factory:   factory,
		publisher: publisher,
		docId:     docId,
		userId:    userId,
		logger:    logger,
	}
}

// Mentions returns the reference markers produced so far.
func (t *Toolbox) Mentions() []Mention {
	return t.mentions
}

// Definitions returns the tool schemas sent to the model.
func (t *Toolbox) Definitions() []llm.Tool {
	return []llm.Tool{
		{
			Name:        "create_file",
			Description: "Create a new file in the current document. Returns the new file's ID.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name":     map[string]interface{}{"type": "string", "description": "File name"},
					"parentId": map[string]interface{}{"type": "string", "description": "Optional parent file ID"},
				},
				"required": []string{"name"},
			},
		},
		{
			Name:        "delete_file",
			Description: "Delete a file and its content blocks.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"fileId": map[string]interface{}{"type": "string", "description": "ID of the file to delete"},
				},
				"required": []string{"fileId"},
			},
		},
		{
			Name:        "rename_file",
			Description: "Rename an existing file.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"fileId": map[string]interface{}{"type": "string", "description": "ID of the file to rename"},
					"name":   map[string]interface{}{"type": "string", "description": "New file name"},
				},
				"required": []string{"fileId", "name"},
			},
		},
		{
			Name:        "populate_file",
			Description: "Append content blocks to a file. Blocks are plain text or markdown.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"fileId": map[string]interface{}{"type": "string", "description": "ID of the file to populate"},
					"blocks": map[string]interface{}{
						"type":        "array",
						"description": "Content blocks in order",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"type":    map[string]interface{}{"type": "string", "description": "Block type, e.g. text"},
								"content": map[string]interface{}{"type": "string", "description": "Block content"},
							},
							"required": []string{"content"},
						},
					},
				},
				"required": []string{"fileId", "blocks"},
			},
		},
		{
			Name:        "insert_reference",
			Description: "Insert an inline reference to a file into the active document.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"fileId": map[string]interface{}{"type": "string", "description": "ID of the file to reference"},
				},
				"required": []string{"fileId"},
			},
		},
	}
}

// Execute dispatches one tool call. Returned errors become "Error: "
// tool results for the model, never aborts.
func (t *Toolbox) Execute(ctx context.Context, call llm.ToolCall) (string, error) {
	switch call.Name {
	case "create_file":
		return t.createFile(ctx, call.Arguments)
	case "delete_file":
		return t.deleteFile(ctx, call.Arguments)
	case "rename_file":
		return t.renameFile(ctx, call.Arguments)
	case "populate_file":
		return t.populateFile(ctx, call.Arguments)
	case "insert_reference":
		return t.insertReference(ctx, call.Arguments)
	}
	return "", fmt.Errorf("unknown tool %q", call.Name)
}

func (t *Toolbox) createFile(ctx context.Context, args map[string]interface{}) (string, error) {
	name, err := stringArg(args, "name")
	if err != nil {
		return "", err
	}

	var parentId *uuid.UUID
	if raw, ok := args["parentId"].(string); ok && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid parentId %q", raw)
		}
		parentId = &id
	}

	file := &entity.File{
		Name:       name,
		DocumentId: t.docId,
		ParentId:   parentId,
		UserId:     t.userId,
	}

	uow := t.factory.NewUnitOfWork(ctx)
	if err := uow.FileRepository().Create(ctx, file); err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	return fmt.Sprintf("Created file %q with ID %s", name, file.Id), nil
}

func (t *Toolbox) deleteFile(ctx context.Context, args map[string]interface{}) (string, error) {
	fileId, err := uuidArg(args, "fileId")
	if err != nil {
		return "", err
	}

	uow := t.factory.NewUnitOfWork(ctx)
	if err := uow.BlockEmbeddingRepository().DeleteByFileId(ctx, fileId); err != nil {
		return "", fmt.Errorf("delete embeddings: %w", err)
	}
	if err := uow.BlockRepository().DeleteByFileId(ctx, fileId); err != nil {
		return "", fmt.Errorf("delete blocks: %w", err)
	}
	if err := uow.FileRepository().Delete(ctx, fileId); err != nil {
		return "", fmt.Errorf("delete file: %w", err)
	}
	return fmt.Sprintf("Deleted file %s", fileId), nil
}

func (t *Toolbox) renameFile(ctx context.Context, args map[string]interface{}) (string, error) {
	fileId, err := uuidArg(args, "fileId")
	if err != nil {
		return "", err
	}
	name, err := stringArg(args, "name")
	if err != nil {
		return "", err
	}

	uow := t.factory.NewUnitOfWork(ctx)
	repo := uow.FileRepository()
	file, err := repo.FindOne(ctx, specification.ByID{ID: fileId})
	if err != nil {
		return "", fmt.Errorf("load file: %w", err)
	}
	if file == nil {
		return "", fmt.Errorf("file %s not found", fileId)
	}

	file.Name = name
	if err := repo.Update(ctx, file); err != nil {
		return "", fmt.Errorf("rename file: %w", err)
	}
	return fmt.Sprintf("Renamed file %s to %q", fileId, name), nil
}

func (t *Toolbox) populateFile(ctx context.Context, args map[string]interface{}) (string, error) {
	fileId, err := uuidArg(args, "fileId")
	if err != nil {
		return "", err
	}
	rawBlocks, ok := args["blocks"].([]interface{})
	if !ok {
		return "", fmt.Errorf("missing or invalid blocks argument")
	}

	blocks := make([]*entity.Block, 0, len(rawBlocks))
	for i, raw := range rawBlocks {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("block %d is not an object", i)
		}
		content, _ := obj["content"].(string)
		blockType, _ := obj["type"].(string)
		if blockType == "" {
			blockType = "text"
		}
		blocks = append(blocks, &entity.Block{
			Type:     blockType,
			Content:  encodeText(content),
			Position: i,
			FileId:   fileId,
			UserId:   t.userId,
		})
	}

	uow := t.factory.NewUnitOfWork(ctx)
	if err := uow.BlockRepository().CreateBulk(ctx, blocks); err != nil {
		return "", fmt.Errorf("populate file: %w", err)
	}

	if t.publisher != nil {
		for _, block := range blocks {
			if err := t.publisher.PublishBlockEmbed(block.Id); err != nil {
				t.logger.Printf("[WARN] Failed to queue block %s for embedding: %v", block.Id, err)
			}
		}
	}
	return fmt.Sprintf("Added %d block(s) to file %s", len(blocks), fileId), nil
}

func (t *Toolbox) insertReference(ctx context.Context, args map[string]interface{}) (string, error) {
	fileId, err := uuidArg(args, "fileId")
	if err != nil {
		return "", err
	}

	uow := t.factory.NewUnitOfWork(ctx)
	file, err := uow.FileRepository().FindOne(ctx, specification.ByID{ID: fileId})
	if err != nil {
		return "", fmt.Errorf("load file: %w", err)
	}
	if file == nil {
		return "", fmt.Errorf("file %s not found", fileId)
	}

	t.mentions = append(t.mentions, Mention{FileId: file.Id, FileName: file.Name})
	return fmt.Sprintf("Reference to %q will be inserted", file.Name), nil
}

// encodeText wraps plain text as a JSON string for the jsonb content
// column.
func encodeText(text string) string {
	encoded, _ := json.Marshal(text)
	return string(encoded)
}

func stringArg(args map[string]interface{}, key string) (string, error) {
	value, ok := args[key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("missing or invalid %s argument", key)
	}
	return value, nil
}

func uuidArg(args map[string]interface{}, key string) (uuid.UUID, error) {
	raw, err := stringArg(args, key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q", key, raw)
	}
	return id, nil
}
