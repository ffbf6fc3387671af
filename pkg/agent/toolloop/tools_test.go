package toolloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/google/uuid"

	"ai-docpilot-be/internal/entity"
	"ai-docpilot-be/internal/repository/contract"
	"ai-docpilot-be/internal/repository/specification"
	"ai-docpilot-be/internal/repository/unitofwork"
	"ai-docpilot-be/pkg/llm"
)

type memBlockRepo struct {
	blocks []*entity.Block
}

func (r *memBlockRepo) Create(ctx context.Context, block *entity.Block) error {
	block.Id = uuid.New()
	r.blocks = append(r.blocks, block)
	return nil
}

func (r *memBlockRepo) CreateBulk(ctx context.Context, blocks []*entity.Block) error {
	for _, block := range blocks {
		if err := r.Create(ctx, block); err != nil {
			return err
		}
	}
	return nil
}

func (r *memBlockRepo) Update(ctx context.Context, block *entity.Block) error { return nil }
func (r *memBlockRepo) Delete(ctx context.Context, id uuid.UUID) error       { return nil }

func (r *memBlockRepo) DeleteByFileId(ctx context.Context, fileId uuid.UUID) error {
	kept := r.blocks[:0]
	for _, block := range r.blocks {
		if block.FileId != fileId {
			kept = append(kept, block)
		}
	}
	r.blocks = kept
	return nil
}

func (r *memBlockRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Block, error) {
	return nil, nil
}

func (r *memBlockRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Block, error) {
	return r.blocks, nil
}

func (r *memBlockRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.blocks)), nil
}

func (r *memBlockRepo) FindByFileId(ctx context.Context, fileId uuid.UUID) ([]*entity.Block, error) {
	var matched []*entity.Block
	for _, block := range r.blocks {
		if block.FileId == fileId {
			matched = append(matched, block)
		}
	}
	return matched, nil
}

type toolboxUow struct {
	blockRepo *memBlockRepo
}

func (u *toolboxUow) Begin(ctx context.Context) error { return nil }
func (u *toolboxUow) Commit() error                   { return nil }
func (u *toolboxUow) Rollback() error                 { return nil }

func (u *toolboxUow) ProjectRepository() contract.ProjectRepository   { return nil }
func (u *toolboxUow) DocumentRepository() contract.DocumentRepository { return nil }
func (u *toolboxUow) FileRepository() contract.FileRepository         { return nil }
func (u *toolboxUow) BlockRepository() contract.BlockRepository       { return u.blockRepo }
func (u *toolboxUow) BlockEmbeddingRepository() contract.BlockEmbeddingRepository {
	return nil
}
func (u *toolboxUow) ChatMessageRepository() contract.ChatMessageRepository { return nil }

type toolboxFactory struct {
	uow *toolboxUow
}

func (f *toolboxFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork { return f.uow }

type countingPublisher struct {
	calls int
	errAt int
}

func (p *countingPublisher) PublishBlockEmbed(blockId uuid.UUID) error {
	p.calls++
	if p.calls == p.errAt {
		return errors.New("bus closed")
	}
	return nil
}

func newToolboxFixture(publisher EmbedPublisher) (*Toolbox, *toolboxUow) {
	uow := &toolboxUow{blockRepo: &memBlockRepo{}}
	box := NewToolbox(&toolboxFactory{uow: uow}, publisher, uuid.New(), uuid.New(), log.New(os.Stderr, "[TEST] ", log.LstdFlags))
	return box, uow
}

func populateArgs(fileId uuid.UUID, contents ...string) map[string]interface{} {
	rawBlocks := make([]interface{}, len(contents))
	for i, content := range contents {
		rawBlocks[i] = map[string]interface{}{"content": content}
	}
	return map[string]interface{}{"fileId": fileId.String(), "blocks": rawBlocks}
}

func TestPopulateFileStoresValidJSONContent(t *testing.T) {
	box, uow := newToolboxFixture(nil)
	fileId := uuid.New()

	inputs := []string{
		"plain text",
		"bell \a char",
		"esc \x1b here",
		"line one\nline \"two\"",
	}

	if _, err := box.Execute(context.Background(), llm.ToolCall{
		Name:      "populate_file",
		Arguments: populateArgs(fileId, inputs...),
	}); err != nil {
		t.Fatalf("populate_file failed: %v", err)
	}

	if len(uow.blockRepo.blocks) != len(inputs) {
		t.Fatalf("expected %d blocks, got %d", len(inputs), len(uow.blockRepo.blocks))
	}
	for i, block := range uow.blockRepo.blocks {
		if !json.Valid([]byte(block.Content)) {
			t.Errorf("block %d content is not valid JSON: %s", i, block.Content)
			continue
		}
		var decoded string
		if err := json.Unmarshal([]byte(block.Content), &decoded); err != nil || decoded != inputs[i] {
			t.Errorf("block %d does not round-trip: got %q want %q", i, decoded, inputs[i])
		}
	}
}

func TestPublishFailureDoesNotDropRemainingBlocks(t *testing.T) {
	publisher := &countingPublisher{errAt: 1}
	box, uow := newToolboxFixture(publisher)
	fileId := uuid.New()

	output, err := box.Execute(context.Background(), llm.ToolCall{
		Name:      "populate_file",
		Arguments: populateArgs(fileId, "first", "second", "third"),
	})
	if err != nil {
		t.Fatalf("populate_file failed: %v", err)
	}

	if publisher.calls != 3 {
		t.Errorf("every block must be queued for embedding, got %d of 3", publisher.calls)
	}
	if len(uow.blockRepo.blocks) != 3 {
		t.Errorf("expected 3 stored blocks, got %d", len(uow.blockRepo.blocks))
	}
	if want := fmt.Sprintf("Added 3 block(s) to file %s", fileId); output != want {
		t.Errorf("unexpected tool output: %q", output)
	}
}
