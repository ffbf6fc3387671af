package fileplan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"ai-docpilot-be/internal/entity"
	"ai-docpilot-be/internal/repository/contract"
	"ai-docpilot-be/internal/repository/specification"
	"ai-docpilot-be/internal/repository/unitofwork"
	"ai-docpilot-be/pkg/agent/ops"
	"ai-docpilot-be/pkg/agent/state"
	"ai-docpilot-be/pkg/agent/stream"
	"ai-docpilot-be/pkg/llm"
)

type planProvider struct {
	response string
	err      error
}

func (p *planProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (*llm.Result, error) {
	return nil, errors.New("not used")
}

func (p *planProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.response, p.err
}

type memFileRepo struct {
	files map[uuid.UUID]*entity.File
}

func (r *memFileRepo) Create(ctx context.Context, file *entity.File) error {
	file.Id = uuid.New()
	r.files[file.Id] = file
	return nil
}

func (r *memFileRepo) Update(ctx context.Context, file *entity.File) error {
	if _, ok := r.files[file.Id]; !ok {
		return fmt.Errorf("file %s not found", file.Id)
	}
	r.files[file.Id] = file
	return nil
}

func (r *memFileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.files, id)
	return nil
}

func (r *memFileRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.File, error) {
	for _, spec := range specs {
		if byId, ok := spec.(specification.ByID); ok {
			if file, found := r.files[byId.ID]; found {
				return file, nil
			}
		}
	}
	return nil, nil
}

func (r *memFileRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.File, error) {
	files := make([]*entity.File, 0, len(r.files))
	for _, file := range r.files {
		files = append(files, file)
	}
	return files, nil
}

func (r *memFileRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.files)), nil
}

func (r *memFileRepo) FindByProjectId(ctx context.Context, projectId uuid.UUID) ([]*entity.File, error) {
	return r.FindAll(ctx)
}

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

type fakeUow struct {
	fileRepo  *memFileRepo
	blockRepo *memBlockRepo
}

func (u *fakeUow) Begin(ctx context.Context) error { return nil }
func (u *fakeUow) Commit() error                   { return nil }
func (u *fakeUow) Rollback() error                 { return nil }

func (u *fakeUow) ProjectRepository() contract.ProjectRepository   { return nil }
func (u *fakeUow) DocumentRepository() contract.DocumentRepository { return nil }
func (u *fakeUow) FileRepository() contract.FileRepository         { return u.fileRepo }
func (u *fakeUow) BlockRepository() contract.BlockRepository       { return u.blockRepo }
func (u *fakeUow) BlockEmbeddingRepository() contract.BlockEmbeddingRepository {
	return nil
}
func (u *fakeUow) ChatMessageRepository() contract.ChatMessageRepository { return nil }

type fakeFactory struct {
	uow *fakeUow
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork { return f.uow }

func newFixture(response string) (*Executor, *fakeUow) {
	uow := &fakeUow{
		fileRepo:  &memFileRepo{files: map[uuid.UUID]*entity.File{}},
		blockRepo: &memBlockRepo{},
	}
	provider := &planProvider{response: response}
	e := NewExecutor(&fakeFactory{uow: uow}, provider, log.New(os.Stderr, "[TEST] ", log.LstdFlags))
	return e, uow
}

func planState() state.State {
	docId := uuid.New()
	return state.State{
		UserMessage: "scaffold an api design doc",
		UserId:      uuid.New(),
		DocId:       &docId,
	}
}

func TestTempIdBindsAfterCreate(t *testing.T) {
	e, uow := newFixture(`[
		{"action": "create", "title": "API", "tempId": "temp_1"},
		{"action": "create", "title": "Endpoints", "parentId": "temp_1", "content": "GET /health"}
	]`)

	patch := e.Run(context.Background(), planState(), stream.NullEmitter{})

	if patch.Error != nil {
		t.Fatalf("unexpected error: %v", *patch.Error)
	}
	var parent, child *entity.File
	for _, file := range uow.fileRepo.files {
		switch file.Name {
		case "API":
			parent = file
		case "Endpoints":
			child = file
		}
	}
	if parent == nil || child == nil {
		t.Fatal("expected both files to be created")
	}
	if child.ParentId == nil || *child.ParentId != parent.Id {
		t.Errorf("child not bound to real parent ID: %v", child.ParentId)
	}
	if len(uow.blockRepo.blocks) != 1 || uow.blockRepo.blocks[0].FileId != child.Id {
		t.Errorf("initial content should persist as one block on the child: %+v", uow.blockRepo.blocks)
	}
	if got := fmt.Sprint(patch.Operations[0].Content); !strings.Contains(got, "2") {
		t.Errorf("summary should count executed steps: %q", got)
	}
}

func TestForwardTempReferenceFailsLoudly(t *testing.T) {
	e, uow := newFixture(`[
		{"action": "create", "title": "Endpoints", "parentId": "temp_1"},
		{"action": "create", "title": "API", "tempId": "temp_1"}
	]`)

	patch := e.Run(context.Background(), planState(), stream.NullEmitter{})

	if patch.Error == nil {
		t.Fatal("expected forward temp reference to abort the plan")
	}
	if !strings.Contains(*patch.Error, "temp_1") {
		t.Errorf("error should name the unbound temp ID: %q", *patch.Error)
	}
	if len(uow.fileRepo.files) != 0 {
		t.Errorf("no files should be created past the failing step: %d", len(uow.fileRepo.files))
	}
	if len(patch.Operations) != 1 || patch.Operations[0].Type != ops.TypeChatResponse {
		t.Errorf("expected a single chat_response explaining the failure: %+v", patch.Operations)
	}
}

func TestNonArrayPlanAborts(t *testing.T) {
	e, uow := newFixture(`{"action": "create", "title": "API"}`)

	patch := e.Run(context.Background(), planState(), stream.NullEmitter{})

	if patch.Error == nil {
		t.Fatal("expected a non-array plan to abort")
	}
	if len(uow.fileRepo.files) != 0 {
		t.Error("nothing should execute without a valid plan")
	}
}

func TestRenameAndDeleteAgainstExistingTree(t *testing.T) {
	e, uow := newFixture("")
	docId := uuid.New()
	userId := uuid.New()

	old := &entity.File{Name: "Draft", DocumentId: docId, UserId: userId}
	stale := &entity.File{Name: "Scratch", DocumentId: docId, UserId: userId}
	_ = uow.fileRepo.Create(context.Background(), old)
	_ = uow.fileRepo.Create(context.Background(), stale)
	_ = uow.blockRepo.Create(context.Background(), &entity.Block{FileId: stale.Id, UserId: userId})

	e.llmProvider = &planProvider{response: fmt.Sprintf(`[
		{"action": "rename", "fileId": %q, "title": "Final"},
		{"action": "delete", "fileId": %q}
	]`, old.Id, stale.Id)}

	s := state.State{UserMessage: "clean up", UserId: userId, DocId: &docId}
	patch := e.Run(context.Background(), s, stream.NullEmitter{})

	if patch.Error != nil {
		t.Fatalf("unexpected error: %v", *patch.Error)
	}
	if uow.fileRepo.files[old.Id].Name != "Final" {
		t.Errorf("rename not applied: %q", uow.fileRepo.files[old.Id].Name)
	}
	if _, exists := uow.fileRepo.files[stale.Id]; exists {
		t.Error("stale file should be deleted")
	}
	if len(uow.blockRepo.blocks) != 0 {
		t.Error("deleted file's blocks should be removed")
	}
}
