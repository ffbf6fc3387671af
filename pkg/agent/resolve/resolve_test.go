package resolve

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/google/uuid"

	"ai-docpilot-be/internal/entity"
	"ai-docpilot-be/internal/repository/contract"
	"ai-docpilot-be/internal/repository/specification"
	"ai-docpilot-be/internal/repository/unitofwork"
	"ai-docpilot-be/pkg/agent/ops"
	"ai-docpilot-be/pkg/agent/state"
	"ai-docpilot-be/pkg/llm"
)

type fakeProvider struct {
	responses []string
	err       error
	calls     int
}

func (p *fakeProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (*llm.Result, error) {
	return nil, errors.New("not used")
}

func (p *fakeProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if p.calls >= len(p.responses) {
		return "", errors.New("fake exhausted")
	}
	text := p.responses[p.calls]
	p.calls++
	return text, nil
}

type fakeProjectRepo struct {
	projects []*entity.Project
	err      error
}

func (r *fakeProjectRepo) Create(ctx context.Context, project *entity.Project) error { return nil }
func (r *fakeProjectRepo) Update(ctx context.Context, project *entity.Project) error { return nil }
func (r *fakeProjectRepo) Delete(ctx context.Context, id uuid.UUID) error            { return nil }

func (r *fakeProjectRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Project, error) {
	return nil, nil
}

func (r *fakeProjectRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Project, error) {
	return r.projects, r.err
}

func (r *fakeProjectRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.projects)), nil
}

type fakeFileRepo struct {
	files []*entity.File
	err   error
}

func (r *fakeFileRepo) Create(ctx context.Context, file *entity.File) error { return nil }
func (r *fakeFileRepo) Update(ctx context.Context, file *entity.File) error { return nil }
func (r *fakeFileRepo) Delete(ctx context.Context, id uuid.UUID) error      { return nil }

func (r *fakeFileRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.File, error) {
	return nil, nil
}

func (r *fakeFileRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.File, error) {
	return r.files, r.err
}

func (r *fakeFileRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.files)), nil
}

func (r *fakeFileRepo) FindByProjectId(ctx context.Context, projectId uuid.UUID) ([]*entity.File, error) {
	return r.files, r.err
}

type fakeUow struct {
	projectRepo *fakeProjectRepo
	fileRepo    *fakeFileRepo
}

func (u *fakeUow) Begin(ctx context.Context) error { return nil }
func (u *fakeUow) Commit() error                   { return nil }
func (u *fakeUow) Rollback() error                 { return nil }

func (u *fakeUow) ProjectRepository() contract.ProjectRepository   { return u.projectRepo }
func (u *fakeUow) DocumentRepository() contract.DocumentRepository { return nil }
func (u *fakeUow) FileRepository() contract.FileRepository         { return u.fileRepo }
func (u *fakeUow) BlockRepository() contract.BlockRepository       { return nil }
func (u *fakeUow) BlockEmbeddingRepository() contract.BlockEmbeddingRepository {
	return nil
}
func (u *fakeUow) ChatMessageRepository() contract.ChatMessageRepository { return nil }

type fakeFactory struct {
	uow *fakeUow
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork { return f.uow }

type mapStore struct {
	parked map[string]state.State
}

func newMapStore() *mapStore {
	return &mapStore{parked: map[string]state.State{}}
}

func (s *mapStore) Park(token string, snapshot state.State) {
	s.parked[token] = snapshot
}

func (s *mapStore) Take(token string) (state.State, bool) {
	snapshot, ok := s.parked[token]
	if ok {
		delete(s.parked, token)
	}
	return snapshot, ok
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[TEST] ", log.LstdFlags)
}

func namedProject(name string) *entity.Project {
	return &entity.Project{Id: uuid.New(), Name: name}
}

func namedFile(name string) *entity.File {
	return &entity.File{Id: uuid.New(), Name: name}
}

func TestSingleProjectBindsWithoutModelCall(t *testing.T) {
	only := namedProject("Docs")
	provider := &fakeProvider{err: errors.New("should not be called")}
	r := NewProjectResolver(&fakeFactory{uow: &fakeUow{projectRepo: &fakeProjectRepo{projects: []*entity.Project{only}}}}, provider, newMapStore(), testLogger())

	patch := r.Resolve(context.Background(), state.State{UserMessage: "hi", UserId: uuid.New()})

	if patch.ProjectId == nil || *patch.ProjectId != only.Id {
		t.Errorf("single project should bind directly: %v", patch.ProjectId)
	}
	if provider.calls != 0 {
		t.Errorf("no model call expected, got %d", provider.calls)
	}
}

func TestAmbiguousProjectsParkSnapshotWithOptions(t *testing.T) {
	store := newMapStore()
	provider := &fakeProvider{responses: []string{"AMBIGUOUS"}}
	projects := []*entity.Project{namedProject("Alpha"), namedProject("Beta")}
	r := NewProjectResolver(&fakeFactory{uow: &fakeUow{projectRepo: &fakeProjectRepo{projects: projects}}}, provider, store, testLogger())

	patch := r.Resolve(context.Background(), state.State{UserMessage: "summarize", UserId: uuid.New()})

	if patch.AwaitingInput == nil || !*patch.AwaitingInput {
		t.Fatal("expected awaiting-input patch")
	}
	if len(patch.Operations) != 1 || patch.Operations[0].Type != ops.TypeRequestUserInput {
		t.Fatalf("expected exactly one request_user_input, got %+v", patch.Operations)
	}
	content := patch.Operations[0].Content.(ops.UserInputContent)
	if content.Field != "projectId" {
		t.Errorf("wrong field: %q", content.Field)
	}
	if len(content.Options) != 2 || content.Options[0].Label != "Alpha" || content.Options[1].Label != "Beta" {
		t.Errorf("expected both projects as options: %+v", content.Options)
	}

	snapshot, ok := store.Take(content.ResumeToken)
	if !ok {
		t.Fatal("snapshot not parked under the token")
	}
	if !snapshot.AwaitingInput || snapshot.ResumeStage != StageProject {
		t.Errorf("snapshot should record the project stage: %+v", snapshot.ResumeStage)
	}
}

func TestInvalidModelPickInterruptsInsteadOfGuessing(t *testing.T) {
	store := newMapStore()
	provider := &fakeProvider{responses: []string{uuid.NewString()}}
	projects := []*entity.Project{namedProject("Alpha"), namedProject("Beta")}
	r := NewProjectResolver(&fakeFactory{uow: &fakeUow{projectRepo: &fakeProjectRepo{projects: projects}}}, provider, store, testLogger())

	patch := r.Resolve(context.Background(), state.State{UserMessage: "notes", UserId: uuid.New()})

	if patch.ProjectId != nil {
		t.Error("an ID outside the project list must not bind")
	}
	if patch.AwaitingInput == nil || !*patch.AwaitingInput {
		t.Error("expected an interrupt for an invalid pick")
	}
}

func TestProjectListFailureCarriesApology(t *testing.T) {
	repo := &fakeProjectRepo{err: errors.New("db down")}
	r := NewProjectResolver(&fakeFactory{uow: &fakeUow{projectRepo: repo}}, &fakeProvider{}, newMapStore(), testLogger())

	patch := r.Resolve(context.Background(), state.State{UserMessage: "hello", UserId: uuid.New()})

	if patch.Error == nil {
		t.Fatal("expected error for failed project listing")
	}
	if len(patch.Operations) != 1 || patch.Operations[0].Type != ops.TypeChatResponse {
		t.Errorf("degraded terminal must carry a chat_response: %+v", patch.Operations)
	}
}

func TestNoProjectsIsTerminal(t *testing.T) {
	r := NewProjectResolver(&fakeFactory{uow: &fakeUow{projectRepo: &fakeProjectRepo{}}}, &fakeProvider{}, newMapStore(), testLogger())

	patch := r.Resolve(context.Background(), state.State{UserMessage: "hello", UserId: uuid.New()})

	if patch.Error == nil {
		t.Error("expected error for user without projects")
	}
	if len(patch.Operations) != 1 || patch.Operations[0].Type != ops.TypeChatResponse {
		t.Errorf("expected explanatory chat_response: %+v", patch.Operations)
	}
}

func TestSwitchDetectionFailureKeepsBinding(t *testing.T) {
	bound := uuid.New()
	provider := &fakeProvider{err: errors.New("model down")}
	r := NewProjectResolver(&fakeFactory{uow: &fakeUow{projectRepo: &fakeProjectRepo{}}}, provider, newMapStore(), testLogger())

	patch := r.Resolve(context.Background(), state.State{UserMessage: "continue here", ProjectId: &bound, UserId: uuid.New()})

	if patch.ProjectId != nil || patch.ClearProject {
		t.Errorf("failed switch detection must keep the current binding: %+v", patch)
	}
}

func TestFileMatchFailureFallsBackToAllFiles(t *testing.T) {
	projectId := uuid.New()
	files := []*entity.File{namedFile("a.md"), namedFile("b.md")}
	provider := &fakeProvider{err: errors.New("model down")}
	r := NewFileResolver(&fakeFactory{uow: &fakeUow{fileRepo: &fakeFileRepo{files: files}}}, provider, newMapStore(), testLogger())

	patch := r.Resolve(context.Background(), state.State{UserMessage: "review", ProjectId: &projectId, UserId: uuid.New()})

	if len(patch.TargetFileIds) != 2 {
		t.Errorf("expected fallback to all files, got %v", patch.TargetFileIds)
	}
}

func TestFileAmbiguityInterrupts(t *testing.T) {
	projectId := uuid.New()
	store := newMapStore()
	files := []*entity.File{namedFile("a.md"), namedFile("b.md")}
	provider := &fakeProvider{responses: []string{`{"ambiguous": true}`}}
	r := NewFileResolver(&fakeFactory{uow: &fakeUow{fileRepo: &fakeFileRepo{files: files}}}, provider, store, testLogger())

	patch := r.Resolve(context.Background(), state.State{UserMessage: "the doc", ProjectId: &projectId, UserId: uuid.New()})

	if patch.AwaitingInput == nil || !*patch.AwaitingInput {
		t.Fatal("expected awaiting-input patch")
	}
	content := patch.Operations[0].Content.(ops.UserInputContent)
	if content.Field != "targetFileIds" || len(content.Options) != 2 {
		t.Errorf("unexpected interrupt content: %+v", content)
	}
	if _, ok := store.Take(content.ResumeToken); !ok {
		t.Error("snapshot not parked")
	}
}

func TestFileResolverSkipsWhenTargetsSet(t *testing.T) {
	projectId := uuid.New()
	provider := &fakeProvider{err: errors.New("should not be called")}
	r := NewFileResolver(&fakeFactory{uow: &fakeUow{fileRepo: &fakeFileRepo{err: errors.New("should not query")}}}, provider, newMapStore(), testLogger())

	patch := r.Resolve(context.Background(), state.State{
		UserMessage:   "more",
		ProjectId:     &projectId,
		TargetFileIds: []uuid.UUID{uuid.New()},
		UserId:        uuid.New(),
	})

	if patch.TargetFileIds != nil || patch.Error != nil {
		t.Errorf("resolver must be a no-op when targets are set: %+v", patch)
	}
}

func TestEmptyProjectYieldsEmptyTargets(t *testing.T) {
	projectId := uuid.New()
	r := NewFileResolver(&fakeFactory{uow: &fakeUow{fileRepo: &fakeFileRepo{}}}, &fakeProvider{}, newMapStore(), testLogger())

	patch := r.Resolve(context.Background(), state.State{UserMessage: "anything", ProjectId: &projectId, UserId: uuid.New()})

	if patch.TargetFileIds == nil || len(patch.TargetFileIds) != 0 {
		t.Errorf("expected explicit empty target list, got %v", patch.TargetFileIds)
	}
}
