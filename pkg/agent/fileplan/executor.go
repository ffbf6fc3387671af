package fileplan

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"ai-docpilot-be/internal/entity"
	"ai-docpilot-be/internal/repository/specification"
	"ai-docpilot-be/internal/repository/unitofwork"
	"ai-docpilot-be/pkg/agent/intent"
	"ai-docpilot-be/pkg/agent/ops"
	"ai-docpilot-be/pkg/agent/state"
	"ai-docpilot-be/pkg/agent/stream"
	"ai-docpilot-be/pkg/llm"
)

// Step is one entry of the model's plan.
type Step struct {
	Action   string `json:"action"` // create, delete, rename, move
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	TempId   string `json:"tempId,omitempty"`
	ParentId string `json:"parentId,omitempty"`
	FileId   string `json:"fileId,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Executor asks the model for one upfront JSON plan and executes it
// in list order. Temp IDs bind after their create step runs; a
// reference to an unbound temp ID aborts the plan with an error
// instead of silently placing the file at the document root.
type Executor struct {
	factory     unitofwork.RepositoryFactory
	llmProvider llm.LLMProvider
	logger      *log.Logger
}

func NewExecutor(factory unitofwork.RepositoryFactory, llmProvider llm.LLMProvider, logger *log.Logger) *Executor {
	return &Executor{
		factory:     factory,
		llmProvider: llmProvider,
		logger:      logger,
	}
}

func (e *Executor) Run(ctx context.Context, s state.State, em stream.Emitter) state.Patch {
	if s.DocId == nil {
		return e.fail("file planning requires a document", fmt.Errorf("docId not set"))
	}

	uow := e.factory.NewUnitOfWork(ctx)
	files, err := uow.FileRepository().FindAll(ctx, specification.ByDocumentID{DocumentID: *s.DocId})
	if err != nil {
		return e.fail("failed to load file tree", err)
	}

	plan, err := e.requestPlan(ctx, s, files)
	if err != nil {
		return e.fail("failed to produce a plan", err)
	}

	executed, err := e.execute(ctx, s, plan)
	if err != nil {
		return state.Patch{
			Error: state.String(err.Error()),
			Operations: []ops.Operation{
				ops.NewChatResponse(fmt.Sprintf("Sorry, the plan could not be completed: %v", err)),
			},
		}
	}

	return state.Patch{
		Operations: []ops.Operation{
			ops.NewChatResponse(fmt.Sprintf("Done! I executed %d file operation(s).", executed)),
		},
	}
}

func (e *Executor) requestPlan(ctx context.Context, s state.State, files []*entity.File) ([]Step, error) {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("Plan the file operations needed for the user's request.\n")
	prompt.WriteString("Reference files that do not exist yet through tempId: declare \"tempId\" on the create step, then use that value as \"parentId\" on later steps.\n")
	prompt.WriteString("A tempId MUST be declared before it is referenced.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<file_tree>\n")
	if len(files) == 0 {
		prompt.WriteString("(empty document)\n")
	}
	for _, f := range files {
		parent := "root"
		if f.ParentId != nil {
			parent = f.ParentId.String()
		}
		prompt.WriteString(fmt.Sprintf("- %s: %q (parent: %s)\n", f.Id, f.Name, parent))
	}
	prompt.WriteString("</file_tree>\n\n")

	prompt.WriteString("<user_query>\n")
	prompt.WriteString(s.UserMessage)
	prompt.WriteString("\n</user_query>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY a valid JSON array of steps:\n")
	prompt.WriteString(`[{"action": "create", "type": "file", "title": "...", "tempId": "temp_1", "parentId": "...", "content": "..."},` + "\n")
	prompt.WriteString(` {"action": "delete", "fileId": "..."},` + "\n")
	prompt.WriteString(` {"action": "rename", "fileId": "...", "title": "..."},` + "\n")
	prompt.WriteString(` {"action": "move", "fileId": "...", "parentId": "..."}]` + "\n")
	prompt.WriteString("</output_format>")

	response, err := e.llmProvider.Generate(ctx, prompt.String(), llm.WithTemperature(0.0), llm.WithJSONMode())
	if err != nil {
		return nil, err
	}

	jsonContent := intent.ExtractJSON(response)
	if !strings.HasPrefix(jsonContent, "[") {
		return nil, fmt.Errorf("plan is not a JSON array")
	}

	var plan []Step
	if err := json.Unmarshal([]byte(jsonContent), &plan); err != nil {
		return nil, fmt.Errorf("plan unmarshal failed: %w", err)
	}
	return plan, nil
}

// execute runs the plan in list order against the store. It returns
// the number of executed steps; the first failure aborts the rest.
func (e *Executor) execute(ctx context.Context, s state.State, plan []Step) (int, error) {
	tempIds := map[string]uuid.UUID{}
	executed := 0

	uow := e.factory.NewUnitOfWork(ctx)
	fileRepo := uow.FileRepository()
	blockRepo := uow.BlockRepository()

	for i, step := range plan {
		switch step.Action {
		case "create":
			parentId, err := e.resolveParent(step.ParentId, tempIds)
			if err != nil {
				return executed, fmt.Errorf("step %d: %w", i, err)
			}

			file := &entity.File{
				Name:       step.Title,
				DocumentId: *s.DocId,
				ParentId:   parentId,
				UserId:     s.UserId,
			}
			if err := fileRepo.Create(ctx, file); err != nil {
				return executed, fmt.Errorf("step %d: create %q: %w", i, step.Title, err)
			}
			if step.TempId != "" {
				tempIds[step.TempId] = file.Id
			}

			if step.Content != "" {
				block := &entity.Block{
					Type:    "text",
					Content: encodeText(step.Content),
					FileId:  file.Id,
					UserId:  s.UserId,
				}
				if err := blockRepo.Create(ctx, block); err != nil {
					return executed, fmt.Errorf("step %d: populate %q: %w", i, step.Title, err)
				}
			}

		case "delete":
			fileId, err := parseFileId(step.FileId)
			if err != nil {
				return executed, fmt.Errorf("step %d: %w", i, err)
			}
			if err := blockRepo.DeleteByFileId(ctx, fileId); err != nil {
				return executed, fmt.Errorf("step %d: delete blocks: %w", i, err)
			}
			if err := fileRepo.Delete(ctx, fileId); err != nil {
				return executed, fmt.Errorf("step %d: delete file: %w", i, err)
			}

		case "rename":
			fileId, err := parseFileId(step.FileId)
			if err != nil {
				return executed, fmt.Errorf("step %d: %w", i, err)
			}
			file, err := fileRepo.FindOne(ctx, specification.ByID{ID: fileId})
			if err != nil || file == nil {
				return executed, fmt.Errorf("step %d: file %s not found", i, fileId)
			}
			file.Name = step.Title
			if err := fileRepo.Update(ctx, file); err != nil {
				return executed, fmt.Errorf("step %d: rename: %w", i, err)
			}

		case "move":
			fileId, err := parseFileId(step.FileId)
			if err != nil {
				return executed, fmt.Errorf("step %d: %w", i, err)
			}
			parentId, err := e.resolveParent(step.ParentId, tempIds)
			if err != nil {
				return executed, fmt.Errorf("step %d: %w", i, err)
			}
			file, err := fileRepo.FindOne(ctx, specification.ByID{ID: fileId})
			if err != nil || file == nil {
				return executed, fmt.Errorf("step %d: file %s not found", i, fileId)
			}
			file.ParentId = parentId
			if err := fileRepo.Update(ctx, file); err != nil {
				return executed, fmt.Errorf("step %d: move: %w", i, err)
			}

		default:
			return executed, fmt.Errorf("step %d: unknown action %q", i, step.Action)
		}

		executed++
	}

	return executed, nil
}

// resolveParent maps a plan parent reference to a real ID. Temp IDs
// must already be bound: an unbound temp reference is a hard error.
func (e *Executor) resolveParent(raw string, tempIds map[string]uuid.UUID) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "temp_") {
		id, ok := tempIds[raw]
		if !ok {
			return nil, fmt.Errorf("temp ID %q referenced before its create step executed", raw)
		}
		return &id, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid parentId %q", raw)
	}
	return &id, nil
}

func parseFileId(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid fileId %q", raw)
	}
	return id, nil
}

func (e *Executor) fail(message string, err error) state.Patch {
	e.logger.Printf("[ERROR] %s: %v", message, err)
	return state.Patch{
		Error: state.String(fmt.Sprintf("%s: %v", message, err)),
		Operations: []ops.Operation{
			ops.NewChatResponse("Sorry, I couldn't plan that change. Please try again."),
		},
	}
}

func encodeText(text string) string {
	encoded, _ := json.Marshal(text)
	return string(encoded)
}
