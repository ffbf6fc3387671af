package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"ai-docpilot-be/internal/entity"
	"ai-docpilot-be/internal/repository/unitofwork"
	"ai-docpilot-be/pkg/agent/intent"
	"ai-docpilot-be/pkg/agent/ops"
	"ai-docpilot-be/pkg/agent/state"
	"ai-docpilot-be/pkg/llm"
)

// FileResolver narrows the run to the files the message refers to.
// AMBIGUOUS ends the run with the same awaiting-input terminal as
// project resolution; the caller resubmits with resolvedFileIds.
type FileResolver struct {
	factory     unitofwork.RepositoryFactory
	llmProvider llm.LLMProvider
	interrupts  InterruptStore
	logger      *log.Logger
}

func NewFileResolver(factory unitofwork.RepositoryFactory, llmProvider llm.LLMProvider, interrupts InterruptStore, logger *log.Logger) *FileResolver {
	return &FileResolver{
		factory:     factory,
		llmProvider: llmProvider,
		interrupts:  interrupts,
		logger:      logger,
	}
}

func (r *FileResolver) Resolve(ctx context.Context, s state.State) state.Patch {
	if s.ProjectId == nil {
		return state.Patch{Error: state.String("file resolution requires a bound project")}
	}
	if len(s.TargetFileIds) > 0 {
		return state.Patch{}
	}

	uow := r.factory.NewUnitOfWork(ctx)
	files, err := uow.FileRepository().FindByProjectId(ctx, *s.ProjectId)
	if err != nil {
		return state.Patch{Error: state.String(fmt.Sprintf("failed to list files: %v", err))}
	}
	if len(files) == 0 {
		return state.Patch{TargetFileIds: []uuid.UUID{}}
	}

	answer, err := r.match(ctx, s.UserMessage, files)
	if err != nil {
		r.logger.Printf("[WARN] File match failed, falling back to all files: %v", err)
		return state.Patch{TargetFileIds: fileIds(files)}
	}

	switch {
	case answer.All:
		return state.Patch{TargetFileIds: fileIds(files)}
	case answer.Ambiguous:
		return interruptPatch(r.interrupts, s, StageFiles,
			"Which file do you mean?", "targetFileIds", fileOptions(files))
	}

	var resolved []uuid.UUID
	for _, raw := range answer.FileIds {
		id, err := uuid.Parse(raw)
		if err != nil || !containsFile(files, id) {
			continue
		}
		resolved = append(resolved, id)
	}
	if len(resolved) == 0 {
		return interruptPatch(r.interrupts, s, StageFiles,
			"Which file do you mean?", "targetFileIds", fileOptions(files))
	}

	r.logger.Printf("[FILES] Resolved %d target file(s)", len(resolved))
	return state.Patch{TargetFileIds: resolved}
}

type fileMatch struct {
	All       bool
	Ambiguous bool
	FileIds   []string
}

func (r *FileResolver) match(ctx context.Context, userMessage string, files []*entity.File) (*fileMatch, error) {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("Decide which of the user's files their message refers to.\n")
	prompt.WriteString("</system>\n\n")
	prompt.WriteString("<files>\n")
	for _, f := range files {
		prompt.WriteString(fmt.Sprintf("- %s: %s\n", f.Id, f.Name))
	}
	prompt.WriteString("</files>\n\n")
	prompt.WriteString("<user_query>\n")
	prompt.WriteString(userMessage)
	prompt.WriteString("\n</user_query>\n\n")
	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON, one of:\n")
	prompt.WriteString("{\"fileIds\": [\"id1\", \"id2\"]}  - the matching files\n")
	prompt.WriteString("{\"all\": true}                - the message spans every file\n")
	prompt.WriteString("{\"ambiguous\": true}          - more than one file could match and you cannot tell\n")
	prompt.WriteString("</output_format>")

	response, err := r.llmProvider.Generate(ctx, prompt.String(), llm.WithTemperature(0.0), llm.WithJSONMode())
	if err != nil {
		return nil, err
	}

	jsonContent := intent.ExtractJSON(response)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON in file match answer")
	}

	var parsed struct {
		FileIds   []string `json:"fileIds"`
		All       bool     `json:"all"`
		Ambiguous bool     `json:"ambiguous"`
	}
	if err := json.Unmarshal([]byte(jsonContent), &parsed); err != nil {
		return nil, err
	}

	return &fileMatch{All: parsed.All, Ambiguous: parsed.Ambiguous, FileIds: parsed.FileIds}, nil
}

func fileIds(files []*entity.File) []uuid.UUID {
	ids := make([]uuid.UUID, len(files))
	for i, f := range files {
		ids[i] = f.Id
	}
	return ids
}

func fileOptions(files []*entity.File) []ops.UserInputOption {
	options := make([]ops.UserInputOption, len(files))
	for i, f := range files {
		options[i] = ops.UserInputOption{Id: f.Id.String(), Label: f.Name}
	}
	return options
}

func containsFile(files []*entity.File, id uuid.UUID) bool {
	for _, f := range files {
		if f.Id == id {
			return true
		}
	}
	return false
}
