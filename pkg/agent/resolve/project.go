package resolve

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
	"ai-docpilot-be/pkg/llm"
)

// ProjectResolver binds the run to one of the caller's projects.
// Ambiguity ends the run with a request_user_input terminal; the
// caller resubmits with resolvedProjectId plus the resume token.
type ProjectResolver struct {
	factory     unitofwork.RepositoryFactory
	llmProvider llm.LLMProvider
	interrupts  InterruptStore
	logger      *log.Logger
}

func NewProjectResolver(factory unitofwork.RepositoryFactory, llmProvider llm.LLMProvider, interrupts InterruptStore, logger *log.Logger) *ProjectResolver {
	return &ProjectResolver{
		factory:     factory,
		llmProvider: llmProvider,
		interrupts:  interrupts,
		logger:      logger,
	}
}

func (r *ProjectResolver) Resolve(ctx context.Context, s state.State) state.Patch {
	cleared := false
	if s.ProjectId != nil {
		switching, err := r.detectSwitch(ctx, s)
		if err != nil {
			r.logger.Printf("[WARN] Switch detection failed, keeping binding: %v", err)
			return state.Patch{}
		}
		if !switching {
			return state.Patch{}
		}
		r.logger.Printf("[PROJECT] Switch detected, re-resolving")
		cleared = true
	}

	uow := r.factory.NewUnitOfWork(ctx)
	projects, err := uow.ProjectRepository().FindAll(ctx,
		specification.OwnedByUser{UserID: s.UserId},
		specification.OrderBy{Field: "name"},
	)
	if err != nil {
		return state.Patch{
			ClearProject: cleared,
			Error:        state.String(fmt.Sprintf("failed to list projects: %v", err)),
			Operations: []ops.Operation{
				ops.NewChatResponse("Sorry, I couldn't load your projects. Please try again."),
			},
		}
	}

	switch len(projects) {
	case 0:
		return state.Patch{
			ClearProject: cleared,
			Error:        state.String("no projects found for user"),
			Operations: []ops.Operation{
				ops.NewChatResponse("You don't have any projects yet. Create one first and I can help you work in it."),
			},
		}
	case 1:
		id := projects[0].Id
		return state.Patch{ClearProject: cleared, ProjectId: &id}
	}

	picked, err := r.pick(ctx, s.UserMessage, projects)
	if err != nil {
		r.logger.Printf("[WARN] Project pick failed: %v", err)
		picked = "AMBIGUOUS"
	}

	switch picked {
	case "AMBIGUOUS", "NONE":
		base := s
		if cleared {
			base = state.Apply(s, state.Patch{ClearProject: true})
		}
		patch := interruptPatch(r.interrupts, base, StageProject,
			"Which project should I work in?", "projectId", projectOptions(projects))
		patch.ClearProject = cleared
		return patch
	}

	id, err := uuid.Parse(picked)
	if err != nil || !containsProject(projects, id) {
		r.logger.Printf("[WARN] Model picked invalid project %q", picked)
		base := s
		if cleared {
			base = state.Apply(s, state.Patch{ClearProject: true})
		}
		patch := interruptPatch(r.interrupts, base, StageProject,
			"Which project should I work in?", "projectId", projectOptions(projects))
		patch.ClearProject = cleared
		return patch
	}

	r.logger.Printf("[PROJECT] Bound to %s", id)
	return state.Patch{ClearProject: cleared, ProjectId: &id}
}

// detectSwitch asks the model whether the message implies changing
// projects. One call, JSON answer {"switch": bool}.
func (r *ProjectResolver) detectSwitch(ctx context.Context, s state.State) (bool, error) {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("The user is already working inside a project. Decide whether their message asks to switch to a DIFFERENT project.\n")
	prompt.WriteString("</system>\n\n")
	prompt.WriteString("<user_query>\n")
	prompt.WriteString(s.UserMessage)
	prompt.WriteString("\n</user_query>\n\n")
	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON: {\"switch\": true|false}\n")
	prompt.WriteString("</output_format>")

	response, err := r.llmProvider.Generate(ctx, prompt.String(), llm.WithTemperature(0.0), llm.WithJSONMode())
	if err != nil {
		return false, err
	}

	var answer struct {
		Switch bool `json:"switch"`
	}
	jsonContent := intent.ExtractJSON(response)
	if jsonContent == "" {
		return false, fmt.Errorf("no JSON in switch answer")
	}
	if err := json.Unmarshal([]byte(jsonContent), &answer); err != nil {
		return false, err
	}
	return answer.Switch, nil
}

func (r *ProjectResolver) pick(ctx context.Context, userMessage string, projects []*entity.Project) (string, error) {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("Pick the project the user's message refers to.\n")
	prompt.WriteString("Answer with the project ID only. If more than one could match, answer AMBIGUOUS. If none match, answer NONE.\n")
	prompt.WriteString("</system>\n\n")
	prompt.WriteString("<projects>\n")
	for _, p := range projects {
		prompt.WriteString(fmt.Sprintf("- %s: %s\n", p.Id, p.Name))
	}
	prompt.WriteString("</projects>\n\n")
	prompt.WriteString("<user_query>\n")
	prompt.WriteString(userMessage)
	prompt.WriteString("\n</user_query>")

	response, err := r.llmProvider.Generate(ctx, prompt.String(), llm.WithTemperature(0.0))
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(response)
	if upper := strings.ToUpper(answer); upper == "AMBIGUOUS" || upper == "NONE" {
		return upper, nil
	}
	return answer, nil
}

func projectOptions(projects []*entity.Project) []ops.UserInputOption {
	options := make([]ops.UserInputOption, len(projects))
	for i, p := range projects {
		options[i] = ops.UserInputOption{Id: p.Id.String(), Label: p.Name}
	}
	return options
}

func containsProject(projects []*entity.Project, id uuid.UUID) bool {
	for _, p := range projects {
		if p.Id == id {
			return true
		}
	}
	return false
}
