package orchestrator

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"ai-docpilot-be/internal/repository/unitofwork"
	"ai-docpilot-be/pkg/agent/fileplan"
	"ai-docpilot-be/pkg/agent/generate"
	"ai-docpilot-be/pkg/agent/intent"
	"ai-docpilot-be/pkg/agent/ops"
	"ai-docpilot-be/pkg/agent/resolve"
	"ai-docpilot-be/pkg/agent/state"
	"ai-docpilot-be/pkg/agent/stream"
	"ai-docpilot-be/pkg/agent/toolloop"
)

// Scaffold modes for project-scoped code requests.
const (
	ScaffoldToolLoop = "toolloop"
	ScaffoldFilePlan = "fileplan"
)

const panicResponse = "Sorry, something went wrong handling that request. Please try again."

// handler runs one intent path to completion and returns the final
// snapshot. The dispatch table maps every intent label onto one.
type handler func(ctx context.Context, s state.State, em stream.Emitter) state.State

// Orchestrator wires the fixed pipeline graph: project binding,
// history, classification, then the per-intent path. Every run ends
// with exactly one response event carrying the accumulated operations.
type Orchestrator struct {
	projects   *resolve.ProjectResolver
	files      *resolve.FileResolver
	content    *resolve.ContentFetcher
	history    *resolve.HistoryLoader
	classifier *intent.Classifier
	generators *generate.Generators
	toolLoop   *toolloop.Executor
	filePlan   *fileplan.Executor
	interrupts resolve.InterruptStore

	factory      unitofwork.RepositoryFactory
	publisher    toolloop.EmbedPublisher
	scaffoldMode string
	logger       *log.Logger

	handlers map[string]handler
}

type Deps struct {
	Projects   *resolve.ProjectResolver
	Files      *resolve.FileResolver
	Content    *resolve.ContentFetcher
	History    *resolve.HistoryLoader
	Classifier *intent.Classifier
	Generators *generate.Generators
	ToolLoop   *toolloop.Executor
	FilePlan   *fileplan.Executor
	Interrupts resolve.InterruptStore

	Factory      unitofwork.RepositoryFactory
	Publisher    toolloop.EmbedPublisher
	ScaffoldMode string
	Logger       *log.Logger
}

func New(deps Deps) *Orchestrator {
	if deps.ScaffoldMode != ScaffoldFilePlan {
		deps.ScaffoldMode = ScaffoldToolLoop
	}

	o := &Orchestrator{
		projects:     deps.Projects,
		files:        deps.Files,
		content:      deps.Content,
		history:      deps.History,
		classifier:   deps.Classifier,
		generators:   deps.Generators,
		toolLoop:     deps.ToolLoop,
		filePlan:     deps.FilePlan,
		interrupts:   deps.Interrupts,
		factory:      deps.Factory,
		publisher:    deps.Publisher,
		scaffoldMode: deps.ScaffoldMode,
		logger:       deps.Logger,
	}

	o.handlers = map[string]handler{
		intent.IntentContext: o.contextPath,
		intent.IntentSchema:  o.patchNode(o.generators.Schema),
		intent.IntentTable:   o.patchNode(o.generators.Table),
		intent.IntentList:    o.patchNode(o.generators.List),
		intent.IntentText:    o.patchNode(o.generators.Text),
		intent.IntentDelete:  o.patchNode(o.generators.Delete),
		intent.IntentCode:    o.codePath,
		intent.IntentGeneral: o.patchNode(o.generators.General),
		intent.IntentNull:    o.patchNode(o.generators.General),
	}
	return o
}

// Run executes the full graph for a fresh request. The returned
// snapshot is final; its operations have already been streamed.
func (o *Orchestrator) Run(ctx context.Context, s state.State, em stream.Emitter) (final state.State) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Printf("[PANIC] Pipeline panicked: %v", r)
			final = state.Apply(s, state.Patch{
				Error:      state.String(fmt.Sprintf("pipeline panic: %v", r)),
				Operations: []ops.Operation{ops.NewChatResponse(panicResponse)},
			})
			_ = em.Response(final.Operations)
		}
	}()

	s = state.Apply(s, o.projects.Resolve(ctx, s))
	if s.AwaitingInput || s.ProjectId == nil {
		_ = em.Response(s.Operations)
		return s
	}

	s = o.classifyAndDispatch(ctx, s, em)
	_ = em.Response(s.Operations)
	return s
}

// Resume continues a parked run. Tokens are single-use: an unknown or
// reused token is an error surfaced to the caller.
func (o *Orchestrator) Resume(ctx context.Context, token string, projectId *uuid.UUID, fileIds []uuid.UUID, em stream.Emitter) (final state.State, err error) {
	snapshot, ok := o.interrupts.Take(token)
	if !ok {
		return state.State{}, fmt.Errorf("unknown or expired resume token")
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Printf("[PANIC] Resume panicked: %v", r)
			final = state.Apply(snapshot, state.Patch{
				Error:      state.String(fmt.Sprintf("pipeline panic: %v", r)),
				Operations: []ops.Operation{ops.NewChatResponse(panicResponse)},
			})
			_ = em.Response(final.Operations)
			err = nil
		}
	}()

	stage := snapshot.ResumeStage
	s := state.Apply(snapshot, state.Patch{
		AwaitingInput: state.Bool(false),
		ResumeStage:   state.String(""),
	})

	switch stage {
	case resolve.StageProject:
		if projectId == nil {
			return state.State{}, fmt.Errorf("resume at project stage requires resolvedProjectId")
		}
		s = state.Apply(s, state.Patch{ProjectId: projectId})
		s = o.classifyAndDispatch(ctx, s, em)

	case resolve.StageFiles:
		if len(fileIds) == 0 {
			return state.State{}, fmt.Errorf("resume at file stage requires resolvedFileIds")
		}
		s = state.Apply(s, state.Patch{TargetFileIds: fileIds})
		s = state.Apply(s, o.content.Fetch(ctx, s))
		s = state.Apply(s, o.generators.Context(ctx, s, em))
		s = o.maybeConfirm(ctx, s)

	default:
		return state.State{}, fmt.Errorf("snapshot has no resume stage")
	}

	_ = em.Response(s.Operations)
	return s, nil
}

func (o *Orchestrator) classifyAndDispatch(ctx context.Context, s state.State, em stream.Emitter) state.State {
	s = state.Apply(s, o.history.Load(ctx, s))
	s = state.Apply(s, o.classifier.Classify(ctx, s))
	_ = em.Intent(s.Intent)

	return o.dispatch(ctx, s, em)
}

func (o *Orchestrator) dispatch(ctx context.Context, s state.State, em stream.Emitter) state.State {
	if s.Source == "mcp" && isEditIntent(s.Intent) {
		o.logger.Printf("[DISPATCH] Read-only source, refusing %q intent", s.Intent)
		return state.Apply(s, o.generators.Refusal(s))
	}

	run, ok := o.handlers[s.Intent]
	if !ok {
		run = o.handlers[intent.IntentNull]
	}
	s = run(ctx, s, em)
	return o.maybeConfirm(ctx, s)
}

// patchNode lifts a single-patch generator into a handler.
func (o *Orchestrator) patchNode(node func(context.Context, state.State, stream.Emitter) state.Patch) handler {
	return func(ctx context.Context, s state.State, em stream.Emitter) state.State {
		return state.Apply(s, node(ctx, s, em))
	}
}

// contextPath narrows to target files, fetches their content, then
// answers. File ambiguity parks the run mid-path.
func (o *Orchestrator) contextPath(ctx context.Context, s state.State, em stream.Emitter) state.State {
	s = state.Apply(s, o.files.Resolve(ctx, s))
	if s.AwaitingInput {
		return s
	}

	s = state.Apply(s, o.content.Fetch(ctx, s))
	return state.Apply(s, o.generators.Context(ctx, s, em))
}

// codePath picks between the inline code generator and the two
// project-scaffolding strategies.
func (o *Orchestrator) codePath(ctx context.Context, s state.State, em stream.Emitter) state.State {
	if s.Scope != intent.ScopeProject {
		return state.Apply(s, o.generators.Code(ctx, s, em))
	}

	if s.DocId == nil {
		o.logger.Printf("[DISPATCH] Project scaffold without a document")
		return state.Apply(s, state.Patch{
			Error: state.String("project scaffolding requires a document"),
			Operations: []ops.Operation{
				ops.NewChatResponse("I need an open document to scaffold files in. Open one and try again."),
			},
		})
	}

	if o.scaffoldMode == ScaffoldFilePlan {
		return state.Apply(s, o.filePlan.Run(ctx, s, em))
	}

	box := toolloop.NewToolbox(o.factory, o.publisher, *s.DocId, s.UserId, o.logger)
	return state.Apply(s, o.toolLoop.Run(ctx, s, box, em))
}

// maybeConfirm appends the short post-edit confirmation for ui
// callers. Scaffolding and conversational paths summarize themselves.
func (o *Orchestrator) maybeConfirm(ctx context.Context, s state.State) state.State {
	if s.Source != "ui" || s.Error != "" || s.AwaitingInput {
		return s
	}
	if s.Intent == intent.IntentGeneral || s.Intent == intent.IntentNull {
		return s
	}
	if s.Intent == intent.IntentCode && s.Scope == intent.ScopeProject {
		return s
	}
	if !hasEditOperation(s.Operations) {
		return s
	}
	return state.Apply(s, o.generators.Confirm(ctx, s))
}

func hasEditOperation(operations []ops.Operation) bool {
	for _, op := range operations {
		if op.IsEdit() {
			return true
		}
	}
	return false
}

func isEditIntent(label string) bool {
	switch label {
	case intent.IntentSchema, intent.IntentTable, intent.IntentList,
		intent.IntentText, intent.IntentDelete, intent.IntentCode:
		return true
	}
	return false
}
