package toolloop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"ai-docpilot-be/pkg/agent/ops"
	"ai-docpilot-be/pkg/agent/state"
	"ai-docpilot-be/pkg/agent/stream"
	"ai-docpilot-be/pkg/llm"
)

type scriptedProvider struct {
	results []*llm.Result
	calls   int
	// seenMessages records the conversation passed to each call.
	seenMessages [][]llm.Message
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (*llm.Result, error) {
	copied := make([]llm.Message, len(messages))
	copy(copied, messages)
	p.seenMessages = append(p.seenMessages, copied)

	var result *llm.Result
	if p.calls < len(p.results) {
		result = p.results[p.calls]
	} else {
		result = p.results[len(p.results)-1]
	}
	p.calls++
	return result, nil
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

type fakeRunner struct {
	outputs  map[string]string
	errs     map[string]error
	executed []string
	mentions []Mention
}

func (r *fakeRunner) Definitions() []llm.Tool { return nil }

func (r *fakeRunner) Execute(ctx context.Context, call llm.ToolCall) (string, error) {
	r.executed = append(r.executed, call.Name)
	if err, ok := r.errs[call.Name]; ok {
		return "", err
	}
	return r.outputs[call.Name], nil
}

func (r *fakeRunner) Mentions() []Mention { return r.mentions }

func newExecutor(provider llm.LLMProvider, maxLoops int) *Executor {
	return NewExecutor(provider, maxLoops, log.New(os.Stderr, "[TEST] ", log.LstdFlags))
}

func toolCall(name string) llm.ToolCall {
	return llm.ToolCall{ID: "call_" + name, Name: name, Arguments: map[string]interface{}{}}
}

func TestLoopTerminatesAtMaxLoops(t *testing.T) {
	// A model that always wants more tool calls.
	provider := &scriptedProvider{results: []*llm.Result{
		{ToolCalls: []llm.ToolCall{toolCall("create_file")}},
	}}
	runner := &fakeRunner{outputs: map[string]string{"create_file": "ok"}}
	e := newExecutor(provider, 10)

	patch := e.Run(context.Background(), state.State{UserMessage: "scaffold"}, runner, stream.NullEmitter{})

	if provider.calls != 10 {
		t.Errorf("expected exactly 10 iterations, got %d", provider.calls)
	}
	if len(patch.Operations) == 0 || patch.Operations[0].Type != ops.TypeChatResponse {
		t.Fatalf("expected terminal chat_response, got %+v", patch.Operations)
	}
}

func TestLoopStopsWhenNoToolCalls(t *testing.T) {
	provider := &scriptedProvider{results: []*llm.Result{
		{ToolCalls: []llm.ToolCall{toolCall("create_file"), toolCall("populate_file")}},
		{Text: "all done"},
	}}
	runner := &fakeRunner{outputs: map[string]string{"create_file": "id abc", "populate_file": "ok"}}
	e := newExecutor(provider, 10)

	patch := e.Run(context.Background(), state.State{UserMessage: "scaffold"}, runner, stream.NullEmitter{})

	if provider.calls != 2 {
		t.Errorf("expected 2 iterations, got %d", provider.calls)
	}
	if len(runner.executed) != 2 || runner.executed[0] != "create_file" || runner.executed[1] != "populate_file" {
		t.Errorf("tools not executed sequentially in order: %v", runner.executed)
	}
	if got := fmt.Sprint(patch.Operations[0].Content); !strings.Contains(got, "2 actions") {
		t.Errorf("summary should count 2 actions: %q", got)
	}
}

func TestToolErrorFedBackToModel(t *testing.T) {
	provider := &scriptedProvider{results: []*llm.Result{
		{ToolCalls: []llm.ToolCall{toolCall("delete_file")}},
		{Text: "recovered"},
	}}
	runner := &fakeRunner{errs: map[string]error{"delete_file": errors.New("file not found")}}
	e := newExecutor(provider, 10)

	patch := e.Run(context.Background(), state.State{UserMessage: "delete it"}, runner, stream.NullEmitter{})

	if patch.Error != nil {
		t.Errorf("tool failure must not fail the run: %v", *patch.Error)
	}

	// The second call must see the error as a tool-result message.
	second := provider.seenMessages[1]
	last := second[len(second)-1]
	if last.Role != "tool" || !strings.HasPrefix(last.Content, "Error: ") {
		t.Errorf("expected Error:-prefixed tool result, got %+v", last)
	}
	if last.ToolCallID != "call_delete_file" {
		t.Errorf("tool result not linked to its call: %+v", last)
	}
}

func TestMentionsBecomeOperations(t *testing.T) {
	fileId := uuid.New()
	provider := &scriptedProvider{results: []*llm.Result{{Text: "done"}}}
	runner := &fakeRunner{mentions: []Mention{{FileId: fileId, FileName: "notes.md"}}}
	e := newExecutor(provider, 10)

	patch := e.Run(context.Background(), state.State{UserMessage: "reference notes"}, runner, stream.NullEmitter{})

	if len(patch.Operations) != 2 {
		t.Fatalf("expected summary + mention, got %d operations", len(patch.Operations))
	}
	mention := patch.Operations[1]
	if mention.Type != ops.TypeInsertSmartblockMention {
		t.Errorf("expected mention operation, got %s", mention.Type)
	}
	content, ok := mention.Content.(ops.MentionContent)
	if !ok || content.FileId != fileId.String() || content.FileName != "notes.md" {
		t.Errorf("unexpected mention content: %+v", mention.Content)
	}
}

func TestCancelledContextStopsLoop(t *testing.T) {
	provider := &scriptedProvider{results: []*llm.Result{
		{ToolCalls: []llm.ToolCall{toolCall("create_file")}},
	}}
	runner := &fakeRunner{outputs: map[string]string{"create_file": "ok"}}
	e := newExecutor(provider, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	patch := e.Run(ctx, state.State{UserMessage: "scaffold"}, runner, stream.NullEmitter{})

	if provider.calls != 0 {
		t.Errorf("expected no model calls after cancellation, got %d", provider.calls)
	}
	if patch.Error == nil {
		t.Error("expected cancellation error in patch")
	}
}
