package generate

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"ai-docpilot-be/pkg/agent/ops"
	"ai-docpilot-be/pkg/agent/state"
	"ai-docpilot-be/pkg/agent/stream"
	"ai-docpilot-be/pkg/llm"
)

type stubProvider struct {
	responses []string
	err       error
	calls     int
}

func (s *stubProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (*llm.Result, error) {
	text, err := s.next()
	if err != nil {
		return nil, err
	}
	return &llm.Result{Text: text}, nil
}

func (s *stubProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return s.next()
}

func (s *stubProvider) next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.calls >= len(s.responses) {
		return "", errors.New("stub exhausted")
	}
	text := s.responses[s.calls]
	s.calls++
	return text, nil
}

func newGenerators(provider *stubProvider) *Generators {
	return NewGenerators(provider, log.New(os.Stderr, "[TEST] ", log.LstdFlags))
}

func TestDeleteEmitsSingleDeleteOperation(t *testing.T) {
	g := newGenerators(&stubProvider{})
	s := state.State{UserMessage: "delete this", SelectedText: "obsolete paragraph", CursorPosition: 42}

	patch := g.Delete(context.Background(), s, stream.NullEmitter{})

	if len(patch.Operations) != 1 {
		t.Fatalf("expected exactly 1 operation, got %d", len(patch.Operations))
	}
	op := patch.Operations[0]
	if op.Type != ops.TypeDelete || op.Position != 42 || op.Content != nil {
		t.Errorf("unexpected delete operation: %+v", op)
	}
}

func TestSchemaTableShape(t *testing.T) {
	provider := &stubProvider{responses: []string{
		`{"tableName": "users", "fields": [
			{"name": "id", "type": "uuid", "description": "primary key"},
			{"name": "email", "type": "string", "description": ""}
		]}`,
	}}
	g := newGenerators(provider)

	patch := g.Schema(context.Background(), state.State{UserMessage: "schema for users", CursorPosition: 7}, stream.NullEmitter{})

	if len(patch.Operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(patch.Operations))
	}
	op := patch.Operations[0]
	if op.Type != ops.TypeInsertSmartblock || op.Position != 7 {
		t.Fatalf("unexpected operation: %+v", op)
	}
	table, ok := op.Content.(ops.TableContent)
	if !ok {
		t.Fatalf("expected TableContent, got %T", op.Content)
	}
	if len(table.Headers) != 3 || table.Headers[0] != "Field" || table.Headers[1] != "Type" || table.Headers[2] != "Description (optional)" {
		t.Errorf("unexpected headers: %v", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected one row per field, got %d", len(table.Rows))
	}
	if table.Rows[0][0] != "id" || table.Rows[1][0] != "email" {
		t.Errorf("field order not preserved: %v", table.Rows)
	}
}

func TestTextEmitsReplaceAtCursor(t *testing.T) {
	provider := &stubProvider{responses: []string{"A better sentence."}}
	g := newGenerators(provider)

	patch := g.Text(context.Background(), state.State{SelectedText: "bad sentence", CursorPosition: 10}, stream.NullEmitter{})

	if len(patch.Operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(patch.Operations))
	}
	op := patch.Operations[0]
	if op.Type != ops.TypeReplace || op.Position != 10 || op.Content != "A better sentence." {
		t.Errorf("unexpected replace: %+v", op)
	}
}

func TestCodeCombinesTitleAndBody(t *testing.T) {
	provider := &stubProvider{responses: []string{"Function: parseHeader", "parseHeader(input):\n  return input"}}
	g := newGenerators(provider)

	patch := g.Code(context.Background(), state.State{UserMessage: "write parseHeader", CursorPosition: 3}, stream.NullEmitter{})

	if len(patch.Operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(patch.Operations))
	}
	block, ok := patch.Operations[0].Content.(ops.SmartblockContent)
	if !ok {
		t.Fatalf("expected SmartblockContent, got %T", patch.Operations[0].Content)
	}
	if block.Title != "Function: parseHeader" {
		t.Errorf("unexpected title: %q", block.Title)
	}
	if block.Content == "" {
		t.Error("expected non-empty body")
	}
	if provider.calls != 2 {
		t.Errorf("expected exactly two model calls, got %d", provider.calls)
	}
}

func TestGeneratorFailureDegradesToApology(t *testing.T) {
	provider := &stubProvider{err: errors.New("model down")}
	g := newGenerators(provider)

	patch := g.Context(context.Background(), state.State{UserMessage: "what does the doc say?"}, stream.NullEmitter{})

	if patch.Error == nil {
		t.Error("expected error in patch")
	}
	if len(patch.Operations) != 1 || patch.Operations[0].Type != ops.TypeChatResponse {
		t.Fatalf("expected a single apologetic chat_response, got %+v", patch.Operations)
	}
}

func TestConfirmFallsBackToCannedString(t *testing.T) {
	provider := &stubProvider{err: errors.New("model down")}
	g := newGenerators(provider)

	patch := g.Confirm(context.Background(), state.State{UserMessage: "make a table"})

	if len(patch.Operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(patch.Operations))
	}
	if patch.Operations[0].Content != "Done! I've applied the changes." {
		t.Errorf("expected canned confirmation, got %v", patch.Operations[0].Content)
	}
	if patch.Error != nil {
		t.Errorf("confirmation failure must not fail the run: %v", *patch.Error)
	}
}

func TestRefusalProducesNoEditOperations(t *testing.T) {
	g := newGenerators(&stubProvider{})

	patch := g.Refusal(state.State{Source: "mcp", Intent: "text"})

	if len(patch.Operations) != 1 {
		t.Fatalf("expected exactly 1 operation, got %d", len(patch.Operations))
	}
	if patch.Operations[0].Type != ops.TypeChatResponse {
		t.Errorf("expected chat_response, got %s", patch.Operations[0].Type)
	}
	for _, op := range patch.Operations {
		if op.IsEdit() {
			t.Errorf("refusal emitted an edit operation: %+v", op)
		}
	}
}
