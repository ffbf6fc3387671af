package state

import (
	"testing"

	"github.com/google/uuid"

	"ai-docpilot-be/pkg/agent/ops"
)

func TestApplyLastWriteWins(t *testing.T) {
	s := State{Intent: "general", Confidence: 0.4}

	s = Apply(s, Patch{Intent: String("table"), Confidence: Float(0.9)})

	if s.Intent != "table" {
		t.Errorf("expected intent table, got %q", s.Intent)
	}
	if s.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %f", s.Confidence)
	}
}

func TestApplyOperationsAppendOnly(t *testing.T) {
	s := State{}

	s = Apply(s, Patch{Operations: []ops.Operation{ops.NewChatResponse("first")}})
	s = Apply(s, Patch{Operations: []ops.Operation{ops.NewDelete(10), ops.NewChatResponse("second")}})

	if len(s.Operations) != 3 {
		t.Fatalf("expected 3 operations, got %d", len(s.Operations))
	}
	if s.Operations[0].Content != "first" {
		t.Errorf("earlier operation was disturbed: %+v", s.Operations[0])
	}
	if s.Operations[1].Type != ops.TypeDelete {
		t.Errorf("expected delete at index 1, got %s", s.Operations[1].Type)
	}
}

func TestApplyChatHistorySetOnce(t *testing.T) {
	s := State{}

	s = Apply(s, Patch{ChatHistory: []Turn{{Role: "user", Content: "hello"}}})
	s = Apply(s, Patch{ChatHistory: []Turn{{Role: "user", Content: "replaced"}}})

	if len(s.ChatHistory) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(s.ChatHistory))
	}
	if s.ChatHistory[0].Content != "hello" {
		t.Errorf("chat history was overwritten: %q", s.ChatHistory[0].Content)
	}
}

func TestApplyClearProject(t *testing.T) {
	projectId := uuid.New()
	fileId := uuid.New()
	s := State{ProjectId: &projectId, TargetFileIds: []uuid.UUID{fileId}}

	s = Apply(s, Patch{ClearProject: true})

	if s.ProjectId != nil {
		t.Errorf("expected project binding cleared, got %v", s.ProjectId)
	}
	if s.TargetFileIds != nil {
		t.Errorf("expected target files cleared, got %v", s.TargetFileIds)
	}
}

func TestApplyDoesNotMutateSnapshot(t *testing.T) {
	original := State{Operations: []ops.Operation{ops.NewChatResponse("keep")}}

	_ = Apply(original, Patch{
		Intent:     String("code"),
		Operations: []ops.Operation{ops.NewChatResponse("new")},
		Error:      String("boom"),
	})

	if original.Intent != "" || original.Error != "" {
		t.Errorf("snapshot mutated: %+v", original)
	}
	if len(original.Operations) != 1 {
		t.Errorf("snapshot operations mutated: %d", len(original.Operations))
	}
}
