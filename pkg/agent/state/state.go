package state

import (
	"github.com/google/uuid"

	"ai-docpilot-be/pkg/agent/ops"
)

// Turn is one prior conversation exchange.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// State is the per-request pipeline snapshot. Nodes never mutate it;
// they return a Patch and the orchestrator owns the accumulator.
type State struct {
	// Inputs, captured once at request start.
	UserMessage    string     `json:"userMessage"`
	SelectedText   string     `json:"selectedText"`
	DocContext     string     `json:"docContext"`
	CursorPosition int        `json:"cursorPosition"`
	Source         string     `json:"source"`
	SessionToken   string     `json:"-"`
	UserId         uuid.UUID  `json:"userId"`
	CurrentFileId  *uuid.UUID `json:"currentFileId,omitempty"`

	// Resolved identifiers.
	ProjectId     *uuid.UUID  `json:"projectId,omitempty"`
	DocId         *uuid.UUID  `json:"docId,omitempty"`
	TargetFileIds []uuid.UUID `json:"targetFileIds,omitempty"`

	// Classification.
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Scope      string  `json:"scope"`

	// Accumulated context and output.
	ChatHistory    []Turn                 `json:"chatHistory,omitempty"`
	HistorySet     bool                   `json:"historySet"`
	FetchedContext string                 `json:"fetchedContext"`
	ExtractedData  map[string]interface{} `json:"extractedData,omitempty"`
	Operations     []ops.Operation        `json:"operations"`
	Error          string                 `json:"error,omitempty"`

	// Interrupt bookkeeping.
	AwaitingInput bool   `json:"awaitingInput"`
	ResumeStage   string `json:"resumeStage,omitempty"`
}

// Patch is a node's partial result. Nil pointer fields are untouched;
// Operations are appended, ChatHistory is set at most once.
type Patch struct {
	ProjectId      *uuid.UUID
	ClearProject   bool
	DocId          *uuid.UUID
	TargetFileIds  []uuid.UUID
	Intent         *string
	Confidence     *float64
	Scope          *string
	ChatHistory    []Turn
	FetchedContext *string
	ExtractedData  map[string]interface{}
	Operations     []ops.Operation
	Error          *string
	AwaitingInput  *bool
	ResumeStage    *string
}

// Apply merges a patch into a copy of the snapshot and returns the
// copy. Last write wins per field, except Operations (append-only)
// and ChatHistory (set once, later writes ignored).
func Apply(s State, p Patch) State {
	next := s

	if p.ClearProject {
		next.ProjectId = nil
		next.TargetFileIds = nil
	}
	if p.ProjectId != nil {
		next.ProjectId = p.ProjectId
	}
	if p.DocId != nil {
		next.DocId = p.DocId
	}
	if p.TargetFileIds != nil {
		next.TargetFileIds = p.TargetFileIds
	}
	if p.Intent != nil {
		next.Intent = *p.Intent
	}
	if p.Confidence != nil {
		next.Confidence = *p.Confidence
	}
	if p.Scope != nil {
		next.Scope = *p.Scope
	}
	if p.ChatHistory != nil && !next.HistorySet {
		next.ChatHistory = p.ChatHistory
		next.HistorySet = true
	}
	if p.FetchedContext != nil {
		next.FetchedContext = *p.FetchedContext
	}
	if p.ExtractedData != nil {
		next.ExtractedData = p.ExtractedData
	}
	if len(p.Operations) > 0 {
		merged := make([]ops.Operation, 0, len(next.Operations)+len(p.Operations))
		merged = append(merged, next.Operations...)
		merged = append(merged, p.Operations...)
		next.Operations = merged
	}
	if p.Error != nil {
		next.Error = *p.Error
	}
	if p.AwaitingInput != nil {
		next.AwaitingInput = *p.AwaitingInput
	}
	if p.ResumeStage != nil {
		next.ResumeStage = *p.ResumeStage
	}

	return next
}

// Helpers for pointer fields in patches.

func String(s string) *string { return &s }

func Float(f float64) *float64 { return &f }

func Bool(b bool) *bool { return &b }
