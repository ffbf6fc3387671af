package resolve

import (
	"github.com/google/uuid"

	"ai-docpilot-be/pkg/agent/ops"
	"ai-docpilot-be/pkg/agent/state"
)

// Resume stages recorded in a parked snapshot.
const (
	StageProject = "project"
	StageFiles   = "files"
)

// InterruptStore parks pipeline snapshots that are waiting for user
// input. Take removes the snapshot so a token is single-use.
type InterruptStore interface {
	Park(token string, snapshot state.State)
	Take(token string) (state.State, bool)
}

// interruptPatch builds the unified awaiting-input terminal: one
// request_user_input operation carrying the options and a resumption
// token, plus the parked snapshot keyed by that token.
func interruptPatch(store InterruptStore, s state.State, stage, question, field string, options []ops.UserInputOption) state.Patch {
	token := uuid.NewString()

	patch := state.Patch{
		AwaitingInput: state.Bool(true),
		ResumeStage:   state.String(stage),
		Operations: []ops.Operation{
			ops.NewRequestUserInput(ops.UserInputContent{
				Question:    question,
				Field:       field,
				Options:     options,
				ResumeToken: token,
			}),
		},
	}

	if store != nil {
		snapshot := state.Apply(s, state.Patch{
			AwaitingInput: patch.AwaitingInput,
			ResumeStage:   patch.ResumeStage,
		})
		store.Park(token, snapshot)
	}

	return patch
}
