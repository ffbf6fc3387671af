package toolloop

import (
	"context"
	"fmt"
	"log"
	"strings"

	"ai-docpilot-be/pkg/agent/ops"
	"ai-docpilot-be/pkg/agent/state"
	"ai-docpilot-be/pkg/agent/stream"
	"ai-docpilot-be/pkg/llm"
)

const defaultMaxLoops = 10

// Executor drives the bounded tool-calling loop. Tool calls inside an
// iteration run sequentially because later calls may use IDs returned
// by earlier ones; the model is instructed to batch by dependency
// depth.
type Executor struct {
	llmProvider llm.LLMProvider
	maxLoops    int
	logger      *log.Logger
}

func NewExecutor(llmProvider llm.LLMProvider, maxLoops int, logger *log.Logger) *Executor {
	if maxLoops <= 0 {
		maxLoops = defaultMaxLoops
	}
	return &Executor{
		llmProvider: llmProvider,
		maxLoops:    maxLoops,
		logger:      logger,
	}
}

// ToolRunner is the executor-facing surface of a tool registry.
type ToolRunner interface {
	Definitions() []llm.Tool
	Execute(ctx context.Context, call llm.ToolCall) (string, error)
	Mentions() []Mention
}

func (e *Executor) Run(ctx context.Context, s state.State, box ToolRunner, em stream.Emitter) state.Patch {
	messages := e.seedMessages(s)
	actionCount := 0

	for loopCount := 0; loopCount < e.maxLoops; loopCount++ {
		if err := ctx.Err(); err != nil {
			return e.degrade(actionCount, box, fmt.Errorf("run cancelled: %w", err))
		}

		result, err := e.llmProvider.Chat(ctx, messages, llm.WithTools(box.Definitions()))
		if err != nil {
			return e.degrade(actionCount, box, err)
		}

		if len(result.ToolCalls) == 0 {
			break
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   result.Text,
			ToolCalls: result.ToolCalls,
		})

		for _, call := range result.ToolCalls {
			output, execErr := box.Execute(ctx, call)
			if execErr != nil {
				output = "Error: " + execErr.Error()
				e.logger.Printf("[TOOL] %s failed: %v", call.Name, execErr)
			} else {
				actionCount++
				e.logger.Printf("[TOOL] %s ok", call.Name)
			}

			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    output,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}

	return state.Patch{Operations: e.terminalOperations(actionCount, box)}
}

func (e *Executor) seedMessages(s state.State) []llm.Message {
	var system strings.Builder
	system.WriteString("You are a project scaffolding assistant working inside a document editor.\n")
	system.WriteString("Use the available tools to carry out the user's request against their files.\n")
	system.WriteString("Later tool calls may depend on IDs returned by earlier ones. Batch your calls by dependency depth: ")
	system.WriteString("create containers first, wait for their IDs, then create children, then populate content.\n")
	system.WriteString("When nothing is left to do, answer without tool calls.")

	messages := []llm.Message{{Role: "system", Content: system.String()}}
	for _, turn := range s.ChatHistory {
		role := turn.Role
		if role != "user" {
			role = "assistant"
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: s.UserMessage})
	return messages
}

func (e *Executor) terminalOperations(actionCount int, box ToolRunner) []ops.Operation {
	operations := []ops.Operation{
		ops.NewChatResponse(summaryText(actionCount)),
	}
	for _, mention := range box.Mentions() {
		operations = append(operations, ops.NewMention(mention.FileId.String(), mention.FileName))
	}
	return operations
}

func (e *Executor) degrade(actionCount int, box ToolRunner, err error) state.Patch {
	e.logger.Printf("[ERROR] Tool loop failed after %d action(s): %v", actionCount, err)
	message := "Sorry, I couldn't finish that request."
	if actionCount > 0 {
		message = fmt.Sprintf("Sorry, I couldn't finish that request. %d action(s) were applied before the failure.", actionCount)
	}
	return state.Patch{
		Error:      state.String(err.Error()),
		Operations: []ops.Operation{ops.NewChatResponse(message)},
	}
}

func summaryText(actionCount int) string {
	switch actionCount {
	case 0:
		return "I didn't need to change anything for that request."
	case 1:
		return "Done! I performed 1 action on your project."
	}
	return fmt.Sprintf("Done! I performed %d actions on your project.", actionCount)
}
