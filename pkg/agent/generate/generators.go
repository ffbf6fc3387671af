package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"ai-docpilot-be/pkg/agent/intent"
	"ai-docpilot-be/pkg/agent/ops"
	"ai-docpilot-be/pkg/agent/state"
	"ai-docpilot-be/pkg/agent/stream"
	"ai-docpilot-be/pkg/llm"
)

// SchemaHeaders are the fixed column headers of a schema table.
var SchemaHeaders = []string{"Field", "Type", "Description (optional)"}

const apologeticResponse = "Sorry, I ran into a problem handling that request. Please try again."

// Generators hold the per-intent operation builders. Each method is a
// node: it reads the snapshot and returns a patch, catching its own
// failures per the errors-as-data contract.
type Generators struct {
	llmProvider llm.LLMProvider
	logger      *log.Logger
}

func NewGenerators(llmProvider llm.LLMProvider, logger *log.Logger) *Generators {
	return &Generators{
		llmProvider: llmProvider,
		logger:      logger,
	}
}

// Context answers strictly from fetchedContext.
func (g *Generators) Context(ctx context.Context, s state.State, em stream.Emitter) state.Patch {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("Answer the user's question using ONLY the provided context. If the context does not contain the answer, say so.\n")
	prompt.WriteString("</system>\n\n")
	prompt.WriteString("<context>\n")
	prompt.WriteString(s.FetchedContext)
	prompt.WriteString("\n</context>\n\n")
	prompt.WriteString("<user_query>\n")
	prompt.WriteString(s.UserMessage)
	prompt.WriteString("\n</user_query>")

	answer, err := g.llmProvider.Generate(ctx, prompt.String(), llm.WithStream(func(token string) {
		_ = em.Token(token)
	}))
	if err != nil {
		return g.degrade("context generation failed", err)
	}

	return state.Patch{Operations: []ops.Operation{ops.NewChatResponse(answer)}}
}

// Schema extracts {tableName, fields[]} then emits one table block.
func (g *Generators) Schema(ctx context.Context, s state.State, em stream.Emitter) state.Patch {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("Extract a data schema from the user's request.\n")
	prompt.WriteString("</system>\n\n")
	prompt.WriteString("<user_query>\n")
	prompt.WriteString(s.UserMessage)
	prompt.WriteString("\n</user_query>\n\n")
	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\"tableName\": \"...\", \"fields\": [{\"name\": \"...\", \"type\": \"...\", \"description\": \"...\"}]}\n")
	prompt.WriteString("</output_format>")

	response, err := g.llmProvider.Generate(ctx, prompt.String(), llm.WithTemperature(0.0), llm.WithJSONMode())
	if err != nil {
		return g.degrade("schema extraction failed", err)
	}

	var extracted struct {
		TableName string `json:"tableName"`
		Fields    []struct {
			Name        string `json:"name"`
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"fields"`
	}
	jsonContent := intent.ExtractJSON(response)
	if jsonContent == "" {
		return g.degrade("schema extraction returned no JSON", fmt.Errorf("empty extraction"))
	}
	if err := json.Unmarshal([]byte(jsonContent), &extracted); err != nil {
		return g.degrade("schema extraction was malformed", err)
	}

	rows := make([][]string, len(extracted.Fields))
	for i, f := range extracted.Fields {
		rows[i] = []string{f.Name, f.Type, f.Description}
	}

	return state.Patch{
		ExtractedData: map[string]interface{}{"tableName": extracted.TableName, "fieldCount": len(rows)},
		Operations: []ops.Operation{
			ops.NewInsertSmartblock(s.CursorPosition, ops.TableContent{
				Title:   extracted.TableName,
				Headers: SchemaHeaders,
				Rows:    rows,
			}),
		},
	}
}

// Table extracts {title, headers, rows} then emits one table block.
func (g *Generators) Table(ctx context.Context, s state.State, em stream.Emitter) state.Patch {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("Build the table the user asked for.\n")
	prompt.WriteString("</system>\n\n")
	if s.SelectedText != "" {
		prompt.WriteString("<selected_text>\n")
		prompt.WriteString(s.SelectedText)
		prompt.WriteString("\n</selected_text>\n\n")
	}
	prompt.WriteString("<user_query>\n")
	prompt.WriteString(s.UserMessage)
	prompt.WriteString("\n</user_query>\n\n")
	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\"title\": \"...\", \"headers\": [\"...\"], \"rows\": [[\"...\"]]}\n")
	prompt.WriteString("</output_format>")

	response, err := g.llmProvider.Generate(ctx, prompt.String(), llm.WithTemperature(0.0), llm.WithJSONMode())
	if err != nil {
		return g.degrade("table extraction failed", err)
	}

	var extracted struct {
		Title   string     `json:"title"`
		Headers []string   `json:"headers"`
		Rows    [][]string `json:"rows"`
	}
	jsonContent := intent.ExtractJSON(response)
	if jsonContent == "" {
		return g.degrade("table extraction returned no JSON", fmt.Errorf("empty extraction"))
	}
	if err := json.Unmarshal([]byte(jsonContent), &extracted); err != nil {
		return g.degrade("table extraction was malformed", err)
	}

	return state.Patch{
		ExtractedData: map[string]interface{}{"title": extracted.Title, "rowCount": len(extracted.Rows)},
		Operations: []ops.Operation{
			ops.NewInsertSmartblock(s.CursorPosition, ops.TableContent{
				Title:   extracted.Title,
				Headers: extracted.Headers,
				Rows:    extracted.Rows,
			}),
		},
	}
}

// List streams a markdown list and emits it as one replace.
func (g *Generators) List(ctx context.Context, s state.State, em stream.Emitter) state.Patch {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("Produce a markdown list answering the user's request. Output the list only, no preamble.\n")
	prompt.WriteString("</system>\n\n")
	if s.SelectedText != "" {
		prompt.WriteString("<selected_text>\n")
		prompt.WriteString(s.SelectedText)
		prompt.WriteString("\n</selected_text>\n\n")
	}
	prompt.WriteString("<user_query>\n")
	prompt.WriteString(s.UserMessage)
	prompt.WriteString("\n</user_query>")

	list, err := g.llmProvider.Generate(ctx, prompt.String(), llm.WithStream(func(token string) {
		_ = em.Token(token)
	}))
	if err != nil {
		return g.degrade("list generation failed", err)
	}

	return state.Patch{Operations: []ops.Operation{ops.NewReplace(s.CursorPosition, list)}}
}

// Code makes two calls: a short title, then a body constrained to the
// requested unit only.
func (g *Generators) Code(ctx context.Context, s state.State, em stream.Emitter) state.Patch {
	var titlePrompt strings.Builder
	titlePrompt.WriteString("<system>\n")
	titlePrompt.WriteString("Produce a short title for the requested code in the form \"Type: Name\" (e.g. \"Function: parseHeader\"). Output the title only.\n")
	titlePrompt.WriteString("</system>\n\n")
	titlePrompt.WriteString("<user_query>\n")
	titlePrompt.WriteString(s.UserMessage)
	titlePrompt.WriteString("\n</user_query>")

	title, err := g.llmProvider.Generate(ctx, titlePrompt.String(), llm.WithStream(func(token string) {
		_ = em.Title(token)
	}))
	if err != nil {
		return g.degrade("code title generation failed", err)
	}

	var bodyPrompt strings.Builder
	bodyPrompt.WriteString("<system>\n")
	bodyPrompt.WriteString("Write pseudo-code for EXACTLY the unit the user asked for. Do NOT add helper functions, imports, or surrounding scaffolding. Output the code only.\n")
	bodyPrompt.WriteString("</system>\n\n")
	if s.SelectedText != "" {
		bodyPrompt.WriteString("<selected_text>\n")
		bodyPrompt.WriteString(s.SelectedText)
		bodyPrompt.WriteString("\n</selected_text>\n\n")
	}
	bodyPrompt.WriteString("<user_query>\n")
	bodyPrompt.WriteString(s.UserMessage)
	bodyPrompt.WriteString("\n</user_query>")

	body, err := g.llmProvider.Generate(ctx, bodyPrompt.String(), llm.WithStream(func(token string) {
		_ = em.Token(token)
	}))
	if err != nil {
		return g.degrade("code generation failed", err)
	}

	return state.Patch{
		Operations: []ops.Operation{
			ops.NewInsertSmartblock(s.CursorPosition, ops.SmartblockContent{
				Title:   strings.TrimSpace(title),
				Content: body,
			}),
		},
	}
}

// Text rewrites the selection; the answer replaces it verbatim.
func (g *Generators) Text(ctx context.Context, s state.State, em stream.Emitter) state.Patch {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("Rewrite or generate text per the user's instruction. Your output REPLACES the selected text verbatim, so output the replacement only.\n")
	prompt.WriteString("</system>\n\n")
	prompt.WriteString("<selected_text>\n")
	prompt.WriteString(s.SelectedText)
	prompt.WriteString("\n</selected_text>\n\n")
	prompt.WriteString("<user_query>\n")
	prompt.WriteString(s.UserMessage)
	prompt.WriteString("\n</user_query>")

	replacement, err := g.llmProvider.Generate(ctx, prompt.String(), llm.WithStream(func(token string) {
		_ = em.Token(token)
	}))
	if err != nil {
		return g.degrade("text generation failed", err)
	}

	return state.Patch{Operations: []ops.Operation{ops.NewReplace(s.CursorPosition, replacement)}}
}

// Delete needs no model call.
func (g *Generators) Delete(ctx context.Context, s state.State, em stream.Emitter) state.Patch {
	return state.Patch{Operations: []ops.Operation{ops.NewDelete(s.CursorPosition)}}
}

// General is the conversational fallback, grounded loosely on the
// document context when present.
func (g *Generators) General(ctx context.Context, s state.State, em stream.Emitter) state.Patch {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("You are a helpful assistant inside a document editor. Answer conversationally.\n")
	prompt.WriteString("</system>\n\n")
	if s.DocContext != "" {
		prompt.WriteString("<doc_context>\n")
		prompt.WriteString(s.DocContext)
		prompt.WriteString("\n</doc_context>\n\n")
	}
	if s.SelectedText != "" {
		prompt.WriteString("<selected_text>\n")
		prompt.WriteString(s.SelectedText)
		prompt.WriteString("\n</selected_text>\n\n")
	}
	for _, turn := range s.ChatHistory {
		prompt.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, turn.Content))
	}
	prompt.WriteString("<user_query>\n")
	prompt.WriteString(s.UserMessage)
	prompt.WriteString("\n</user_query>")

	answer, err := g.llmProvider.Generate(ctx, prompt.String(), llm.WithStream(func(token string) {
		_ = em.Token(token)
	}))
	if err != nil {
		return g.degrade("general generation failed", err)
	}

	return state.Patch{Operations: []ops.Operation{ops.NewChatResponse(answer)}}
}

// Refusal is the read-only override for mcp-sourced edit intents.
func (g *Generators) Refusal(s state.State) state.Patch {
	return state.Patch{
		Operations: []ops.Operation{
			ops.NewChatResponse("This channel is read-only, so I can't edit the document. Ask me a question about it instead."),
		},
	}
}

// Confirm appends a short confirmation after a successful edit.
// Best-effort: a failed model call falls back to a canned string.
func (g *Generators) Confirm(ctx context.Context, s state.State) state.Patch {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("In one short sentence, confirm to the user what change was just applied to their document.\n")
	prompt.WriteString("</system>\n\n")
	prompt.WriteString("<user_query>\n")
	prompt.WriteString(s.UserMessage)
	prompt.WriteString("\n</user_query>")

	confirmation, err := g.llmProvider.Generate(ctx, prompt.String(), llm.WithMaxTokens(60))
	if err != nil || strings.TrimSpace(confirmation) == "" {
		confirmation = "Done! I've applied the changes."
	}
	return state.Patch{Operations: []ops.Operation{ops.NewChatResponse(strings.TrimSpace(confirmation))}}
}

func (g *Generators) degrade(message string, err error) state.Patch {
	g.logger.Printf("[ERROR] %s: %v", message, err)
	return state.Patch{
		Error:      state.String(fmt.Sprintf("%s: %v", message, err)),
		Operations: []ops.Operation{ops.NewChatResponse(apologeticResponse)},
	}
}
