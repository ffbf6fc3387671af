package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"ai-docpilot-be/pkg/agent/state"
	"ai-docpilot-be/pkg/llm"
)

// Intent labels understood by the generator dispatch table.
const (
	IntentContext = "context"
	IntentSchema  = "schema"
	IntentTable   = "table"
	IntentList    = "list"
	IntentText    = "text"
	IntentDelete  = "delete"
	IntentCode    = "code"
	IntentGeneral = "general"
	IntentNull    = ""
)

// Scope constants
const (
	ScopeBlock   = "block"
	ScopeProject = "project"
)

// Classification is the model's structured answer.
type Classification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Scope      string  `json:"scope"`
}

// Classifier labels the user request with exactly one model call.
type Classifier struct {
	llmProvider llm.LLMProvider
	logger      *log.Logger
}

func NewClassifier(llmProvider llm.LLMProvider, logger *log.Logger) *Classifier {
	return &Classifier{
		llmProvider: llmProvider,
		logger:      logger,
	}
}

// Classify runs the single classification call. Parse and call
// failures degrade to the null intent with confidence 0.5; the error
// is carried in the patch, never thrown.
func (c *Classifier) Classify(ctx context.Context, s state.State) state.Patch {
	prompt := c.buildPrompt(s)

	response, err := c.llmProvider.Generate(ctx, prompt, llm.WithTemperature(0.0), llm.WithJSONMode())
	if err != nil {
		c.logger.Printf("[ERROR] Intent classification failed: %v", err)
		return fallbackPatch()
	}

	classification, err := c.parseClassification(response)
	if err != nil {
		c.logger.Printf("[WARN] Intent parsing failed, using fallback: %v", err)
		return fallbackPatch()
	}

	c.logger.Printf("[INTENT] Classified: %s (Scope: %s, Confidence: %.2f)",
		classification.Intent, classification.Scope, classification.Confidence)

	return state.Patch{
		Intent:     state.String(classification.Intent),
		Confidence: state.Float(classification.Confidence),
		Scope:      state.String(classification.Scope),
	}
}

func (c *Classifier) buildPrompt(s state.State) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You are an intent analyzer for a document editor assistant. Your ONLY job is to classify what the user wants to DO.\n")
	prompt.WriteString("You do NOT answer questions. You only classify intent.\n")
	prompt.WriteString("</system>\n\n")

	if len(s.ChatHistory) > 0 {
		prompt.WriteString("<chat_history>\n")
		for _, turn := range s.ChatHistory {
			prompt.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, turn.Content))
		}
		prompt.WriteString("</chat_history>\n\n")
	}

	if s.SelectedText != "" {
		prompt.WriteString("<selected_text>\n")
		prompt.WriteString(s.SelectedText)
		prompt.WriteString("\n</selected_text>\n\n")
	}

	prompt.WriteString("<user_query>\n")
	prompt.WriteString(s.UserMessage)
	prompt.WriteString("\n</user_query>\n\n")

	prompt.WriteString("<intent_definitions>\n")
	prompt.WriteString("Choose ONE intent that best matches what the user wants:\n\n")

	prompt.WriteString("context: User asks a question that must be answered from their stored documents\n")
	prompt.WriteString("  - 'what does the auth spec say about tokens?', 'summarize the design doc'\n\n")

	prompt.WriteString("schema: User wants a data schema or entity definition inserted as a table\n")
	prompt.WriteString("  - 'create a schema for a user account', 'define the order entity'\n\n")

	prompt.WriteString("table: User wants a general table inserted\n")
	prompt.WriteString("  - 'make a comparison table of these options'\n\n")

	prompt.WriteString("list: User wants a list generated or reformatted\n")
	prompt.WriteString("  - 'turn this into bullet points', 'list the steps'\n\n")

	prompt.WriteString("text: User wants selected text rewritten, expanded, or replaced\n")
	prompt.WriteString("  - 'make this more formal', 'fix the grammar here'\n\n")

	prompt.WriteString("delete: User wants the current selection removed\n")
	prompt.WriteString("  - 'delete this', 'remove the selected part'\n\n")

	prompt.WriteString("code: User wants code or pseudo-code produced\n")
	prompt.WriteString("  - 'write a function that parses this', 'scaffold the service layer'\n\n")

	prompt.WriteString("general: Conversational request not covered above\n")
	prompt.WriteString("  - greetings, opinions, questions about the assistant itself\n")
	prompt.WriteString("</intent_definitions>\n\n")

	prompt.WriteString("<scope_assessment>\n")
	prompt.WriteString("Assess the SCOPE of the request:\n")
	prompt.WriteString("block: The request affects the current selection or insertion point only.\n")
	prompt.WriteString("project: The request spans multiple files or restructures the project\n")
	prompt.WriteString("  - 'scaffold the whole module', 'create files for each service', 'reorganize my docs'\n")
	prompt.WriteString("</scope_assessment>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"intent\": \"context|schema|table|list|text|delete|code|general\",\n")
	prompt.WriteString("  \"scope\": \"block|project\",\n")
	prompt.WriteString("  \"confidence\": 0.95,\n")
	prompt.WriteString("  \"reasoning\": \"Brief explanation\"\n")
	prompt.WriteString("}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

func (c *Classifier) parseClassification(response string) (*Classification, error) {
	jsonContent := ExtractJSON(response)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var classification Classification
	if err := json.Unmarshal([]byte(jsonContent), &classification); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}

	classification.Intent = strings.ToLower(strings.TrimSpace(classification.Intent))
	switch classification.Intent {
	case IntentContext, IntentSchema, IntentTable, IntentList, IntentText, IntentDelete, IntentCode, IntentGeneral:
	default:
		classification.Intent = IntentNull
	}

	classification.Scope = strings.ToLower(classification.Scope)
	if classification.Scope != ScopeProject {
		classification.Scope = ScopeBlock
	}

	return &classification, nil
}

func fallbackPatch() state.Patch {
	return state.Patch{
		Intent:     state.String(IntentNull),
		Confidence: state.Float(0.5),
		Scope:      state.String(ScopeBlock),
		Error:      state.String("Failed to classify intent"),
	}
}

// ExtractJSON pulls the first top-level JSON object or array out of a
// model response that may carry prose or code fences around it.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```") {
		if idx := strings.Index(response, "\n"); idx != -1 {
			response = response[idx+1:]
		}
		response = strings.TrimSuffix(strings.TrimSpace(response), "```")
		response = strings.TrimSpace(response)
	}

	objStart := strings.IndexByte(response, '{')
	arrStart := strings.IndexByte(response, '[')
	start := objStart
	open, closeCh := byte('{'), byte('}')
	if objStart == -1 || (arrStart != -1 && arrStart < objStart) {
		start = arrStart
		open, closeCh = '[', ']'
	}
	if start != -1 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(response); i++ {
			ch := response[i]
			if inString {
				if escaped {
					escaped = false
				} else if ch == '\\' {
					escaped = true
				} else if ch == '"' {
					inString = false
				}
				continue
			}
			switch ch {
			case '"':
				inString = true
			case open:
				depth++
			case closeCh:
				depth--
				if depth == 0 {
					return response[start : i+1]
				}
			}
		}
	}
	return ""
}
