package dto

import (
	"time"

	"github.com/google/uuid"
)

// AssistRequest is the streaming assist payload. Resume fields are
// only set when answering a request_user_input interrupt.
type AssistRequest struct {
	UserMessage    string     `json:"userMessage" validate:"required"`
	SelectedText   string     `json:"selectedText"`
	DocContext     string     `json:"docContext"`
	CursorPosition int        `json:"cursorPosition" validate:"gte=0"`
	ProjectId      *uuid.UUID `json:"projectId"`
	DocId          *uuid.UUID `json:"docId"`
	CurrentFileId  *uuid.UUID `json:"currentFileId"`
	Source         string     `json:"source" validate:"required,oneof=ui mcp"`
	SessionToken   string     `json:"sessionToken"`

	ResumeToken       string      `json:"resumeToken"`
	ResolvedProjectId *uuid.UUID  `json:"resolvedProjectId"`
	ResolvedFileIds   []uuid.UUID `json:"resolvedFileIds"`
}

type AssistHistoryResponse struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Chat      string    `json:"chat"`
	CreatedAt time.Time `json:"createdAt"`
}

// PublishEmbedBlockMessage is the embed-queue payload.
type PublishEmbedBlockMessage struct {
	BlockId uuid.UUID `json:"blockId"`
}
