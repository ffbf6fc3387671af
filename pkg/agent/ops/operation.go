package ops

// Operation types applied by the client editor.
const (
	TypeInsertSmartblock        = "insert_smartblock"
	TypeInsertSmartblockMention = "insert_smartblock_mention"
	TypeReplace                 = "replace"
	TypeDelete                  = "delete"
	TypeChatResponse            = "chat_response"
	TypeRequestUserInput        = "request_user_input"
)

// Operation is one typed edit instruction. Content varies by type:
// a string for chat_response/replace, nil for delete, a structured
// payload for the rest.
type Operation struct {
	Type     string      `json:"type"`
	Position int         `json:"position"`
	Content  interface{} `json:"content"`
}

// SmartblockContent is the payload of an insert_smartblock operation
// carrying a titled body (code intent).
type SmartblockContent struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// TableContent is the payload of an insert_smartblock operation
// carrying a table block (schema and table intents).
type TableContent struct {
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// MentionContent is the payload of an insert_smartblock_mention
// operation referencing a file created by the tool loop.
type MentionContent struct {
	FileId   string `json:"fileId"`
	FileName string `json:"fileName"`
}

// UserInputOption is one choice offered to the user.
type UserInputOption struct {
	Id    string `json:"id"`
	Label string `json:"label"`
}

// UserInputContent is the payload of a request_user_input operation.
// Field names the request field the caller must fill on resubmission
// ("projectId" or "targetFileIds"); ResumeToken identifies the parked
// run.
type UserInputContent struct {
	Question    string            `json:"question"`
	Field       string            `json:"field"`
	Options     []UserInputOption `json:"options"`
	ResumeToken string            `json:"resumeToken"`
}

func NewChatResponse(content string) Operation {
	return Operation{Type: TypeChatResponse, Content: content}
}

func NewReplace(position int, content string) Operation {
	return Operation{Type: TypeReplace, Position: position, Content: content}
}

func NewDelete(position int) Operation {
	return Operation{Type: TypeDelete, Position: position, Content: nil}
}

func NewInsertSmartblock(position int, content interface{}) Operation {
	return Operation{Type: TypeInsertSmartblock, Position: position, Content: content}
}

func NewMention(fileId, fileName string) Operation {
	return Operation{Type: TypeInsertSmartblockMention, Content: MentionContent{FileId: fileId, FileName: fileName}}
}

func NewRequestUserInput(content UserInputContent) Operation {
	return Operation{Type: TypeRequestUserInput, Content: content}
}

// IsEdit reports whether the operation mutates the document.
func (o Operation) IsEdit() bool {
	switch o.Type {
	case TypeInsertSmartblock, TypeInsertSmartblockMention, TypeReplace, TypeDelete:
		return true
	}
	return false
}
