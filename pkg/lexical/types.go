package lexical

// BlockRoot represents the top-level structure of a stored block payload
type BlockRoot struct {
	Root Node `json:"root"`
}

// Node represents any node in the block content tree
type Node struct {
	Type     string `json:"type"`
	Version  int    `json:"version"`
	Children []Node `json:"children,omitempty"`

	// Text specific
	Text   string      `json:"text,omitempty"`
	Format interface{} `json:"format,omitempty"` // int bitmask on text nodes, alignment string on paragraphs

	// Heading specific
	Tag string `json:"tag,omitempty"` // h1..h6

	// List specific
	ListType string `json:"listType,omitempty"` // bullet, number, check
	Start    int    `json:"start,omitempty"`
	Checked  bool   `json:"checked,omitempty"`

	// Code specific
	Language string `json:"language,omitempty"`

	// Link specific
	URL string `json:"url,omitempty"`
}

// Text format bitmask, mirrors the editor's serialization
const (
	FormatBold          = 1
	FormatItalic        = 2
	FormatStrikethrough = 4
	FormatUnderline     = 8
	FormatCode          = 16
)
