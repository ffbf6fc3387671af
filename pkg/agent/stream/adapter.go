package stream

import (
	"encoding/json"
	"io"
	"sync"

	"ai-docpilot-be/pkg/agent/ops"
)

// Emitter receives pipeline events as they happen. Implementations
// must tolerate being called from the goroutine running the graph.
type Emitter interface {
	Intent(intent string) error
	Title(token string) error
	Token(token string) error
	Response(operations []ops.Operation) error
}

type intentEvent struct {
	Type   string `json:"type"`
	Intent string `json:"intent"`
}

type chunkEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type responseEvent struct {
	Type     string          `json:"type"`
	Response responsePayload `json:"response"`
}

type responsePayload struct {
	Operations []ops.Operation `json:"operations"`
}

type flusher interface {
	Flush() error
}

// NDJSONEmitter writes one JSON object per line to the chunked
// response body. Writes are serialized by a mutex and flushed per
// event so the client sees tokens as they arrive.
type NDJSONEmitter struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

func NewNDJSONEmitter(w io.Writer) *NDJSONEmitter {
	return &NDJSONEmitter{
		w:   w,
		enc: json.NewEncoder(w),
	}
}

func (e *NDJSONEmitter) emit(event interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.enc.Encode(event); err != nil {
		return err
	}
	if f, ok := e.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

func (e *NDJSONEmitter) Intent(intent string) error {
	return e.emit(intentEvent{Type: "intent", Intent: intent})
}

func (e *NDJSONEmitter) Title(token string) error {
	return e.emit(chunkEvent{Type: "title", Content: token})
}

func (e *NDJSONEmitter) Token(token string) error {
	return e.emit(chunkEvent{Type: "token", Content: token})
}

func (e *NDJSONEmitter) Response(operations []ops.Operation) error {
	if operations == nil {
		operations = []ops.Operation{}
	}
	return e.emit(responseEvent{Type: "response", Response: responsePayload{Operations: operations}})
}

// NullEmitter discards every event. Used when a generator runs
// outside a streaming request (tests, background resume).
type NullEmitter struct{}

func (NullEmitter) Intent(string) error            { return nil }
func (NullEmitter) Title(string) error             { return nil }
func (NullEmitter) Token(string) error             { return nil }
func (NullEmitter) Response([]ops.Operation) error { return nil }
