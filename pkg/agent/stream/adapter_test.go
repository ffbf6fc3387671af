package stream

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"ai-docpilot-be/pkg/agent/ops"
)

func TestNDJSONFraming(t *testing.T) {
	var buf bytes.Buffer
	e := NewNDJSONEmitter(&buf)

	if err := e.Intent("table"); err != nil {
		t.Fatal(err)
	}
	if err := e.Token("hello"); err != nil {
		t.Fatal(err)
	}
	if err := e.Response([]ops.Operation{ops.NewChatResponse("done")}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}

	var first map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 0 is not valid JSON: %v", err)
	}
	if first["type"] != "intent" || first["intent"] != "table" {
		t.Errorf("unexpected intent event: %v", first)
	}

	var second map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line 1 is not valid JSON: %v", err)
	}
	if second["type"] != "token" || second["content"] != "hello" {
		t.Errorf("unexpected token event: %v", second)
	}

	var third struct {
		Type     string `json:"type"`
		Response struct {
			Operations []ops.Operation `json:"operations"`
		} `json:"response"`
	}
	if err := json.Unmarshal([]byte(lines[2]), &third); err != nil {
		t.Fatalf("line 2 is not valid JSON: %v", err)
	}
	if third.Type != "response" || len(third.Response.Operations) != 1 {
		t.Errorf("unexpected response event: %+v", third)
	}
}

func TestResponseNeverNil(t *testing.T) {
	var buf bytes.Buffer
	e := NewNDJSONEmitter(&buf)

	if err := e.Response(nil); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(buf.String(), `"operations":[]`) {
		t.Errorf("nil operations should serialize as empty array: %q", buf.String())
	}
}

type countingWriter struct {
	bytes.Buffer
	flushes int
}

func (w *countingWriter) Flush() error {
	w.flushes++
	return nil
}

func TestFlushPerEvent(t *testing.T) {
	w := &countingWriter{}
	e := NewNDJSONEmitter(w)

	_ = e.Intent("code")
	_ = e.Token("a")
	_ = e.Token("b")

	if w.flushes != 3 {
		t.Errorf("expected one flush per event, got %d", w.flushes)
	}
}
