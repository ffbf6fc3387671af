package controller

import (
	"context"
	"errors"
	"testing"
)

type brokenWriter struct {
	writeErr error
	flushErr error
}

func (w *brokenWriter) Write(p []byte) (int, error) {
	if w.writeErr != nil {
		return 0, w.writeErr
	}
	return len(p), nil
}

func (w *brokenWriter) Flush() error {
	return w.flushErr
}

func TestWriteFailureCancelsPipelineContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cw := &cancelOnWriteError{
		w:      &brokenWriter{writeErr: errors.New("broken pipe")},
		cancel: cancel,
	}

	if _, err := cw.Write([]byte(`{"type":"token"}`)); err == nil {
		t.Fatal("expected write error to propagate")
	}
	if ctx.Err() == nil {
		t.Error("failed write must cancel the pipeline context")
	}
}

func TestFlushFailureCancelsPipelineContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cw := &cancelOnWriteError{
		w:      &brokenWriter{flushErr: errors.New("connection reset")},
		cancel: cancel,
	}

	if _, err := cw.Write([]byte("ok")); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("context must stay live while writes succeed")
	}

	if err := cw.Flush(); err == nil {
		t.Fatal("expected flush error to propagate")
	}
	if ctx.Err() == nil {
		t.Error("failed flush must cancel the pipeline context")
	}
}
