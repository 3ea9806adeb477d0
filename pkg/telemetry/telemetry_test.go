package telemetry

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func TestRedactPromptValues(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(nopCloser{&buf}, "run-1", Options{RedactPromptValues: true})
	if err := w.EmitPromptAnswer("main", "name", "name", "Ada"); err != nil {
		t.Fatalf("EmitPromptAnswer: %v", err)
	}
	var got Event
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Data["value"] != "[redacted]" {
		t.Fatalf("value = %v, want [redacted]", got.Data["value"])
	}
}

func TestRedactCommandOutputDropsStdoutStderr(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(nopCloser{&buf}, "run-1", Options{RedactCommandOutput: true})
	if err := w.EmitCommandResult("main", "build", "npm run build", true, 0, "ok", ""); err != nil {
		t.Fatalf("EmitCommandResult: %v", err)
	}
	var got Event
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := got.Data["stdout"]; ok {
		t.Fatalf("stdout should have been dropped")
	}
}

func TestMultiSinkFanOut(t *testing.T) {
	var a, b bytes.Buffer
	m := MultiSink{NewWriter(nopCloser{&a}, "r", Options{}), NewWriter(nopCloser{&b}, "r", Options{})}
	if err := m.Write(Event{Type: EventShortcutTrigger, Data: map[string]any{"name": "x"}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if a.Len() == 0 || b.Len() == 0 {
		t.Fatalf("expected both sinks to receive the event")
	}
}
