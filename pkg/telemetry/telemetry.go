// Package telemetry implements the Sink (spec.md §4.8): a write-only event
// stream with edge redaction, grounded on gert's pkg/kernel/trace.Writer.
package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the ten event kinds spec.md §4.8 names.
type EventType string

const (
	EventScenarioStart     EventType = "scenario.start"
	EventScenarioComplete  EventType = "scenario.complete"
	EventStepStart         EventType = "step.start"
	EventStepComplete      EventType = "step.complete"
	EventPromptAnswer      EventType = "prompt.answer"
	EventPromptPersistence EventType = "prompt.persistence"
	EventBranchDecision    EventType = "branch.decision"
	EventCommandResult     EventType = "command.result"
	EventPolicyDecision    EventType = "policy.decision"
	EventShortcutTrigger   EventType = "shortcut.trigger"
)

// Event is one emitted telemetry record. Data carries the event-specific
// payload (flat map, so redaction can target well-known keys generically).
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"runId"`
	Data      map[string]any `json:"data,omitempty"`
}

// Sink is the write-only interface spec.md requires.
type Sink interface {
	Write(e Event) error
	Close() error
}

// Options configures the edge-redaction behaviour of a Writer.
type Options struct {
	RedactPromptValues bool
	RedactCommandOutput bool
}

// Writer is the concrete JSONL sink, grounded on trace.Writer: a mutex
// around a json.Encoder, with Emit* convenience methods mirroring gert's
// per-kind helpers.
type Writer struct {
	mu      sync.Mutex
	enc     *json.Encoder
	closer  io.Closer
	opts    Options
	runID   string
}

// NewWriter wraps an io.WriteCloser (typically an append-mode run-directory
// file) as a JSONL Sink.
func NewWriter(w io.WriteCloser, runID string, opts Options) *Writer {
	return &Writer{enc: json.NewEncoder(w), closer: w, opts: opts, runID: runID}
}

// NewFileWriter opens (creating if absent) a JSONL trace file, mirroring
// trace.NewFileWriter.
func NewFileWriter(path string, runID string, opts Options) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return NewWriter(f, runID, opts), nil
}

func (w *Writer) Write(e Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.RunID == "" {
		e.RunID = w.runID
	}
	redact(&e, w.opts)
	return w.enc.Encode(e)
}

func (w *Writer) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

func redact(e *Event, opts Options) {
	if e.Data == nil {
		return
	}
	if opts.RedactPromptValues && e.Type == EventPromptAnswer {
		if _, ok := e.Data["value"]; ok {
			e.Data["value"] = "[redacted]"
		}
	}
	if opts.RedactCommandOutput && e.Type == EventCommandResult {
		delete(e.Data, "stdout")
		delete(e.Data, "stderr")
	}
}

// NewCorrelationID mints a correlation id for an iterate sub-context or a
// one-off event, using google/uuid as gert's engine does for fork ids.
func NewCorrelationID() string { return uuid.NewString() }

// MultiSink composes several sinks; Write/Close fan out to all, returning
// the first error encountered (but always attempting every sink).
type MultiSink []Sink

func (m MultiSink) Write(e Event) error {
	var firstErr error
	for _, s := range m {
		if err := s.Write(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m MultiSink) Close() error {
	var firstErr error
	for _, s := range m {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// --- per-kind emit helpers, mirroring trace.go's Emit* methods ---

func (w *Writer) EmitScenarioStart(scenarioID string, dryRun bool) error {
	return w.Write(Event{Type: EventScenarioStart, Data: map[string]any{"scenarioId": scenarioID, "dryRun": dryRun}})
}

func (w *Writer) EmitScenarioComplete(scenarioID string, status string) error {
	return w.Write(Event{Type: EventScenarioComplete, Data: map[string]any{"scenarioId": scenarioID, "status": status}})
}

func (w *Writer) EmitStepStart(flowID, stepID, kind string) error {
	return w.Write(Event{Type: EventStepStart, Data: map[string]any{"flowId": flowID, "stepId": stepID, "kind": kind}})
}

func (w *Writer) EmitStepComplete(flowID, stepID string, success bool) error {
	return w.Write(Event{Type: EventStepComplete, Data: map[string]any{"flowId": flowID, "stepId": stepID, "success": success}})
}

func (w *Writer) EmitPromptAnswer(flowID, stepID, storeAs string, value any) error {
	return w.Write(Event{Type: EventPromptAnswer, Data: map[string]any{"flowId": flowID, "stepId": stepID, "storeAs": storeAs, "value": value}})
}

func (w *Writer) EmitPromptPersistence(flowID, stepID string, status string, applied bool) error {
	return w.Write(Event{Type: EventPromptPersistence, Data: map[string]any{"flowId": flowID, "stepId": stepID, "status": status, "applied": applied}})
}

func (w *Writer) EmitBranchDecision(flowID, stepID, target string) error {
	return w.Write(Event{Type: EventBranchDecision, Data: map[string]any{"flowId": flowID, "stepId": stepID, "target": target}})
}

func (w *Writer) EmitCommandResult(flowID, stepID, command string, success bool, exitCode int, stdout, stderr string) error {
	return w.Write(Event{Type: EventCommandResult, Data: map[string]any{
		"flowId": flowID, "stepId": stepID, "command": command,
		"success": success, "exitCode": exitCode, "stdout": stdout, "stderr": stderr,
	}})
}

func (w *Writer) EmitPolicyDecision(ruleID, level, enforcedLevel string, acknowledged bool) error {
	return w.Write(Event{Type: EventPolicyDecision, Data: map[string]any{
		"ruleId": ruleID, "ruleLevel": level, "enforcedLevel": enforcedLevel, "acknowledged": acknowledged,
	}})
}

func (w *Writer) EmitShortcutTrigger(name string) error {
	return w.Write(Event{Type: EventShortcutTrigger, Data: map[string]any{"name": name}})
}
