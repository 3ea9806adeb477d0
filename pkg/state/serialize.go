package state

import (
	"encoding/json"
	"fmt"
)

// FlattenedError is the on-disk shape for a transient error reference
// (spec.md §4.7: "errors flattened to {name, message, stack}"). State
// itself holds no live error objects; callers (pkg/checkpoint,
// pkg/errroute) flatten an error into this shape before attaching it to a
// record destined for disk.
type FlattenedError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Flatten converts a Go error into the checkpoint's error shape.
func Flatten(err error) *FlattenedError {
	if err == nil {
		return nil
	}
	return &FlattenedError{Name: fmt.Sprintf("%T", err), Message: err.Error()}
}

// Serialize renders State as the canonical JSON document written to
// state.json. time.Time fields marshal to RFC3339 (ISO-8601) via the
// standard encoding/json support; no custom time codec is needed.
func Serialize(s *State) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Hydrate parses a previously-Serialize'd document back into a State.
// hydrate(serialize(s)) ≡ s structurally (invariant 5, §8) because every
// field round-trips through the same json tags; the transient Iteration
// field is intentionally excluded from the wire format (json:"-") and so
// is always nil after Hydrate, matching "cleared" transient bindings.
func Hydrate(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("state: hydrate: %w", err)
	}
	if s.Answers == nil {
		s.Answers = map[string]any{}
	}
	if s.AutoActionCounts == nil {
		s.AutoActionCounts = map[string]int{}
	}
	return &s, nil
}
