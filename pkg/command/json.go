package command

import "encoding/json"

// parseJSONObject parses s as a JSON object, returning ok=false for
// anything else (malformed marker lines are silently skipped, not fatal —
// they're opportunistic, per spec.md §4.6).
func parseJSONObject(s string) (map[string]any, bool) {
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, false
	}
	return out, true
}
