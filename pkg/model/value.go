package model

import "strings"

// Value is the dynamic-typing sum used at boundaries (overrides, captured
// JSON, prompt answers): Null | Bool | Number | String | Array | Object.
// Go's `any` already models this union; these helpers normalise raw inputs
// (CLI overrides, persisted answers, captured stdout) into it the way the
// engine expects.
type Value = any

// CoerceOverride normalises a raw override value for a prompt of the given
// mode. Confirm prompts accept "true"/"false" strings as booleans;
// multiselect prompts accept comma-separated strings as arrays. Anything
// else passes through unchanged.
func CoerceOverride(mode PromptMode, raw any) any {
	switch mode {
	case PromptConfirm:
		if s, ok := raw.(string); ok {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "true":
				return true
			case "false":
				return false
			}
		}
		return raw
	case PromptMultiSelect:
		if s, ok := raw.(string); ok {
			parts := strings.Split(s, ",")
			out := make([]any, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					out = append(out, p)
				}
			}
			return out
		}
		return raw
	default:
		return raw
	}
}
