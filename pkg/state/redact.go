package state

// Redacted is the exact sentinel string invariant 4 (§8) requires.
const Redacted = "[REDACTED]"

// Redact walks v (expected to be a JSON-like value: map/slice/scalar) and
// replaces every value under a key in keys with Redacted, at any nesting
// depth. It does not mutate v; it returns a new value. Applied before
// insertion into State.Answers (never at the telemetry edge, which has its
// own redaction policy in pkg/telemetry).
func Redact(v any, keys []string) any {
	if len(keys) == 0 {
		return v
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return redactValue(v, set)
}

func redactValue(v any, keys map[string]bool) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			if keys[k] {
				out[k] = Redacted
				continue
			}
			out[k] = redactValue(val, keys)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = redactValue(item, keys)
		}
		return out
	default:
		return v
	}
}

// StoreAnswer applies redaction (if any redactKeys are configured) and
// assigns into answers[key], satisfying "redaction before insertion".
func StoreAnswer(answers map[string]any, key string, value any, redactKeys []string) {
	answers[key] = Redact(value, redactKeys)
}
