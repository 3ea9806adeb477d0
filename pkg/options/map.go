package options

import (
	"strings"

	"github.com/flowctl/flowctl/pkg/model"
)

// applyMap re-projects each raw item through the FieldMap's dotted paths,
// falling back to the item's own value/label/hint fields when no map is
// configured (the common case: sources already emit {value,label} shaped
// items).
func applyMap(raw []any, m *model.FieldMap) []Resolved {
	out := make([]Resolved, 0, len(raw))
	for _, item := range raw {
		if m == nil {
			out = append(out, coerceResolved(item))
			continue
		}
		r := Resolved{}
		if m.Value != "" {
			r.Value = lookupDotted(item, m.Value)
		} else {
			r.Value = lookupDotted(item, "value")
		}
		if m.Label != "" {
			r.Label = stringOf(lookupDotted(item, m.Label))
		} else {
			r.Label = stringOf(lookupDotted(item, "label"))
		}
		if m.Hint != "" {
			r.Hint = stringOf(lookupDotted(item, m.Hint))
		}
		if m.DisableWhen != "" {
			r.Disabled = truthyOf(lookupDotted(item, m.DisableWhen))
		}
		out = append(out, r)
	}
	return out
}

func coerceResolved(item any) Resolved {
	if m, ok := item.(map[string]any); ok {
		r := Resolved{Value: m["value"], Label: stringOf(m["label"])}
		if r.Value == nil {
			r.Value = item
		}
		if r.Label == "" {
			r.Label = stringOf(r.Value)
		}
		if h, ok := m["hint"]; ok {
			r.Hint = stringOf(h)
		}
		if d, ok := m["disabled"]; ok {
			r.Disabled = truthyOf(d)
		}
		return r
	}
	return Resolved{Value: item, Label: stringOf(item)}
}

func lookupDotted(item any, path string) any {
	cur := item
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	return cur
}

func stringOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return toJSONString(x)
	}
}

func truthyOf(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != "" && !strings.EqualFold(x, "false")
	default:
		return true
	}
}
