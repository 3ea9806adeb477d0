package template

import (
	"fmt"
	"strings"
)

// Render interpolates every `{{ expr }}` span in s against scope. When the
// whole string is a single `{{ expr }}` span, the raw evaluated value is
// returned (RenderMaybeNested's job); Render itself always stringifies,
// matching the teacher's Resolve() for plain string fields.
func Render(s string, scope Scope) (string, error) {
	var sb strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			sb.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			return "", fmt.Errorf("template: unterminated {{ in %q", s)
		}
		end += start
		sb.WriteString(rest[:start])
		expr := strings.TrimSpace(rest[start+2 : end])
		node, err := parseExpr(expr)
		if err != nil {
			return "", fmt.Errorf("template: %q: %w", expr, err)
		}
		val, err := eval(node, scope)
		if err != nil {
			return "", fmt.Errorf("template: %q: %w", expr, err)
		}
		sb.WriteString(Stringify(val))
		rest = rest[end+2:]
	}
	return sb.String(), nil
}

// RenderMaybeNested behaves like Render, except when the entire trimmed
// string is exactly one `{{ expr }}` span: in that case the expression's
// raw (possibly non-string) value is returned unconverted, so a field like
// `value: "{{ .count }}"` can resolve to a number or array instead of its
// string form. This matches gert's ResolveValue split between scalar
// fields and pure-reference fields.
func RenderMaybeNested(s string, scope Scope) (any, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") &&
		strings.Count(trimmed, "{{") == 1 {
		expr := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
		node, err := parseExpr(expr)
		if err != nil {
			return nil, fmt.Errorf("template: %q: %w", expr, err)
		}
		return eval(node, scope)
	}
	return Render(s, scope)
}

// RenderMap deep-copies m, rendering every string leaf with
// RenderMaybeNested and recursing into nested maps/slices.
func RenderMap(m map[string]any, scope Scope) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		rv, err := renderAny(v, scope)
		if err != nil {
			return nil, fmt.Errorf("template: key %q: %w", k, err)
		}
		out[k] = rv
	}
	return out, nil
}

func renderAny(v any, scope Scope) (any, error) {
	switch x := v.(type) {
	case string:
		return RenderMaybeNested(x, scope)
	case map[string]any:
		return RenderMap(x, scope)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			rv, err := renderAny(item, scope)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

// EvalBranch evaluates a branch condition expression (no surrounding
// `{{ }}` delimiters — branch expressions are bare) and applies the
// Truthy coercion rule.
func EvalBranch(expr string, scope Scope) (bool, error) {
	node, err := parseExpr(strings.TrimSpace(expr))
	if err != nil {
		return false, fmt.Errorf("template: branch %q: %w", expr, err)
	}
	val, err := eval(node, scope)
	if err != nil {
		return false, fmt.Errorf("template: branch %q: %w", expr, err)
	}
	return Truthy(val), nil
}

// Stringify renders a Value for substitution into surrounding text.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		return trimFloat(x)
	default:
		return fmt.Sprint(x)
	}
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}
