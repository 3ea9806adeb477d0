package template

import "testing"

func TestRender(t *testing.T) {
	scope := MapScope{
		"name":  "ada",
		"count": 3.0,
		"nested": map[string]any{
			"flag": true,
		},
	}
	cases := []struct {
		in   string
		want string
	}{
		{"hello {{ .name }}", "hello ada"},
		{"count={{ .count }}", "count=3"},
		{"flag={{ .nested.flag }}", "flag=true"},
		{"no templates here", "no templates here"},
		{"{{ default(.missing, \"fallback\") }}", "fallback"},
	}
	for _, c := range cases {
		got, err := Render(c.in, scope)
		if err != nil {
			t.Fatalf("Render(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Render(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRenderMaybeNestedPreservesType(t *testing.T) {
	scope := MapScope{"items": []any{"a", "b"}}
	got, err := RenderMaybeNested("{{ .items }}", scope)
	if err != nil {
		t.Fatalf("RenderMaybeNested: %v", err)
	}
	arr, ok := got.([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("got %#v, want []any of len 2", got)
	}
}

func TestEvalBranch(t *testing.T) {
	scope := MapScope{
		"env":   "production",
		"count": 0.0,
		"ready": true,
		"empty": "",
	}
	cases := []struct {
		expr string
		want bool
	}{
		{`.env === "production"`, true},
		{`.env === "staging"`, false},
		{`.ready && .env == "production"`, true},
		{`.count`, false},
		{`.empty`, false},
		{`!.ready`, false},
		{`.missing`, false},
		{`.ready || .missing`, true},
		{`(.env === "production") && !.missing`, true},
	}
	for _, c := range cases {
		got, err := EvalBranch(c.expr, scope)
		if err != nil {
			t.Fatalf("EvalBranch(%q): %v", c.expr, err)
		}
		if got != c.want {
			t.Errorf("EvalBranch(%q) = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestEvalBranchUnresolvedIsFalse(t *testing.T) {
	scope := MapScope{}
	got, err := EvalBranch(".nothing.here", scope)
	if err != nil {
		t.Fatalf("EvalBranch: %v", err)
	}
	if got {
		t.Fatalf("expected unresolved path to coerce to false")
	}
}
