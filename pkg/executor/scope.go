package executor

import "github.com/flowctl/flowctl/pkg/template"

// scope builds the template.Scope the current State resolves against:
// `{{ state.answers.foo }}`, `{{ state.env.BAR }}`, `{{ state.iteration }}`.
func (w *walker) scope() template.Scope {
	return template.MapScope(w.st.Scope(w.ectx.Env, w.ectx.RepoRoot))
}

// render interpolates s against the current scope.
func (w *walker) render(s string) (string, error) {
	return template.Render(s, w.scope())
}
