package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/options"
	"github.com/flowctl/flowctl/pkg/state"
	"github.com/flowctl/flowctl/pkg/template"
)

// dispatchCompute renders an inline `values` map into state.answers, or
// dispatches a named handler with rendered params (spec.md §4.6).
func (w *walker) dispatchCompute(ctx context.Context, flowID string, step model.Step) (string, error) {
	var result any
	var err error

	switch {
	case step.Handler != "":
		params, rerr := template.RenderMap(step.Params, w.scope())
		if rerr != nil {
			return "", fmt.Errorf("compute %q: render params: %w", step.ID, rerr)
		}
		result, err = w.runComputeHandler(ctx, step.Handler, params)
		if err != nil {
			return "", fmt.Errorf("compute %q: handler %q: %w", step.ID, step.Handler, err)
		}
	case step.Values != nil:
		rendered, rerr := template.RenderMap(step.Values, w.scope())
		if rerr != nil {
			return "", fmt.Errorf("compute %q: render values: %w", step.ID, rerr)
		}
		result = rendered
	default:
		return step.Next, nil
	}

	if step.StoreAs != "" {
		state.StoreAnswer(w.st.Answers, step.StoreAs, result, nil)
	} else if m, ok := result.(map[string]any); ok {
		for k, v := range m {
			w.st.Answers[k] = v
		}
	}
	return step.Next, nil
}

// runComputeHandler dispatches to one of the built-in named compute
// handlers (spec.md §4.6).
func (w *walker) runComputeHandler(ctx context.Context, name string, params map[string]any) (any, error) {
	switch name {
	case "workspace-projects":
		return w.computeWorkspaceProjects(ctx, params)
	case "template-json":
		return w.computeTemplateJSON(params)
	case "maintenance-window":
		return w.computeMaintenanceWindow(params)
	case "detect-project-tsconfig":
		return w.computeDetectProjectTsconfig(params)
	case "render-typecheck-command":
		return w.computeRenderTypecheckCommand(params)
	default:
		return nil, fmt.Errorf("unknown compute handler %q", name)
	}
}

// computeWorkspaceProjects reuses the dynamic option resolver's
// workspace-project walk, returning raw {value,label} entries rather than
// prompt ResolvedOptions.
func (w *walker) computeWorkspaceProjects(ctx context.Context, params map[string]any) (any, error) {
	src := &model.DynamicSource{
		Kind:        model.SourceWorkspaceProjects,
		IncludeRoot: truthy(params["includeRoot"]),
	}
	if v, ok := params["maxDepth"].(float64); ok {
		src.MaxDepth = int(v)
	}
	if v, ok := params["limit"].(float64); ok {
		src.Limit = int(v)
	}
	opts, err := options.Resolve(ctx, w.ectx.OptionSession, src)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(opts))
	for i, o := range opts {
		out[i] = map[string]any{"value": o.Value, "label": o.Label}
	}
	return out, nil
}

// computeTemplateJSON renders a template string and parses the result as
// JSON, projecting it through an RFC-6901-style `pointer` param (the same
// jsonPointerLookup walk the jsonFile iterate source uses) when one is
// supplied.
func (w *walker) computeTemplateJSON(params map[string]any) (any, error) {
	tmpl, _ := params["template"].(string)
	rendered, err := w.render(tmpl)
	if err != nil {
		return nil, fmt.Errorf("template-json: %w", err)
	}
	var parsed any
	if err := json.Unmarshal([]byte(rendered), &parsed); err != nil {
		return nil, fmt.Errorf("template-json: invalid JSON: %w", err)
	}
	if pointer, _ := params["pointer"].(string); pointer != "" {
		projected, err := jsonPointerLookup(parsed, pointer)
		if err != nil {
			return nil, fmt.Errorf("template-json: pointer %q: %w", pointer, err)
		}
		return projected, nil
	}
	return parsed, nil
}

// computeMaintenanceWindow reports whether the current time falls within a
// `start`/`end` HH:MM window (local time), for gating disruptive steps.
func (w *walker) computeMaintenanceWindow(params map[string]any) (any, error) {
	start, _ := params["start"].(string)
	end, _ := params["end"].(string)
	now := time.Now()
	startT, err := time.ParseInLocation("15:04", start, now.Location())
	if err != nil {
		return nil, fmt.Errorf("maintenance-window: invalid start %q: %w", start, err)
	}
	endT, err := time.ParseInLocation("15:04", end, now.Location())
	if err != nil {
		return nil, fmt.Errorf("maintenance-window: invalid end %q: %w", end, err)
	}
	nowMinutes := now.Hour()*60 + now.Minute()
	startMinutes := startT.Hour()*60 + startT.Minute()
	endMinutes := endT.Hour()*60 + endT.Minute()
	within := nowMinutes >= startMinutes && nowMinutes < endMinutes
	return map[string]any{"withinWindow": within, "now": now.Format("15:04")}, nil
}

// computeDetectProjectTsconfig probes projectDir for a canonical
// tsconfig.json, falling back to the first tsconfig*.json match.
func (w *walker) computeDetectProjectTsconfig(params map[string]any) (any, error) {
	projectDir, _ := params["projectDir"].(string)
	if projectDir == "" {
		projectDir = w.ectx.RepoRoot
	}
	canonical := filepath.Join(projectDir, "tsconfig.json")
	if _, err := os.Stat(canonical); err == nil {
		return map[string]any{"path": canonical, "detected": true}, nil
	}
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return nil, fmt.Errorf("detect-project-tsconfig: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, "tsconfig") && strings.HasSuffix(name, ".json") {
			return map[string]any{"path": filepath.Join(projectDir, name), "detected": true}, nil
		}
	}
	return map[string]any{"path": canonical, "detected": false}, nil
}

// computeRenderTypecheckCommand builds a per-language typecheck invocation
// string from a `project` param, mirroring the kind of convenience helper
// the teacher's preflight flows lean on.
func (w *walker) computeRenderTypecheckCommand(params map[string]any) (any, error) {
	project, _ := params["project"].(string)
	lang, _ := params["lang"].(string)
	var cmd string
	switch lang {
	case "typescript", "":
		cmd = fmt.Sprintf("tsc --noEmit -p %s", project)
	case "go":
		cmd = fmt.Sprintf("go vet %s/...", project)
	case "python":
		cmd = fmt.Sprintf("mypy %s", project)
	default:
		return nil, fmt.Errorf("render-typecheck-command: unsupported lang %q", lang)
	}
	return map[string]any{"command": cmd}, nil
}

func truthy(v any) bool {
	b, _ := v.(bool)
	return b
}
