// Package options implements the Dynamic Option Resolver (spec.md §4.2):
// produces prompt choices from commands, globs, JSON files, workspace
// discovery, or project-local tsconfig probes, with session/process/TTL
// caching. Grounded on gert's pkg/inputs (JSON-RPC provider shape,
// generalized to in-process sources) plus the pack's glob/JSON-projection
// libraries (bmatcuk/doublestar, itchyny/gojq).
package options

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/itchyny/gojq"

	"github.com/flowctl/flowctl/pkg/command"
	"github.com/flowctl/flowctl/pkg/errs"
	"github.com/flowctl/flowctl/pkg/model"
)

// Resolved is one option produced for a prompt.
type Resolved = model.ResolvedOption

// Context carries the ambient inputs a source resolves against.
type Context struct {
	RepoRoot string
	Phase    string // "collect" | "execute"
	Session  *sessionCache
	Runner   *command.Runner
}

// NewSession constructs a fresh per-run session cache.
func NewSession() *sessionCache { return newSessionCache() }

var defaultIgnoreDirs = []string{"node_modules", ".git", "dist", "build", ".cache", "vendor", ".next", ".turbo"}

// Resolve dispatches to the configured source kind and applies the map
// projection and caching wrapper.
func Resolve(ctx context.Context, octx Context, src *model.DynamicSource) ([]Resolved, error) {
	if src == nil {
		return nil, nil
	}
	key := cacheKey(octx.RepoRoot, src)
	if cached, ok := lookupCache(octx, src, key); ok {
		return cached, nil
	}

	if src.Kind == model.SourceCommand && octx.Phase == "collect" {
		return nil, errs.New(errs.KindCollectMode, "dynamic `command` option source cannot run during collect phase")
	}

	raw, err := resolveRaw(ctx, octx, src)
	if err != nil {
		return nil, err
	}
	opts := applyMap(raw, src.Map)
	storeCache(octx, src, key, opts)
	return opts, nil
}

func resolveRaw(ctx context.Context, octx Context, src *model.DynamicSource) ([]any, error) {
	switch src.Kind {
	case model.SourceCommand:
		return resolveCommand(ctx, octx, src)
	case model.SourceGlob:
		return resolveGlob(octx, src)
	case model.SourceJSON:
		return resolveJSON(src)
	case model.SourceWorkspaceProjects:
		return resolveWorkspaceProjects(octx, src)
	case model.SourceProjectTsconfigs:
		return resolveProjectTsconfigs(src)
	default:
		return nil, fmt.Errorf("options: unknown dynamic source kind %q", src.Kind)
	}
}

func resolveCommand(ctx context.Context, octx Context, src *model.DynamicSource) ([]any, error) {
	runner := octx.Runner
	if runner == nil {
		runner = command.NewRunner()
	}
	res, err := runner.Run(ctx, command.Invocation{Run: src.Run, Cwd: firstNonEmpty(src.Cwd, octx.RepoRoot), Shell: true, CaptureStdout: true})
	if err != nil {
		return nil, fmt.Errorf("options: command source: %w", err)
	}
	if !res.Success {
		return nil, fmt.Errorf("options: command source exited %d: %s", res.ExitCode, res.Stderr)
	}
	var parsed any
	if err := json.Unmarshal([]byte(res.Stdout), &parsed); err != nil {
		return nil, fmt.Errorf("options: command source produced invalid JSON: %w", err)
	}
	return toSlice(parsed), nil
}

func resolveGlob(octx Context, src *model.DynamicSource) ([]any, error) {
	root := firstNonEmpty(src.Cwd, octx.RepoRoot)
	ignore := src.Ignore
	seen := map[string]bool{}
	var matches []string
	for _, pattern := range src.Patterns {
		found, err := doublestar.Glob(os.DirFS(root), pattern)
		if err != nil {
			return nil, fmt.Errorf("options: glob pattern %q: %w", pattern, err)
		}
		for _, m := range found {
			if isIgnored(m, ignore) || seen[m] {
				continue
			}
			seen[m] = true
			matches = append(matches, m)
		}
	}
	sort.Strings(matches)
	out := make([]any, len(matches))
	for i, m := range matches {
		out[i] = map[string]any{
			"value": filepath.Join(root, m),
			"label": m,
		}
	}
	return out, nil
}

func resolveJSON(src *model.DynamicSource) ([]any, error) {
	data, err := os.ReadFile(src.File)
	if err != nil {
		return nil, fmt.Errorf("options: json source: %w", err)
	}
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("options: json source: invalid JSON in %s: %w", src.File, err)
	}
	if src.Pointer != "" {
		parsed, err = gojqQuery(parsed, src.Pointer)
		if err != nil {
			return nil, fmt.Errorf("options: json source: pointer %q: %w", src.Pointer, err)
		}
	}
	return toSlice(parsed), nil
}

func resolveWorkspaceProjects(octx Context, src *model.DynamicSource) ([]any, error) {
	root := octx.RepoRoot
	maxDepth := src.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 4
	}
	limit := src.Limit
	var out []any
	if src.IncludeRoot {
		if name, ok := manifestName(root); ok {
			out = append(out, map[string]any{"value": root, "label": name})
		}
	}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		depth := strings.Count(rel, string(filepath.Separator)) + 1
		if d.IsDir() {
			if isIgnored(rel, defaultIgnoreDirs) {
				return filepath.SkipDir
			}
			if depth > maxDepth {
				return filepath.SkipDir
			}
			if name, ok := manifestName(path); ok {
				out = append(out, map[string]any{"value": path, "label": name})
				if limit > 0 && len(out) >= limit {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("options: workspace-projects: %w", err)
	}
	return out, nil
}

func manifestName(dir string) (string, bool) {
	for _, manifest := range []string{"package.json", "go.mod", "Cargo.toml", "pyproject.toml"} {
		p := filepath.Join(dir, manifest)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return filepath.Base(dir), true
		}
	}
	return "", false
}

func resolveProjectTsconfigs(src *model.DynamicSource) ([]any, error) {
	entries, err := os.ReadDir(src.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("options: project-tsconfigs: %w", err)
	}
	var out []any
	hasCanonical := false
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "tsconfig") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if name == "tsconfig.json" {
			hasCanonical = true
		}
		out = append(out, map[string]any{
			"value": filepath.Join(src.ProjectDir, name),
			"label": name,
		})
	}
	if !hasCanonical {
		out = append([]any{map[string]any{
			"value": filepath.Join(src.ProjectDir, "tsconfig.json"),
			"label": "tsconfig.json",
		}}, out...)
	}
	if src.AppendCustomPath {
		out = append(out, map[string]any{"value": "__custom__", "label": "Custom path..."})
	}
	return out, nil
}

func gojqQuery(input any, pointer string) (any, error) {
	query, err := gojq.Parse(jsonPointerToJQ(pointer))
	if err != nil {
		return nil, err
	}
	iter := query.Run(input)
	v, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, ok := v.(error); ok {
		return nil, err
	}
	return v, nil
}

// jsonPointerToJQ converts an RFC-6901-style `/a/b/0` pointer into the
// equivalent gojq filter `.a.b[0]`.
func jsonPointerToJQ(pointer string) string {
	if pointer == "" || pointer == "/" {
		return "."
	}
	parts := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	var sb strings.Builder
	sb.WriteString(".")
	for i, p := range parts {
		p = strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(p); err == nil {
			sb.WriteString("[" + p + "]")
			continue
		}
		if i > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(p)
	}
	return sb.String()
}

func toSlice(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case nil:
		return nil
	default:
		return []any{x}
	}
}

func isIgnored(relPath string, ignore []string) bool {
	for _, seg := range strings.Split(relPath, string(filepath.Separator)) {
		for _, ig := range ignore {
			if seg == ig {
				return true
			}
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func cacheKey(repoRoot string, src *model.DynamicSource) string {
	b, _ := json.Marshal(src)
	return repoRoot + "|" + string(b)
}

func lookupCache(octx Context, src *model.DynamicSource, key string) ([]Resolved, bool) {
	if src.Cache == nil {
		return nil, false
	}
	switch src.Cache.Mode {
	case "session":
		if octx.Session == nil {
			return nil, false
		}
		return octx.Session.get(key)
	case "always", "ttl":
		return globalCache.get(key)
	default:
		return nil, false
	}
}

func storeCache(octx Context, src *model.DynamicSource, key string, opts []Resolved) {
	if src.Cache == nil {
		return
	}
	switch src.Cache.Mode {
	case "session":
		if octx.Session != nil {
			octx.Session.set(key, opts)
		}
	case "always":
		globalCache.set(key, opts, 0)
	case "ttl":
		globalCache.set(key, opts, time.Duration(src.Cache.TTLMs)*time.Millisecond)
	}
}
