package options

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/flowctl/flowctl/pkg/errs"
	"github.com/flowctl/flowctl/pkg/model"
)

func TestCommandSourceRejectedDuringCollectPhase(t *testing.T) {
	_, err := Resolve(context.Background(), Context{Phase: "collect"}, &model.DynamicSource{
		Kind: model.SourceCommand, Run: "echo []",
	})
	if kind, ok := errs.KindOf(err); !ok || kind != errs.KindCollectMode {
		t.Fatalf("got err=%v, want CollectModeError", err)
	}
}

func TestGlobSource(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644)

	opts, err := Resolve(context.Background(), Context{RepoRoot: dir, Phase: "execute"}, &model.DynamicSource{
		Kind: model.SourceGlob, Patterns: []string{"*.txt"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(opts) != 2 {
		t.Fatalf("got %d options, want 2", len(opts))
	}
}

func TestJSONSourceWithPointer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	data, _ := json.Marshal(map[string]any{"items": []any{"a", "b"}})
	os.WriteFile(path, data, 0o644)

	opts, err := Resolve(context.Background(), Context{RepoRoot: dir, Phase: "execute"}, &model.DynamicSource{
		Kind: model.SourceJSON, File: path, Pointer: "/items",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(opts) != 2 || opts[0].Value != "a" {
		t.Fatalf("got %+v", opts)
	}
}

func TestSessionCacheAvoidsReResolving(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644)
	session := NewSession()
	src := &model.DynamicSource{Kind: model.SourceGlob, Patterns: []string{"*.txt"}, Cache: &model.CacheMode{Mode: "session"}}

	first, err := Resolve(context.Background(), Context{RepoRoot: dir, Session: session}, src)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644)
	second, err := Resolve(context.Background(), Context{RepoRoot: dir, Session: session}, src)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("expected cached result to be reused: first=%d second=%d", len(first), len(second))
	}
}
