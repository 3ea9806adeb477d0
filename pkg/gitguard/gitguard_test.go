package gitguard

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"

	"github.com/flowctl/flowctl/pkg/model"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write README: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatalf("add: %v", err)
	}
	g := New("test", "test@example.com")
	if _, err := wt.Commit("initial", &git.CommitOptions{Author: g.signature()}); err != nil {
		t.Fatalf("initial commit: %v", err)
	}
	return dir
}

func TestIsDirtyCleanRepo(t *testing.T) {
	dir := initRepo(t)
	g := New("", "")
	dirty, err := g.IsDirty(context.Background(), dir)
	if err != nil {
		t.Fatalf("IsDirty: %v", err)
	}
	if dirty {
		t.Fatalf("expected clean repo immediately after commit")
	}
}

func TestIsDirtyAfterEdit(t *testing.T) {
	dir := initRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("changed\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	g := New("", "")
	dirty, err := g.IsDirty(context.Background(), dir)
	if err != nil {
		t.Fatalf("IsDirty: %v", err)
	}
	if !dirty {
		t.Fatalf("expected dirty repo after edit")
	}
}

func TestApplyCommitCleansTree(t *testing.T) {
	dir := initRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("changed\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	g := New("", "")
	result, err := g.Apply(context.Background(), dir, model.StrategyCommit)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result["commit"] == "" || result["commit"] == nil {
		t.Fatalf("expected a commit hash in result: %+v", result)
	}
	dirty, err := g.IsDirty(context.Background(), dir)
	if err != nil {
		t.Fatalf("IsDirty: %v", err)
	}
	if dirty {
		t.Fatalf("expected clean tree after commit strategy")
	}
}

func TestApplyStashCleansTreeAndKeepsSnapshot(t *testing.T) {
	dir := initRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("changed\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	g := New("", "")
	result, err := g.Apply(context.Background(), dir, model.StrategyStash)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result["stashRef"] == "" {
		t.Fatalf("expected a stash ref in result: %+v", result)
	}
	dirty, err := g.IsDirty(context.Background(), dir)
	if err != nil {
		t.Fatalf("IsDirty: %v", err)
	}
	if dirty {
		t.Fatalf("expected clean tree after stash strategy")
	}
	data, err := os.ReadFile(filepath.Join(dir, "README.md"))
	if err != nil {
		t.Fatalf("read README: %v", err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("expected worktree reset to prior HEAD content, got %q", data)
	}
}

func TestApplyUnknownStrategy(t *testing.T) {
	dir := initRepo(t)
	g := New("", "")
	if _, err := g.Apply(context.Background(), dir, model.GitStrategy("bogus")); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}
