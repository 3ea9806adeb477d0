// Package gitguard implements the git-worktree-guard step (spec.md §4.1
// kind 8, §4.6): dirty/clean detection and the commit/stash/branch/proceed
// strategy contracts. gert has no VCS-awareness of its own to ground this
// on (spec.md has no teacher precedent here), so it's grounded on the
// rest of the pack instead: github.com/go-git/go-git/v5 (wired from the
// dagu-org-dagu manifest) replaces shelling out to `git`.
package gitguard

import (
	"context"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/flowctl/flowctl/pkg/errs"
	"github.com/flowctl/flowctl/pkg/model"
)

// Guard implements executor.GitGuard against a real on-disk repository.
type Guard struct {
	// AuthorName/AuthorEmail stamp commits the guard creates itself
	// (the snapshot commit behind "stash", the commit behind "commit").
	// Defaulted if empty.
	AuthorName  string
	AuthorEmail string
}

// New constructs a Guard with the given commit-author identity, or a
// generic default if left blank.
func New(authorName, authorEmail string) *Guard {
	if authorName == "" {
		authorName = "flowctl"
	}
	if authorEmail == "" {
		authorEmail = "flowctl@localhost"
	}
	return &Guard{AuthorName: authorName, AuthorEmail: authorEmail}
}

// IsDirty reports whether repoRoot's working tree has uncommitted changes.
func (g *Guard) IsDirty(ctx context.Context, repoRoot string) (bool, error) {
	wt, err := g.worktree(repoRoot)
	if err != nil {
		return false, err
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("gitguard: status: %w", err)
	}
	return !status.IsClean(), nil
}

// Apply executes one dirty-tree handling strategy (spec.md §4.1 kind 8).
// The strategies never mutate the flow's own execution — they hand back a
// contract (the committed hash, the stash ref, the new branch name) for
// subsequent steps in the flow to consume via their configured answer key.
func (g *Guard) Apply(ctx context.Context, repoRoot string, strategy model.GitStrategy) (map[string]any, error) {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("gitguard: open %s: %w", repoRoot, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("gitguard: worktree: %w", err)
	}

	switch strategy {
	case model.StrategyProceed:
		return map[string]any{"strategy": "proceed"}, nil
	case model.StrategyCommit:
		return g.applyCommit(wt, "flowctl: working tree checkpoint before scenario run")
	case model.StrategyStash:
		return g.applyStash(repo, wt)
	case model.StrategyBranch:
		return g.applyBranch(wt)
	default:
		return nil, errs.New(errs.KindConfig, fmt.Sprintf("gitguard: unknown strategy %q", strategy))
	}
}

func (g *Guard) worktree(repoRoot string) (*git.Worktree, error) {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("gitguard: open %s: %w", repoRoot, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("gitguard: worktree: %w", err)
	}
	return wt, nil
}

func (g *Guard) signature() *object.Signature {
	return &object.Signature{Name: g.AuthorName, Email: g.AuthorEmail, When: time.Now()}
}

// applyCommit stages everything and commits in place on the current
// branch ("commit" strategy: the dirty work simply becomes history).
func (g *Guard) applyCommit(wt *git.Worktree, message string) (map[string]any, error) {
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, fmt.Errorf("gitguard: add: %w", err)
	}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: g.signature()})
	if err != nil {
		return nil, fmt.Errorf("gitguard: commit: %w", err)
	}
	return map[string]any{"strategy": "commit", "commit": hash.String()}, nil
}

// applyStash approximates `git stash`: go-git v5 has no native stash
// support, so the dirty tree is snapshotted as a commit on an ephemeral
// ref (refs/flowctl-stash/<unix-nano>), then the worktree is hard-reset
// back to the prior HEAD — leaving the working tree clean with the
// snapshot recoverable from the ref, the same externally-observable
// contract `git stash` offers.
func (g *Guard) applyStash(repo *git.Repository, wt *git.Worktree) (map[string]any, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("gitguard: head: %w", err)
	}
	priorHash := head.Hash()

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, fmt.Errorf("gitguard: add: %w", err)
	}
	snapshotHash, err := wt.Commit("flowctl: stash snapshot", &git.CommitOptions{Author: g.signature()})
	if err != nil {
		return nil, fmt.Errorf("gitguard: stash snapshot commit: %w", err)
	}

	refName := plumbing.ReferenceName(fmt.Sprintf("refs/flowctl-stash/%d", time.Now().UnixNano()))
	ref := plumbing.NewHashReference(refName, snapshotHash)
	if err := repo.Storer.SetReference(ref); err != nil {
		return nil, fmt.Errorf("gitguard: set stash ref: %w", err)
	}

	if err := wt.Reset(&git.ResetOptions{Commit: priorHash, Mode: git.HardReset}); err != nil {
		return nil, fmt.Errorf("gitguard: reset to prior head: %w", err)
	}
	return map[string]any{"strategy": "stash", "stashRef": refName.String(), "snapshotCommit": snapshotHash.String()}, nil
}

// applyBranch checks out a new branch from the current HEAD, carrying the
// dirty working tree over ("branch" strategy: park the work aside rather
// than on the original branch).
func (g *Guard) applyBranch(wt *git.Worktree) (map[string]any, error) {
	name := fmt.Sprintf("flowctl/worktree-guard-%d", time.Now().Unix())
	branchRef := plumbing.NewBranchReferenceName(name)
	if err := wt.Checkout(&git.CheckoutOptions{Branch: branchRef, Create: true, Keep: true}); err != nil {
		return nil, fmt.Errorf("gitguard: checkout new branch %s: %w", name, err)
	}
	return map[string]any{"strategy": "branch", "branch": name}, nil
}
