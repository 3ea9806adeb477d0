package executor

import (
	"context"
	"fmt"

	"github.com/flowctl/flowctl/pkg/errs"
	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/state"
)

// dispatchGitGuard checks the working tree for a git-worktree-guard step
// and, when dirty, applies one of the step's configured strategies
// (commit / stash / branch / proceed), interactively chosen when more than
// one is offered (spec.md §4.1 kind 8).
func (w *walker) dispatchGitGuard(ctx context.Context, flowID string, step model.Step) (string, error) {
	if w.ectx.GitGuard == nil || step.GitGuard == nil || len(step.GitGuard.Strategies) == 0 {
		return step.Next, nil
	}
	dirty, err := w.ectx.GitGuard.IsDirty(ctx, w.ectx.RepoRoot)
	if err != nil {
		return "", fmt.Errorf("git-worktree-guard %q: %w", step.ID, err)
	}
	if !dirty {
		return step.Next, nil
	}

	strategy, err := w.chooseGitStrategy(ctx, step)
	if err != nil {
		return "", fmt.Errorf("git-worktree-guard %q: %w", step.ID, err)
	}

	result, err := w.ectx.GitGuard.Apply(ctx, w.ectx.RepoRoot, strategy)
	if err != nil {
		return "", fmt.Errorf("git-worktree-guard %q: strategy %q: %w", step.ID, strategy, err)
	}
	if key, ok := step.GitGuard.AnswerKeys[string(strategy)]; ok && key != "" {
		state.StoreAnswer(w.st.Answers, key, result, nil)
	}
	return step.Next, nil
}

func (w *walker) chooseGitStrategy(ctx context.Context, step model.Step) (model.GitStrategy, error) {
	strategies := step.GitGuard.Strategies
	if len(strategies) == 1 {
		return strategies[0], nil
	}
	if w.ectx.NonInteractive || w.ectx.PromptDriver == nil {
		return "", errs.New(errs.KindNonInteractive, fmt.Sprintf("git-worktree-guard %q: working tree is dirty and requires an interactive strategy choice", step.ID))
	}
	actions := make([]model.ErrorAction, len(strategies))
	for i, s := range strategies {
		actions[i] = model.ErrorAction{Label: string(s), Next: string(s)}
	}
	chosen, err := w.ectx.PromptDriver.ChooseAction(ctx, actions)
	if err != nil {
		return "", errs.Wrap(errs.KindPromptCancelled, fmt.Sprintf("git-worktree-guard %q: strategy selection cancelled", step.ID), err)
	}
	return model.GitStrategy(chosen), nil
}
