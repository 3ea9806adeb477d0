package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/flowctl/flowctl/pkg/errs"
	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/options"
	"github.com/flowctl/flowctl/pkg/state"
)

// dispatchIterate materialises the step's item source and runs the nested
// flow once per item, sequentially by default. When `concurrency` is set
// and no command in the nested flow declares a write-contract (so
// concurrent iterations cannot step on the same external resource), items
// run concurrently on isolated per-iteration state, merged back into the
// shared State in index order once every iteration completes (spec.md
// §4.6, §9 Open Question (b): concurrency is an optimisation hint, never a
// guarantee).
func (w *walker) dispatchIterate(ctx context.Context, flowID string, step model.Step) (string, error) {
	items, err := w.materializeIterateItems(ctx, step)
	if err != nil {
		return "", fmt.Errorf("iterate %q: %w", step.ID, err)
	}

	if step.Concurrency < 2 || w.nestedFlowHasWrites(step.NestedFlow) {
		for idx, item := range items {
			if err := w.runIterateItemInline(ctx, flowID, step, idx, item); err != nil {
				return "", fmt.Errorf("iterate %q: item %d: %w", step.ID, idx, err)
			}
		}
		return step.Next, nil
	}

	baseline := make(map[string]int, len(w.st.AutoActionCounts))
	for k, v := range w.st.AutoActionCounts {
		baseline[k] = v
	}

	type outcome struct {
		idx   int
		child *state.State
		err   error
	}
	p := pool.NewWithResults[outcome]().WithContext(ctx).WithMaxGoroutines(step.Concurrency)
	for idx, item := range items {
		idx, item := idx, item
		p.Go(func(gctx context.Context) (outcome, error) {
			child, err := w.runIterateItemIsolated(gctx, flowID, step, idx, item)
			return outcome{idx: idx, child: child, err: err}, nil
		})
	}
	results, _ := p.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].idx < results[j].idx })

	for _, r := range results {
		if r.err != nil {
			return "", fmt.Errorf("iterate %q: item %d: %w", step.ID, r.idx, r.err)
		}
		w.mergeIsolatedState(r.child, baseline)
	}
	return step.Next, nil
}

// runIterateItemInline runs one item's nested flow directly against the
// shared state (the sequential / default path).
func (w *walker) runIterateItemInline(ctx context.Context, flowID string, step model.Step, idx int, item any) error {
	if step.StoreEachAs != "" {
		w.st.Answers[step.StoreEachAs] = item
	}
	w.st.Iteration = item
	defer func() {
		if step.StoreEachAs != "" {
			delete(w.st.Answers, step.StoreEachAs)
		}
		w.st.Iteration = nil
	}()
	return w.runFlow(ctx, step.NestedFlow)
}

// runIterateItemIsolated runs one item's nested flow against a private
// clone of State, so concurrent goroutines never touch shared mutable
// fields; the clone is merged back by the caller once every iteration
// finishes, in index order.
func (w *walker) runIterateItemIsolated(ctx context.Context, flowID string, step model.Step, idx int, item any) (*state.State, error) {
	child := cloneStateForIteration(w.st, item, step.StoreEachAs)
	childWalker := &walker{ectx: w.ectx, st: child}
	err := childWalker.runFlow(ctx, step.NestedFlow)
	return child, err
}

func cloneStateForIteration(base *state.State, item any, storeEachAs string) *state.State {
	answers := make(map[string]any, len(base.Answers)+1)
	for k, v := range base.Answers {
		answers[k] = v
	}
	if storeEachAs != "" {
		answers[storeEachAs] = item
	}
	autoCounts := make(map[string]int, len(base.AutoActionCounts))
	for k, v := range base.AutoActionCounts {
		autoCounts[k] = v
	}
	return &state.State{
		Scenario:         base.Scenario,
		Answers:          answers,
		History:          []state.CommandRecord{},
		Retries:          []state.Retry{},
		SkippedSteps:     []state.Skip{},
		PolicyDecisions:  []state.PolicyDecision{},
		IntegrationTimings: []state.IntegrationTiming{},
		FlowRuns:         []state.FlowRun{},
		RunID:            base.RunID,
		Phase:            base.Phase,
		AutoActionCounts: autoCounts,
		Iteration:        item,
	}
}

// mergeIsolatedState folds one completed iteration's effects back into the
// shared state, in the caller's (index) order. baseline is the snapshot of
// AutoActionCounts taken before any iteration forked, so only each child's
// own increment over that snapshot is added back (children forked from the
// same snapshot, so their raw counts can't simply be summed or assigned).
func (w *walker) mergeIsolatedState(child *state.State, baseline map[string]int) {
	for _, rec := range child.History {
		w.st.AppendHistory(rec)
	}
	for _, r := range child.Retries {
		w.st.AppendRetry(r)
	}
	for _, s := range child.SkippedSteps {
		w.st.AppendSkip(s)
	}
	for _, d := range child.PolicyDecisions {
		w.st.AppendPolicyDecision(d)
	}
	for _, t := range child.IntegrationTimings {
		w.st.AppendIntegrationTiming(t)
	}
	w.st.FlowRuns = append(w.st.FlowRuns, child.FlowRuns...)
	for k, v := range child.AutoActionCounts {
		w.st.AutoActionCounts[k] += v - baseline[k]
	}
}

// nestedFlowHasWrites reports whether any command descriptor (or step
// defaults) among flowID's own steps declares a Writes contract hint;
// flows those steps call into are not inspected. It is a coarse, static signal
// that concurrent iterations of this flow could contend over the same
// external resource and must be serialised.
func (w *walker) nestedFlowHasWrites(flowID string) bool {
	steps, err := w.ectx.Config.LookupFlow(flowID)
	if err != nil {
		return true
	}
	for _, step := range steps {
		for _, cmd := range step.Commands {
			if len(cmd.Writes) > 0 {
				return true
			}
		}
		if step.Defaults != nil && len(step.Defaults.Writes) > 0 {
			return true
		}
	}
	return false
}

func (w *walker) materializeIterateItems(ctx context.Context, step model.Step) ([]any, error) {
	src := step.Source
	if src == nil {
		return nil, errs.New(errs.KindConfig, fmt.Sprintf("iterate %q: no source configured", step.ID))
	}
	switch src.Kind {
	case model.IterateInline:
		return src.Items, nil
	case model.IterateAnswers:
		v, ok := w.st.Answers[src.Key]
		if !ok {
			return nil, nil
		}
		return toAnySlice(v), nil
	case model.IterateDynamic:
		opts, err := options.Resolve(ctx, w.ectx.OptionSession, src.Dynamic)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(opts))
		for i, o := range opts {
			out[i] = o.Value
		}
		return out, nil
	case model.IterateJSONFile:
		data, err := os.ReadFile(src.File)
		if err != nil {
			return nil, fmt.Errorf("jsonFile source: %w", err)
		}
		var parsed any
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("jsonFile source: invalid JSON in %s: %w", src.File, err)
		}
		if src.Pointer != "" {
			parsed, err = jsonPointerLookup(parsed, src.Pointer)
			if err != nil {
				return nil, fmt.Errorf("jsonFile source: pointer %q: %w", src.Pointer, err)
			}
		}
		return toAnySlice(parsed), nil
	default:
		return nil, fmt.Errorf("iterate %q: unknown source kind %q", step.ID, src.Kind)
	}
}

func toAnySlice(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case nil:
		return nil
	default:
		return []any{x}
	}
}

// jsonPointerLookup walks an RFC-6901-style `/a/b/0` pointer over a decoded
// JSON value (map[string]any / []any).
func jsonPointerLookup(v any, pointer string) (any, error) {
	if pointer == "" || pointer == "/" {
		return v, nil
	}
	cur := v
	for _, seg := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("no such key %q", seg)
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("invalid array index %q", seg)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("cannot descend into scalar at %q", seg)
		}
	}
	return cur, nil
}
