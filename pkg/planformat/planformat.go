// Package planformat renders a compiler.Plan for human consumption: a
// plain-text terminal report, a flat NDJSON event stream, or raw
// structured JSON (spec.md §6 "External Interfaces" — `flowctl plan`'s
// three output modes). Grounded on gert's pkg/tui/markdown.go (glamour
// terminal rendering, used here only by RenderMarkdown) and
// pkg/diagram/diagram.go (go-runewidth column
// alignment for the env-diff table), retargeted from runbook diagrams to
// Plan artefacts.
package planformat

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"

	"github.com/flowctl/flowctl/pkg/compiler"
)

// Format selects one of the three `flowctl plan` renderings.
type Format string

const (
	FormatText    Format = "text"
	FormatNDJSON  Format = "ndjson"
	FormatJSON    Format = "json"
)

// Write renders plan to w in the requested format.
func Write(w io.Writer, plan *compiler.Plan, format Format) error {
	switch format {
	case FormatNDJSON:
		return writeNDJSON(w, plan)
	case FormatJSON:
		return writeJSON(w, plan)
	default:
		return writeText(w, plan)
	}
}

func writeJSON(w io.Writer, plan *compiler.Plan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}

// ndjsonEvent is one line of the NDJSON stream: a header event followed by
// one event per planned step, mirroring gert's trace.jsonl shape (one
// self-describing record per line, a `type` discriminator, everything else
// type-specific) but scoped to plan events rather than run events.
type ndjsonEvent struct {
	Type   string `json:"type"`
	Flow   string `json:"flow,omitempty"`
	Index  int    `json:"index,omitempty"`
	*compiler.StepPlan
}

func writeNDJSON(w io.Writer, plan *compiler.Plan) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(struct {
		Type               string                    `json:"type"`
		ScenarioID         string                    `json:"scenarioId"`
		Mode               string                    `json:"mode"`
		Overrides          []compiler.OverrideEntry `json:"overrides,omitempty"`
		Warnings           []string                  `json:"warnings,omitempty"`
		PendingPromptCount int                       `json:"pendingPromptCount"`
	}{
		Type:               "plan-header",
		ScenarioID:         plan.ScenarioID,
		Mode:               plan.Mode,
		Overrides:          plan.Overrides,
		Warnings:           plan.Warnings,
		PendingPromptCount: plan.PendingPromptCount,
	}); err != nil {
		return err
	}
	for _, fp := range plan.Flows {
		for i, sp := range fp.Steps {
			step := sp
			if err := enc.Encode(ndjsonEvent{Type: "step", Flow: fp.FlowID, Index: i, StepPlan: &step}); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeText(w io.Writer, plan *compiler.Plan) error {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	renderer, _ := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(0))

	fmt.Fprintf(bw, "%s\n", heading(fmt.Sprintf("Plan: %s (%s)", plan.ScenarioID, plan.Mode)))
	if len(plan.Overrides) > 0 {
		fmt.Fprintln(bw, "Overrides:")
		for _, ov := range plan.Overrides {
			fmt.Fprintf(bw, "  %s = %v  (%s)\n", ov.Key, ov.Value, ov.Source)
		}
	}
	if plan.PendingPromptCount > 0 {
		fmt.Fprintf(bw, "Pending prompts: %d\n", plan.PendingPromptCount)
	}
	for _, warn := range plan.Warnings {
		fmt.Fprintf(bw, "warning: %s\n", warn)
	}
	fmt.Fprintln(bw)

	for _, fp := range plan.Flows {
		fmt.Fprintf(bw, "flow %s\n", fp.FlowID)
		for _, sp := range fp.Steps {
			writeStepText(bw, renderer, sp)
		}
		fmt.Fprintln(bw)
	}
	return nil
}

func writeStepText(bw *bufio.Writer, renderer *glamour.TermRenderer, sp compiler.StepPlan) {
	marker := "-"
	if sp.Pending {
		marker = "?"
	}
	label := sp.Label
	if label == "" {
		label = sp.ID
	}
	fmt.Fprintf(bw, "  %s [%s] %s\n", marker, sp.Type, label)
	if sp.Pending && sp.Reason != "" {
		fmt.Fprintf(bw, "      pending: %s\n", sp.Reason)
	}
	if sp.BranchTarget != "" {
		fmt.Fprintf(bw, "      -> %s\n", sp.BranchTarget)
	}
	if sp.IterationCount != nil {
		fmt.Fprintf(bw, "      iterations: %d\n", *sp.IterationCount)
	}
	for _, cmd := range sp.Commands {
		writeCommandText(bw, renderer, cmd)
	}
}

func writeCommandText(bw *bufio.Writer, renderer *glamour.TermRenderer, cmd compiler.CommandPlan) {
	cwd := ""
	if cmd.Cwd != "" {
		cwd = " (cwd: " + cmd.Cwd + ")"
	}
	fmt.Fprintf(bw, "      $ %s%s\n", cmd.Run, cwd)
	if len(cmd.EnvDiff) == 0 {
		return
	}
	keyWidth := 0
	for _, e := range cmd.EnvDiff {
		if w := runewidth.StringWidth(e.Key); w > keyWidth {
			keyWidth = w
		}
	}
	for _, e := range cmd.EnvDiff {
		pad := strings.Repeat(" ", keyWidth-runewidth.StringWidth(e.Key))
		changed := ""
		if e.Previous != nil && *e.Previous != e.Value {
			changed = fmt.Sprintf(" (was %q from an earlier layer)", *e.Previous)
		}
		fmt.Fprintf(bw, "        %s%s = %q  [%s]%s\n", e.Key, pad, e.Value, e.Source, changed)
	}
	_ = renderer
}

// RenderMarkdown renders a message-step body as styled terminal markdown,
// falling back to the raw input if glamour can't render it.
func RenderMarkdown(md string) string {
	if strings.TrimSpace(md) == "" {
		return md
	}
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(0))
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func heading(s string) string {
	return "== " + s + " =="
}
