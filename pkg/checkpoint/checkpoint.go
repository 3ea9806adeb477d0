// Package checkpoint implements the Checkpoint Manager (spec.md §4.7):
// periodically writes state+metadata to a run directory and supports
// resume. Grounded on gert's pkg/runtime (resume.go, snapshot.go), with
// the on-disk layout renamed to `.reports/runs/<runId>` per spec.md.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/flowctl/flowctl/pkg/errs"
	"github.com/flowctl/flowctl/pkg/state"
)

// Metadata is the sidecar metadata.json shape (spec.md §6).
type Metadata struct {
	ID            string    `json:"id"`
	ScenarioID    string    `json:"scenarioId"`
	ScenarioLabel string    `json:"scenarioLabel,omitempty"`
	StartedAt     time.Time `json:"startedAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Status        string    `json:"status"`
	DryRun        bool      `json:"dryRun"`
	FlowCursor    string    `json:"flowCursor,omitempty"`
	StepCursor    string    `json:"stepCursor,omitempty"`
	Phase         string    `json:"phase,omitempty"`
	PostRunCursor string    `json:"postRunCursor,omitempty"`
}

// Options configures a new Manager.
type Options struct {
	RepoRoot      string
	ScenarioID    string
	ScenarioLabel string
	RunID         string // non-empty to resume an existing run
	DryRun        bool
	Interval      int // steps between checkpoints; default 1
	Retention     int // max kept runs per scenario; 0 = unlimited
}

// Manager writes state.json/metadata.json under
// <repoRoot>/.reports/runs/<runId>/.
type Manager struct {
	opts Options
	dir  string

	writesSinceCheckpoint int
	metadata              Metadata
}

var nonIdentifier = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Create builds (or resumes) a Manager, computing a runId when opts.RunID
// is empty: UTC timestamp `YYYYMMDD-HHMMSS` concatenated with the
// scenario id, non-identifier characters replaced by `-`.
func Create(opts Options) (*Manager, error) {
	if opts.Interval <= 0 {
		opts.Interval = 1
	}
	runID := opts.RunID
	if runID == "" {
		ts := time.Now().UTC().Format("20060102-150405")
		runID = ts + "-" + nonIdentifier.ReplaceAllString(opts.ScenarioID, "-")
	}
	dir := filepath.Join(opts.RepoRoot, ".reports", "runs", runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindCheckpoint, "create run directory", err)
	}
	m := &Manager{
		opts: opts,
		dir:  dir,
		metadata: Metadata{
			ID: runID, ScenarioID: opts.ScenarioID, ScenarioLabel: opts.ScenarioLabel,
			StartedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
			Status: string(state.StatusRunning), DryRun: opts.DryRun,
		},
	}
	return m, nil
}

// RunID returns the run identifier this manager writes under.
func (m *Manager) RunID() string { return m.metadata.ID }

// Dir returns the run directory.
func (m *Manager) Dir() string { return m.dir }

type recordOpts struct{ immediate bool }

// RecordOption configures a single Record call.
type RecordOption func(*recordOpts)

// Immediate forces a write regardless of the configured interval.
func Immediate() RecordOption { return func(o *recordOpts) { o.immediate = true } }

// Record writes state+metadata after `interval` observed calls, or
// immediately when Immediate() is passed.
func (m *Manager) Record(s *state.State, opts ...RecordOption) error {
	var ro recordOpts
	for _, o := range opts {
		o(&ro)
	}
	m.writesSinceCheckpoint++
	if !ro.immediate && m.writesSinceCheckpoint < m.opts.Interval {
		return nil
	}
	m.writesSinceCheckpoint = 0
	m.metadata.FlowCursor = s.Cursors.FlowCursor
	m.metadata.StepCursor = s.Cursors.StepCursor
	m.metadata.PostRunCursor = s.Cursors.PostRunCursor
	m.metadata.Phase = string(s.Phase)
	m.metadata.UpdatedAt = time.Now().UTC()
	return m.write(s)
}

// Finalize writes a final checkpoint, marks status, and prunes old runs
// for the scenario beyond retention.
func (m *Manager) Finalize(s *state.State, status state.Status) error {
	m.metadata.Status = string(status)
	m.metadata.UpdatedAt = time.Now().UTC()
	m.metadata.FlowCursor = s.Cursors.FlowCursor
	m.metadata.StepCursor = s.Cursors.StepCursor
	m.metadata.PostRunCursor = s.Cursors.PostRunCursor
	m.metadata.Phase = string(s.Phase)
	if err := m.write(s); err != nil {
		return err
	}
	return prune(m.opts.RepoRoot, m.opts.ScenarioID, m.opts.Retention)
}

func (m *Manager) write(s *state.State) error {
	data, err := state.Serialize(s)
	if err != nil {
		return errs.Wrap(errs.KindCheckpoint, "serialize state", err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, "state.json"), data, 0o644); err != nil {
		return errs.Wrap(errs.KindCheckpoint, "write state.json", err)
	}
	metaData, err := json.MarshalIndent(m.metadata, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindCheckpoint, "serialize metadata", err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, "metadata.json"), metaData, 0o644); err != nil {
		return errs.Wrap(errs.KindCheckpoint, "write metadata.json", err)
	}
	return nil
}

// Loaded is the result of LoadCheckpoint: a rehydrated state plus the
// sidecar metadata, sufficient to resume via the executor.
type Loaded struct {
	State    *state.State
	Metadata Metadata
}

// LoadCheckpoint reads the run directory identified by identifier
// (absolute, or relative to <repoRoot>/.reports/runs/) and rehydrates
// state and metadata.
func LoadCheckpoint(repoRoot, identifier string) (*Loaded, error) {
	dir := identifier
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(repoRoot, ".reports", "runs", identifier)
	}
	stateData, err := os.ReadFile(filepath.Join(dir, "state.json"))
	if err != nil {
		return nil, errs.Wrap(errs.KindCheckpoint, "read state.json", err)
	}
	s, err := state.Hydrate(stateData)
	if err != nil {
		return nil, errs.Wrap(errs.KindCheckpoint, "hydrate state", err)
	}
	metaData, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, errs.Wrap(errs.KindCheckpoint, "read metadata.json", err)
	}
	var meta Metadata
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, errs.Wrap(errs.KindCheckpoint, "parse metadata.json", err)
	}
	return &Loaded{State: s, Metadata: meta}, nil
}

// prune keeps at most `retention` runs for scenarioID under
// <repoRoot>/.reports/runs, never pruning the most recent by UpdatedAt.
func prune(repoRoot, scenarioID string, retention int) error {
	if retention <= 0 {
		return nil
	}
	root := filepath.Join(repoRoot, ".reports", "runs")
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil // nothing to prune yet
	}
	type run struct {
		dir     string
		updated time.Time
	}
	var runs []run
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		metaPath := filepath.Join(root, e.Name(), "metadata.json")
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil || meta.ScenarioID != scenarioID {
			continue
		}
		runs = append(runs, run{dir: filepath.Join(root, e.Name()), updated: meta.UpdatedAt})
	}
	if len(runs) <= retention {
		return nil
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].updated.After(runs[j].updated) })
	for _, r := range runs[retention:] {
		if err := os.RemoveAll(r.dir); err != nil {
			return fmt.Errorf("checkpoint: prune %s: %w", r.dir, err)
		}
	}
	return nil
}
