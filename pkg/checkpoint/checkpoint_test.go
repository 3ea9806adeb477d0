package checkpoint

import (
	"testing"
	"time"

	"github.com/flowctl/flowctl/pkg/state"
)

func TestRecordHonoursInterval(t *testing.T) {
	dir := t.TempDir()
	m, err := Create(Options{RepoRoot: dir, ScenarioID: "deploy", Interval: 2})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s := state.New(state.ScenarioRef{ID: "deploy"}, m.RunID())

	if err := m.Record(s); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := LoadCheckpoint(dir, m.RunID()); err == nil {
		t.Fatalf("expected no checkpoint written yet (interval=2, 1 observed write)")
	}
	if err := m.Record(s); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := LoadCheckpoint(dir, m.RunID()); err != nil {
		t.Fatalf("expected checkpoint after 2 writes: %v", err)
	}
}

func TestFinalizeThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	m, err := Create(Options{RepoRoot: dir, ScenarioID: "deploy"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s := state.New(state.ScenarioRef{ID: "deploy"}, m.RunID())
	s.AppendHistory(state.CommandRecord{StepID: "echo", Success: true})

	if err := m.Finalize(s, state.StatusCompleted); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	loaded, err := LoadCheckpoint(dir, m.RunID())
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if loaded.Metadata.Status != string(state.StatusCompleted) {
		t.Fatalf("status = %q, want completed", loaded.Metadata.Status)
	}
	if len(loaded.State.History) != 1 {
		t.Fatalf("got %d history entries, want 1", len(loaded.State.History))
	}
}

func TestRetentionKeepsMostRecent(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		m, err := Create(Options{RepoRoot: dir, ScenarioID: "deploy", RunID: time.Unix(0, 0).UTC().Format("20060102-150405") + "-deploy-" + string(rune('a'+i))})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		s := state.New(state.ScenarioRef{ID: "deploy"}, m.RunID())
		if err := m.Finalize(s, state.StatusCompleted); err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		// UpdatedAt comes from the clock at each Finalize call, so the runs
		// are already ordered oldest to newest; this value is discarded.
		_ = base.Add(time.Duration(i) * time.Second)
	}
	m, err := Create(Options{RepoRoot: dir, ScenarioID: "deploy", Retention: 2})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s := state.New(state.ScenarioRef{ID: "deploy"}, m.RunID())
	if err := m.Finalize(s, state.StatusCompleted); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if _, err := LoadCheckpoint(dir, m.RunID()); err != nil {
		t.Fatalf("most recent run must survive pruning: %v", err)
	}
}
