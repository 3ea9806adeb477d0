package command

import (
	"context"
	"testing"
)

func TestRunCapturesStdoutAndExitCode(t *testing.T) {
	r := NewRunner()
	res, err := r.Run(context.Background(), Invocation{
		Run: "echo hello", Shell: true, CaptureStdout: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Success || res.ExitCode != 0 {
		t.Fatalf("got success=%v exitCode=%d, want true,0", res.Success, res.ExitCode)
	}
	if got := res.Stdout; got != "hello\n" {
		t.Fatalf("stdout = %q, want %q", got, "hello\n")
	}
}

func TestRunNonZeroExit(t *testing.T) {
	r := NewRunner()
	res, err := r.Run(context.Background(), Invocation{Run: "exit 3", Shell: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Success || res.ExitCode != 3 {
		t.Fatalf("got success=%v exitCode=%d, want false,3", res.Success, res.ExitCode)
	}
}

func TestWarnAfterMsZeroTriggersImmediately(t *testing.T) {
	zero := 0
	r := NewRunner()
	res, err := r.Run(context.Background(), Invocation{Run: "echo hi", Shell: true, WarnAfterMs: &zero})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// A zero WarnAfterMs fires the warning before the command starts, so
	// even an instant command is marked long-running.
	if !res.LongRunning {
		t.Fatalf("LongRunning = false, want true for WarnAfterMs=0")
	}
}

func TestParseIntegrationTimings(t *testing.T) {
	timings := parseIntegrationTimings("build ok\n[integration][timing]{\"stage\":\"build\",\"ms\":120}\ndone\n")
	if len(timings) != 1 {
		t.Fatalf("got %d timings, want 1", len(timings))
	}
	if timings[0].Data["stage"] != "build" {
		t.Fatalf("stage = %v, want build", timings[0].Data["stage"])
	}
}
