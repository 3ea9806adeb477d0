package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/flowctl/flowctl/pkg/configio"
	"github.com/flowctl/flowctl/pkg/errs"
	"github.com/flowctl/flowctl/pkg/executor"
	"github.com/flowctl/flowctl/pkg/model"
)

// exitCodeFor maps an engine error Kind to a process exit code (spec.md
// §7), falling back to 1 for anything not Kind-tagged.
func exitCodeFor(err error) int {
	kind, ok := errs.KindOf(err)
	if !ok {
		return 1
	}
	switch kind {
	case errs.KindConfig, errs.KindValidation, errs.KindParse:
		return 2
	case errs.KindPolicyBlocked, errs.KindPolicyMissing:
		return 3
	case errs.KindPromptCancelled, errs.KindNonInteractive, errs.KindCollectMode:
		return 4
	case errs.KindCommandExecution:
		return 5
	case errs.KindCheckpoint:
		return 6
	default:
		return 1
	}
}

// loadAndValidate loads configPath and runs the full 3-phase validation
// pipeline, printing warnings to stderr and returning a Kind-tagged error
// on any validation failure.
func loadAndValidate(configPath string) (*model.Configuration, error) {
	cfg, valErrs := configio.ValidateFile(configPath)
	for _, e := range valErrs {
		if e.Severity == "warning" {
			fmt.Fprintf(os.Stderr, "warning: [%s] %s", e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, " (at %s)", e.Path)
			}
			fmt.Fprintln(os.Stderr)
		}
	}
	if configio.HasErrors(valErrs) {
		for _, e := range valErrs {
			if e.Severity == "error" {
				fmt.Fprintln(os.Stderr, "error:", e.Error())
			}
		}
		return nil, configio.AsConfigError(valErrs)
	}
	return cfg, nil
}

// parseOverrides parses `--var key=value` flags into executor override
// values sourced "cli".
func parseOverrides(vars []string) (map[string]executor.OverrideValue, error) {
	out := make(map[string]executor.OverrideValue, len(vars))
	for _, v := range vars {
		k, val, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --var %q: expected key=value", v)
		}
		out[k] = executor.OverrideValue{Value: val, Source: "cli"}
	}
	return out, nil
}

// processEnv snapshots os.Environ() into a map, the same shape
// executor.Context.Env expects (spec.md §4.6 env layering).
func processEnv() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out[k] = v
		}
	}
	return out
}

func repoRootOrWD(flag string) string {
	if flag != "" {
		return flag
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
