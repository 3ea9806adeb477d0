package configio

import (
	"fmt"

	"github.com/flowctl/flowctl/pkg/errs"
	"github.com/flowctl/flowctl/pkg/model"
)

// ValidationError represents one error or warning from the 3-phase
// pipeline, mirroring gert's validate.ValidationError shape exactly
// (Phase/Path/Message/Severity) so CLI rendering stays familiar.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s at %s", e.Phase, e.Message, e.Path)
	}
	return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
}

func errorf(phase, path, msg string, args ...any) *ValidationError {
	return &ValidationError{Phase: phase, Path: path, Message: fmt.Sprintf(msg, args...), Severity: "error"}
}

func warningf(phase, path, msg string, args ...any) *ValidationError {
	return &ValidationError{Phase: phase, Path: path, Message: fmt.Sprintf(msg, args...), Severity: "warning"}
}

// HasErrors reports whether any entry is an error (as opposed to warning).
func HasErrors(errList []*ValidationError) bool {
	for _, e := range errList {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// ValidateFile runs the full 3-phase pipeline on a Configuration file.
func ValidateFile(path string) (*model.Configuration, []*ValidationError) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{errorf("structural", "", "failed to load: %s", err)}
	}
	return cfg, ValidateConfiguration(cfg)
}

// ValidateConfiguration runs phases 2+3 (semantic + domain) on an
// already-loaded Configuration.
func ValidateConfiguration(cfg *model.Configuration) []*ValidationError {
	var out []*ValidationError
	out = append(out, validateSemantic(cfg)...)
	if HasErrors(out) {
		return out
	}
	out = append(out, validateDomain(cfg)...)
	return out
}

// AsConfigError collapses a non-empty error set into a single
// errs.KindConfig error for callers (the compiler/executor) that want a
// single Go error rather than a validation report.
func AsConfigError(errList []*ValidationError) error {
	if !HasErrors(errList) {
		return nil
	}
	detail := fmt.Sprintf("%d configuration error(s)", countErrors(errList))
	var first *ValidationError
	for _, e := range errList {
		if e.Severity == "error" {
			first = e
			break
		}
	}
	if first != nil {
		return errs.New(errs.KindConfig, fmt.Sprintf("%s: %s", detail, first.Error()))
	}
	return errs.New(errs.KindConfig, detail)
}

func countErrors(errList []*ValidationError) int {
	n := 0
	for _, e := range errList {
		if e.Severity == "error" {
			n++
		}
	}
	return n
}
