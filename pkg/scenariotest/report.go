package scenariotest

import (
	"fmt"
	"io"
	"path/filepath"
)

// WriteText renders an Output as the `flowctl diff` terminal report,
// grounded on gert's cmd/gert/diff.go summary line.
func WriteText(w io.Writer, out *Output) {
	fmt.Fprintf(w, "  %s\n", filepath.Base(out.ConfigFile))
	for _, s := range out.Scenarios {
		icon := "="
		if s.Status == "failed" || s.Status == "error" {
			icon = "x"
		}
		fmt.Fprintf(w, "    %s %s: %s\n", icon, s.ScenarioID, s.Status)
		for _, a := range s.Assertions {
			if a.Passed {
				continue
			}
			fmt.Fprintf(w, "        - %s\n", a.Message)
		}
		if s.Error != "" {
			fmt.Fprintf(w, "        - %s\n", s.Error)
		}
	}
	changed := out.Summary.Failed + out.Summary.Errors
	fmt.Fprintf(w, "\n  %d same, %d changed\n", out.Summary.Passed, changed)
}
