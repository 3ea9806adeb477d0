// Package configio is the thin external-boundary shim spec.md §1 leaves
// unspecified: loading a single YAML Configuration document and running
// the 3-phase validation pipeline (structural/semantic/domain) gert's
// pkg/kernel/validate uses. Discovery and merging from multiple files and
// shared libraries remain genuinely out of scope (spec.md §1) — this
// package only turns one already-located file into a validated
// model.Configuration.
package configio

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flowctl/flowctl/pkg/model"
)

// LoadFile reads and structurally decodes a Configuration YAML document.
// Unknown fields are rejected (strict decode), matching gert's
// schema.Load's KnownFields(true) convention.
func LoadFile(path string) (*model.Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("configio: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a Configuration from r.
func Load(r io.Reader) (*model.Configuration, error) {
	var cfg model.Configuration
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("configio: structural decode: %w", err)
	}
	return &cfg, nil
}
