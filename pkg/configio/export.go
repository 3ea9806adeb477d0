package configio

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/flowctl/flowctl/pkg/model"
)

// GenerateConfigurationJSONSchema reflects model.Configuration into a JSON
// Schema Draft 2020-12 document, mirroring gert's
// schema.GenerateRunbookJSONSchema. Exposed as `flowctl schema export`.
func GenerateConfigurationJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	if err := r.AddGoComments("github.com/flowctl/flowctl", "./pkg/model"); err != nil {
		// Comment extraction is best-effort; a missing source tree (e.g.
		// a vendored build) shouldn't fail schema export.
		_ = err
	}
	s := r.Reflect(&model.Configuration{})
	s.ID = "https://github.com/flowctl/flowctl/schemas/configuration.json"
	s.Title = "flowctl Configuration"
	s.Description = "Schema for flowctl scenario/flow/step configuration documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("configio: marshal configuration schema: %w", err)
	}
	return data, nil
}
