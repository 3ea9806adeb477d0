package configio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/flowctl/flowctl/pkg/model"
)

var (
	schemaOnce sync.Once
	compiled   *jsonschema.Schema
	schemaErr  error
)

const schemaResourceURL = "https://github.com/flowctl/flowctl/schemas/configuration.json"

// compiledSchema lazily reflects+compiles the Configuration JSON Schema
// exactly once per process, since reflection and compilation are both
// pure functions of the Go types.
func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := GenerateConfigurationJSONSchema()
		if err != nil {
			schemaErr = err
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			schemaErr = fmt.Errorf("configio: decode generated schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaResourceURL, doc); err != nil {
			schemaErr = fmt.Errorf("configio: add schema resource: %w", err)
			return
		}
		sch, err := c.Compile(schemaResourceURL)
		if err != nil {
			schemaErr = fmt.Errorf("configio: compile schema: %w", err)
			return
		}
		compiled = sch
	})
	return compiled, schemaErr
}

// validateSemantic runs the generated JSON Schema over cfg's JSON
// projection (santhosh-tekuri/jsonschema/v6), mirroring the semantic
// phase of gert's 3-phase pipeline but driven off a reflected schema
// instead of hand-coded field checks.
func validateSemantic(cfg *model.Configuration) []*ValidationError {
	sch, err := compiledSchema()
	if err != nil {
		return []*ValidationError{errorf("semantic", "", "schema unavailable: %s", err)}
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return []*ValidationError{errorf("semantic", "", "marshal configuration: %s", err)}
	}
	var doc any
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&doc); err != nil {
		return []*ValidationError{errorf("semantic", "", "decode configuration: %s", err)}
	}

	if err := sch.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errorsAsValidation(err, &ve) {
			return flattenValidationError(ve)
		}
		return []*ValidationError{errorf("semantic", "", "%s", err)}
	}
	return nil
}

// errorsAsValidation is a tiny errors.As wrapper kept local so this file's
// only jsonschema dependency is the package import above.
func errorsAsValidation(err error, target **jsonschema.ValidationError) bool {
	for err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			*target = ve
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func flattenValidationError(ve *jsonschema.ValidationError) []*ValidationError {
	var out []*ValidationError
	var walk func(v *jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			path := ""
			if len(v.InstanceLocation) > 0 {
				path = "/" + joinPath(v.InstanceLocation)
			}
			out = append(out, errorf("semantic", path, "%s", v.Error()))
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}

func joinPath(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "/"
		}
		out += p
	}
	return out
}
