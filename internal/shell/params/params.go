// Package params loads, validates, and hot-reloads detection parameters
// from a YAML file. Files are validated against an embedded JSON schema
// before the values reach the detector.
package params

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/detect"
)

//go:embed schema.json
var schemaJSON string

//go:embed defaults.yaml
var defaultsYAML []byte

// schema is compiled once at startup; the source is embedded, so a
// compile failure is a programming error.
var schema = func() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("params.schema.json", strings.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("params: add schema resource: %v", err))
	}
	return c.MustCompile("params.schema.json")
}()

// Load reads the params file at path, validates it against the schema,
// and returns the parsed parameters.
func Load(path string) (detect.Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return detect.Params{}, fmt.Errorf("params: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates and decodes raw YAML parameter bytes.
func Parse(data []byte) (detect.Params, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return detect.Params{}, fmt.Errorf("params: invalid YAML: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return detect.Params{}, fmt.Errorf("params: schema validation failed: %w", err)
	}

	var p detect.Params
	if err := yaml.Unmarshal(data, &p); err != nil {
		return detect.Params{}, fmt.Errorf("params: unmarshal: %w", err)
	}

	// The schema checks field ranges; Validate checks cross-field
	// consistency (high > low, max_area > min_area).
	if err := p.Validate(); err != nil {
		return detect.Params{}, err
	}
	return p, nil
}

// Defaults returns the embedded default parameters.
func Defaults() detect.Params {
	p, err := Parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("params: embedded defaults invalid: %v", err))
	}
	return p
}

// DefaultsYAML returns a copy of the embedded default params file,
// suitable for installing as an initial params file.
func DefaultsYAML() []byte {
	out := make([]byte, len(defaultsYAML))
	copy(out, defaultsYAML)
	return out
}
