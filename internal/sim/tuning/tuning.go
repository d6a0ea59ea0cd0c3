// Package tuning loads generation parameters from YAML.
package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"landmass.dev/internal/sim/params"
)

//go:embed params.schema.json
var schemaJSON []byte

const schemaURL = "params.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Load reads a YAML parameter file. Keys that are absent keep their default
// value.
func Load(path string) (params.Parameters, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return params.Parameters{}, err
	}
	p, err := Parse(raw)
	if err != nil {
		return params.Parameters{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse checks raw against the embedded schema, overlays it on
// params.Defaults and validates the result.
func Parse(raw []byte) (params.Parameters, error) {
	if err := validateSchema(raw); err != nil {
		return params.Parameters{}, err
	}

	doc := params.ToDocument(params.Defaults())
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return params.Parameters{}, fmt.Errorf("%w: %v", params.ErrInvalid, err)
	}
	p, err := doc.Parameters()
	if err != nil {
		return params.Parameters{}, err
	}
	if err := p.Validate(); err != nil {
		return params.Parameters{}, err
	}
	return p, nil
}

func validateSchema(raw []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("%w: %v", params.ErrInvalid, err)
	}
	if tree == nil {
		tree = map[string]any{}
	}
	// Round-trip through JSON so the validator sees json.Number values.
	b, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("%w: %v", params.ErrInvalid, err)
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %v", params.ErrInvalid, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", params.ErrInvalid, err)
	}
	return nil
}

// Encode renders p as YAML in the same layout Load accepts.
func Encode(p params.Parameters) ([]byte, error) {
	return yaml.Marshal(params.ToDocument(p))
}
