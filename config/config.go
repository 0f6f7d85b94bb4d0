// Package config loads bridge configuration from YAML and describes it with
// a JSON schema for embedder tooling.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	gapjl "github.com/ssiccha/GAP.jl"
)

// Load parses YAML configuration bytes. Omitted fields keep their defaults;
// the result is validated before return.
func Load(data []byte) (gapjl.Config, error) {
	cfg := gapjl.DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return gapjl.Config{}, fmt.Errorf("parsing bridge config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return gapjl.Config{}, err
	}
	return cfg, nil
}

// LoadFile reads and parses a YAML configuration file.
func LoadFile(path string) (gapjl.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gapjl.Config{}, fmt.Errorf("reading bridge config: %w", err)
	}
	return Load(data)
}

// Schema generates a JSON Schema (Draft 2020-12) describing the bridge
// configuration, for editors and validation pipelines.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&gapjl.Config{})

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling config schema: %w", err)
	}
	return jsonBytes, nil
}
