package scrub

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProviderDefinition describes an integrated API: where it lives, how it
// authenticates and which parameters it takes.
type ProviderDefinition struct {
	Name            string           `yaml:"name"`
	BaseURL         string           `yaml:"baseUrl"`
	SecuritySchemes []SecurityScheme `yaml:"securitySchemes,omitempty"`
	Parameters      []Parameter      `yaml:"parameters,omitempty"`
}

// Parameter is an integration parameter with an optional default.
type Parameter struct {
	Name    string `yaml:"name"`
	Default string `yaml:"default,omitempty"`
}

// Scheme returns the security scheme with the given id.
func (p *ProviderDefinition) Scheme(id string) (SecurityScheme, bool) {
	for _, s := range p.SecuritySchemes {
		if s.ID == id {
			return s, true
		}
	}
	return SecurityScheme{}, false
}

// LoadProvider reads a provider definition from a YAML file.
// Unknown fields are rejected.
func LoadProvider(path string) (*ProviderDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider file: %w", err)
	}
	return ParseProvider(data)
}

// ParseProvider parses a provider definition from YAML.
func ParseProvider(data []byte) (*ProviderDefinition, error) {
	var def ProviderDefinition
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateProvider(&def); err != nil {
		return nil, fmt.Errorf("invalid provider: %w", err)
	}
	return &def, nil
}

func validateProvider(def *ProviderDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("name is required")
	}

	ids := make(map[string]bool, len(def.SecuritySchemes))
	for i, s := range def.SecuritySchemes {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("securitySchemes[%d]: %w", i, err)
		}
		if ids[s.ID] {
			return fmt.Errorf("securitySchemes[%d]: duplicate id %q", i, s.ID)
		}
		ids[s.ID] = true
	}

	names := make(map[string]bool, len(def.Parameters))
	for i, p := range def.Parameters {
		if p.Name == "" {
			return fmt.Errorf("parameters[%d]: name is required", i)
		}
		if names[p.Name] {
			return fmt.Errorf("parameters[%d]: duplicate name %q", i, p.Name)
		}
		names[p.Name] = true
	}
	return nil
}
