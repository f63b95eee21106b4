package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vitwit/checkout/api"
)

// Overrides lets a caller substitute endpoints and contract addresses from a
// file, for isolated testing of the routing logic against local services.
type Overrides struct {
	Endpoints api.Endpoints     `yaml:"endpoints"`
	Contracts map[string]string `yaml:"contracts"`
}

// LoadOverridesFile reads an overrides YAML file from disk.
func LoadOverridesFile(path string) (*Overrides, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open overrides: %w", err)
	}

	var o Overrides
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}
	if o.Contracts == nil {
		o.Contracts = map[string]string{}
	}
	return &o, nil
}
