package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"mabletask/funnel/pipeline"
)

// PolicyFile is the YAML shape of a pipeline policy override. Fields left out
// of the file keep the value they had before the file was applied.
type PolicyFile struct {
	MaxSessionMinutes     *float64 `yaml:"max_session_minutes"`
	PlaceholderSessionIDs []string `yaml:"placeholder_session_ids"`
	BatchSize             *int     `yaml:"batch_size"`
	Workers               *int     `yaml:"workers"`
}

// LoadPolicyFile reads path and applies it on top of base.
func LoadPolicyFile(path string, base pipeline.Policy) (pipeline.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading policy file: %w", err)
	}
	return ParsePolicy(data, base)
}

// ParsePolicy applies a YAML policy document on top of base.
func ParsePolicy(data []byte, base pipeline.Policy) (pipeline.Policy, error) {
	var f PolicyFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return base, fmt.Errorf("parsing policy file: %w", err)
	}

	p := base
	if f.MaxSessionMinutes != nil {
		p.MaxSessionMinutes = *f.MaxSessionMinutes
	}
	if f.PlaceholderSessionIDs != nil {
		p.PlaceholderSessionIDs = f.PlaceholderSessionIDs
	}
	if f.BatchSize != nil {
		p.BatchSize = *f.BatchSize
	}
	if f.Workers != nil {
		p.Workers = *f.Workers
	}
	return p, nil
}
