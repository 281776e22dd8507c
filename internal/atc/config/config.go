// Package config loads the optional atc.yaml project file that supplies
// defaults for flags left unset on the command line.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors atc.yaml. Zero values mean "not configured".
type Config struct {
	BaseDir string `yaml:"base_dir"`
	DepFile string `yaml:"dep_file"`
	Package string `yaml:"package"`
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}
