package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is an optional bootstrap file applied at startup: the initial admin
// account and any display-mode vocabulary beyond the built-in names. Modes
// are open enumerations, so extending the vocabulary is a seed entry, not a
// migration.
type Seed struct {
	Admin struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"admin"`
	DisplayModes struct {
		Collection   []string `yaml:"collection"`
		Relationship []string `yaml:"relationship"`
		AssetGroup   []string `yaml:"asset_group"`
	} `yaml:"display_modes"`
}

func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if seed.Admin.Username != "" && seed.Admin.Password == "" {
		return nil, fmt.Errorf("seed admin %q has empty password", seed.Admin.Username)
	}
	return &seed, nil
}
