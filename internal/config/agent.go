package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Agent represents ~/.fieldops/config.toml on a technician device.
type Agent struct {
	// APIURL is the backend base URL including the /api prefix.
	APIURL string `toml:"api_url"`
	// ProbeIntervalSeconds is how often connectivity is checked. 0 uses the
	// monitor default.
	ProbeIntervalSeconds int `toml:"probe_interval_seconds"`
}

// LoadAgent reads agent config from the given path. Returns error if file missing.
func LoadAgent(path string) (*Agent, error) {
	var cfg Agent
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveAgent writes agent config to the given path, creating parent dirs as needed.
func SaveAgent(path string, cfg *Agent) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
