// Package config holds grid node configuration: listen address, logging,
// and the scheduler's thread counts.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for a grid node.
type Config struct {
	Addr      string `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json

	PartitionCount                int `yaml:"partition_count"`
	PartitionOperationThreadCount int `yaml:"partition_operation_thread_count"`
	GenericOperationThreadCount   int `yaml:"generic_operation_thread_count"`

	// DBPath is the directory holding the demo persistent KV handlers'
	// SQLite files, one partition-<p>.db per partition. Empty disables
	// persistence (handlers fall back to an in-memory map).
	DBPath string `yaml:"db_path"`
}

// DefaultConfig returns sensible defaults. PartitionOperationThreadCount
// and GenericOperationThreadCount are left at zero so opsched.Config.resolve
// can apply its own runtime.NumCPU-based defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		LogLevel:       "info",
		LogFormat:      "text",
		PartitionCount: 271,
	}
}

// Load reads a YAML config file at path, applying its values on top of
// DefaultConfig. A missing path is not an error: callers pass an empty
// path to mean "no config file, use defaults plus flags".
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
