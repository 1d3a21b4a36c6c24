// Copyright 2025 The axfor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level, unified configuration structure.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// StorageConfig selects and tunes the storage engine.
type StorageConfig struct {
	// Engine selects the backend: "memory" or "disk".
	Engine string `yaml:"engine"`
	// Path is the log file path, used only when Engine is "disk".
	Path string `yaml:"path"`
	// CompactOnOpen runs a compaction pass against the disk log
	// immediately after opening it.
	CompactOnOpen bool `yaml:"compact_on_open"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level            string   `yaml:"level"`              // default info
	Encoding         string   `yaml:"encoding"`           // default console
	OutputPaths      []string `yaml:"output_paths"`       // default ["stdout"]
	ErrorOutputPaths []string `yaml:"error_output_paths"` // default ["stderr"]
}

// MonitoringConfig configures the Prometheus metrics and health endpoints.
type MonitoringConfig struct {
	EnablePrometheus bool   `yaml:"enable_prometheus"` // true in DefaultConfig; false if omitted from a loaded file
	PrometheusAddr   string `yaml:"prometheus_addr"`   // default :9090
	HealthAddr       string `yaml:"health_addr"`       // default :9091
}

// DefaultConfig returns a configuration with recommended default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.Monitoring.EnablePrometheus = true
	return cfg
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.SetDefaults()
	cfg.OverrideFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadConfigOrDefault loads configuration from path if it exists, or
// falls back to DefaultConfig (still applying env overrides) otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if path != "" {
		cfg, err := LoadConfig(path)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := DefaultConfig()
	cfg.OverrideFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills in zero-valued fields with recommended defaults.
func (c *Config) SetDefaults() {
	if c.Storage.Engine == "" {
		c.Storage.Engine = "memory"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/kvsql.log"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = "console"
	}
	if len(c.Log.OutputPaths) == 0 {
		c.Log.OutputPaths = []string{"stdout"}
	}
	if len(c.Log.ErrorOutputPaths) == 0 {
		c.Log.ErrorOutputPaths = []string{"stderr"}
	}

	if c.Monitoring.PrometheusAddr == "" {
		c.Monitoring.PrometheusAddr = ":9090"
	}
	if c.Monitoring.HealthAddr == "" {
		c.Monitoring.HealthAddr = ":9091"
	}
}

// OverrideFromEnv overrides configuration from environment variables.
func (c *Config) OverrideFromEnv() {
	if engine := os.Getenv("KVSQL_STORAGE_ENGINE"); engine != "" {
		c.Storage.Engine = engine
	}
	if path := os.Getenv("KVSQL_STORAGE_PATH"); path != "" {
		c.Storage.Path = path
	}
	if level := os.Getenv("KVSQL_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if encoding := os.Getenv("KVSQL_LOG_ENCODING"); encoding != "" {
		c.Log.Encoding = encoding
	}
	if addr := os.Getenv("KVSQL_PROMETHEUS_ADDR"); addr != "" {
		c.Monitoring.PrometheusAddr = addr
	}
	if addr := os.Getenv("KVSQL_HEALTH_ADDR"); addr != "" {
		c.Monitoring.HealthAddr = addr
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Storage.Engine != "memory" && c.Storage.Engine != "disk" {
		return fmt.Errorf("storage.engine must be either 'memory' or 'disk'")
	}
	if c.Storage.Engine == "disk" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required when storage.engine is 'disk'")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true,
		"error": true, "dpanic": true, "panic": true, "fatal": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error, dpanic, panic, fatal")
	}
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		return fmt.Errorf("log.encoding must be either 'json' or 'console'")
	}

	return nil
}
