// Package config holds server configuration, layered the way the teacher
// layers CLI flags over environment over defaults: DefaultServerConfig
// establishes the baseline, LoadFile overlays a YAML file, and callers
// overlay flags last.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the atomsched server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	DBPath          string        `yaml:"db_path"`
	NumWorkers      int           `yaml:"num_workers"`
	MaxQueueSize    int           `yaml:"max_queue_size"`
	TaskTimeout     time.Duration `yaml:"task_timeout"`
	Retention       time.Duration `yaml:"retention"`
	EnableProfiling bool          `yaml:"enable_profiling"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		LogLevel:        "info",
		LogFormat:       "text",
		NumWorkers:      4,
		MaxQueueSize:    1024,
		TaskTimeout:     30 * time.Second,
		Retention:       5 * time.Minute,
		EnableProfiling: false,
	}
}

// LoadFile overlays YAML-provided fields in path onto cfg, leaving fields
// absent from the file untouched. A missing path is not an error — config
// files are optional, flags and defaults suffice on their own.
func LoadFile(cfg ServerConfig, path string) (ServerConfig, error) {
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
