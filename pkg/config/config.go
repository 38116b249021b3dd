// Package config provides configuration loading and management for growcut.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Backend names accepted in Compute.Backend
const (
	BackendParallel   = "parallel"
	BackendSequential = "sequential"
)

// Filter holds the per-run parameters shared by the propagation and threshold filters
type Filter struct {
	// OversamplingFactor is the sub-voxel sampling density per axis used by thresholding
	OversamplingFactor int `yaml:"oversamplingFactor"`

	// MinThreshold and MaxThreshold bound the accepted intensity band
	MinThreshold float64 `yaml:"minThreshold"`
	MaxThreshold float64 `yaml:"maxThreshold"`

	// IterationCount is the number of passes including initialization
	IterationCount int `yaml:"iterationCount"`
}

// Validate reports every problem with the filter parameters at once
func (f Filter) Validate() error {
	var err error
	if f.IterationCount < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: iterationCount %d is negative", ErrInvalidConfig, f.IterationCount))
	}
	if f.OversamplingFactor <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: oversamplingFactor %d must be positive", ErrInvalidConfig, f.OversamplingFactor))
	}
	if f.MinThreshold > f.MaxThreshold {
		err = multierr.Append(err, fmt.Errorf("%w: minThreshold %g exceeds maxThreshold %g", ErrInvalidConfig, f.MinThreshold, f.MaxThreshold))
	}
	return err
}

// Config represents the application configuration loaded from YAML
type Config struct {
	Filter Filter `yaml:"filter"`

	// Compute parameters
	Compute struct {
		// Backend selects the grid compute implementation ("parallel" or "sequential")
		Backend string `yaml:"backend"`

		// Workers is the number of goroutines used by the parallel backend
		Workers int `yaml:"workers"`

		// MaxVoxels caps the total number of voxels the backend may hold allocated
		MaxVoxels int `yaml:"maxVoxels"`
	} `yaml:"compute"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// LogLevel is a zap level name (debug, info, warn, error)
		LogLevel string `yaml:"logLevel"`

		// SlicesDir, when set, receives PNG slices of the outputs
		SlicesDir string `yaml:"slicesDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Filter.OversamplingFactor = 6
	cfg.Filter.MinThreshold = 10
	cfg.Filter.MaxThreshold = 100
	cfg.Filter.IterationCount = 50

	cfg.Compute.Backend = BackendParallel
	cfg.Compute.Workers = runtime.NumCPU()
	cfg.Compute.MaxVoxels = 512 << 20

	cfg.Output.Verbose = true
	cfg.Output.LogLevel = "info"

	return cfg
}

// Validate checks the whole configuration and returns all violations combined
func (c *Config) Validate() error {
	err := c.Filter.Validate()

	switch c.Compute.Backend {
	case BackendParallel, BackendSequential:
	default:
		err = multierr.Append(err, fmt.Errorf("%w: unknown compute backend %q", ErrInvalidConfig, c.Compute.Backend))
	}
	if c.Compute.Workers < 1 {
		err = multierr.Append(err, fmt.Errorf("%w: workers %d must be at least 1", ErrInvalidConfig, c.Compute.Workers))
	}
	if c.Compute.MaxVoxels < 1 {
		err = multierr.Append(err, fmt.Errorf("%w: maxVoxels %d must be at least 1", ErrInvalidConfig, c.Compute.MaxVoxels))
	}

	return err
}

// LoadConfig loads configuration from a YAML file and validates it.
// If the file doesn't exist, it returns the default configuration.
// Callers that change fields afterwards must call Validate again.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile writes the default configuration to configPath.
// An existing file is left untouched and reported as an error.
func CreateDefaultConfigFile(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file %s already exists", configPath)
	}
	return SaveConfig(DefaultConfig(), configPath)
}
