package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/multierr"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate, got: %v", err)
	}

	if cfg.Filter.IterationCount != 50 {
		t.Errorf("Expected 50 default iterations, got %d", cfg.Filter.IterationCount)
	}
	if cfg.Compute.Backend != BackendParallel {
		t.Errorf("Expected parallel backend by default, got %q", cfg.Compute.Backend)
	}
}

func TestFilterValidate(t *testing.T) {
	tests := []struct {
		name       string
		filter     Filter
		violations int
	}{
		{"valid", Filter{OversamplingFactor: 1, MinThreshold: 0, MaxThreshold: 1, IterationCount: 0}, 0},
		{"equal thresholds", Filter{OversamplingFactor: 2, MinThreshold: 5, MaxThreshold: 5, IterationCount: 3}, 0},
		{"negative iterations", Filter{OversamplingFactor: 1, IterationCount: -1}, 1},
		{"zero oversampling", Filter{OversamplingFactor: 0, IterationCount: 1}, 1},
		{"inverted thresholds", Filter{OversamplingFactor: 1, MinThreshold: 10, MaxThreshold: 1}, 1},
		{"everything wrong", Filter{OversamplingFactor: -3, MinThreshold: 2, MaxThreshold: 1, IterationCount: -5}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			errs := multierr.Errors(err)
			if len(errs) != tt.violations {
				t.Fatalf("Expected %d violations, got %d: %v", tt.violations, len(errs), err)
			}
			if tt.violations > 0 && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected error to wrap ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestConfigValidateCompute(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compute.Backend = "opengl"
	cfg.Compute.Workers = 0
	cfg.Compute.MaxVoxels = 0

	err := cfg.Validate()
	if got := len(multierr.Errors(err)); got != 3 {
		t.Fatalf("Expected 3 violations, got %d: %v", got, err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Filter.OversamplingFactor != DefaultConfig().Filter.OversamplingFactor {
		t.Errorf("Expected defaults for missing file")
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "growcut.yaml")

	cfg := DefaultConfig()
	cfg.Filter.IterationCount = 7
	cfg.Filter.MinThreshold = -20
	cfg.Compute.Backend = BackendSequential
	cfg.Output.SlicesDir = "out"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Filter != cfg.Filter {
		t.Errorf("Expected filter %+v, got %+v", cfg.Filter, loaded.Filter)
	}
	if loaded.Compute.Backend != BackendSequential {
		t.Errorf("Expected sequential backend, got %q", loaded.Compute.Backend)
	}
	if loaded.Output.SlicesDir != "out" {
		t.Errorf("Expected slicesDir out, got %q", loaded.Output.SlicesDir)
	}
}

func TestLoadConfigPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	content := "filter:\n  iterationCount: 3\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Filter.IterationCount != 3 {
		t.Errorf("Expected iterationCount 3, got %d", cfg.Filter.IterationCount)
	}
	if cfg.Filter.MaxThreshold != 100 {
		t.Errorf("Expected default maxThreshold to survive, got %g", cfg.Filter.MaxThreshold)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("filter: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("Expected parse error")
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.yaml")
	content := "filter:\n  iterationCount: -4\ncompute:\n  backend: opengl\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
	if cfg != nil {
		t.Errorf("Expected no config alongside a validation error")
	}
	if got := len(multierr.Errors(errors.Unwrap(err))); got != 2 {
		t.Errorf("Expected 2 violations, got %d: %v", got, err)
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growcut.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Filter != DefaultConfig().Filter {
		t.Errorf("Expected default filter %+v, got %+v", DefaultConfig().Filter, loaded.Filter)
	}

	if err := CreateDefaultConfigFile(path); err == nil {
		t.Errorf("Expected error when the config file already exists")
	}
}
