// Package config loads the chordcut run configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RunConfig holds optional run parameters loaded from a JSON file. Fields
// omitted from the file retain their defaults through the Get* accessors, so
// partial configs are safe. CLI flags override config values.
type RunConfig struct {
	Threshold *float64 `json:"threshold,omitempty"`
	Workers   *int     `json:"workers,omitempty"`
	SaveMasks *bool    `json:"save_masks,omitempty"`
	Verbosity *int     `json:"verbosity,omitempty"`
	// ChordName is the name of the cord structure in the source structure
	// set; recorded with the run for traceability.
	ChordName *string `json:"chord_name,omitempty"`
	// DatabasePath is where run records are persisted. Empty disables
	// persistence.
	DatabasePath *string `json:"database_path,omitempty"`
}

// EmptyRunConfig returns a RunConfig with all fields unset.
func EmptyRunConfig() *RunConfig {
	return &RunConfig{}
}

// LoadRunConfig loads a RunConfig from a JSON file. The file must have a
// .json extension and stay under the size cap.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRunConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *RunConfig) Validate() error {
	if c.Threshold != nil {
		if *c.Threshold <= 0 || *c.Threshold >= 1 {
			return fmt.Errorf("threshold must be strictly between 0 and 1, got %g", *c.Threshold)
		}
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.Verbosity != nil && (*c.Verbosity < 0 || *c.Verbosity > 2) {
		return fmt.Errorf("verbosity must be 0, 1 or 2, got %d", *c.Verbosity)
	}
	return nil
}

// GetThreshold returns the threshold value or the default.
func (c *RunConfig) GetThreshold() float64 {
	if c.Threshold == nil {
		return 0.02 // default
	}
	return *c.Threshold
}

// GetWorkers returns the workers value or 0, meaning one per CPU.
func (c *RunConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetSaveMasks returns the save_masks value or the default.
func (c *RunConfig) GetSaveMasks() bool {
	if c.SaveMasks == nil {
		return false
	}
	return *c.SaveMasks
}

// GetVerbosity returns the verbosity value or the default.
func (c *RunConfig) GetVerbosity() int {
	if c.Verbosity == nil {
		return 0
	}
	return *c.Verbosity
}

// GetChordName returns the chord structure name or the default.
func (c *RunConfig) GetChordName() string {
	if c.ChordName == nil {
		return "Moelle" // default name in the source structure sets
	}
	return *c.ChordName
}

// GetDatabasePath returns the database path or empty (persistence disabled).
func (c *RunConfig) GetDatabasePath() string {
	if c.DatabasePath == nil {
		return ""
	}
	return *c.DatabasePath
}
