package config

import (
	"fmt"
)

// DecisionLogConfig defines settings for charge decision storage and rotation.
type DecisionLogConfig struct {
	// Backend selects the store type: "memory", "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *DecisionLogConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" && c.Backend != "memory" {
		c.Path = "decisions.log"
	}
}

// Validate checks mandatory fields.
func (c DecisionLogConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "jsonl", "sqlite":
	default:
		return fmt.Errorf("unknown decision log backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("decision log path is required")
	}
	return nil
}
