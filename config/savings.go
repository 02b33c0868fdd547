package config

import "fmt"

// SavingsConfig defines the daily savings KPI store.
type SavingsConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	Path    string `json:"path"`
	// PowerKW converts intensity savings to grams of CO2 in reports.
	PowerKW float64 `json:"power_kw"`
}

func (c *SavingsConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "savings.db"
	}
	if c.PowerKW <= 0 {
		c.PowerKW = 7
	}
}

func (c SavingsConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown savings backend %s", c.Backend)
	}
	return nil
}
