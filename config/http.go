package config

import "fmt"

// HTTPConfig defines the API server.
type HTTPConfig struct {
	Address                string `json:"address"`
	ReadTimeoutSeconds     int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `json:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds"`
	// Token guards /decisions and /savings when set.
	Token string `json:"token"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8000"
	}
	if c.ReadTimeoutSeconds <= 0 {
		c.ReadTimeoutSeconds = 10
	}
	if c.WriteTimeoutSeconds <= 0 {
		// training a bucket on demand happens inside the request
		c.WriteTimeoutSeconds = 120
	}
	if c.ShutdownTimeoutSeconds <= 0 {
		c.ShutdownTimeoutSeconds = 5
	}
}

func (c HTTPConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("http address is required")
	}
	return nil
}
