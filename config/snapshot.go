package config

import "fmt"

// SnapshotConfig selects where the installed forecast survives restarts.
type SnapshotConfig struct {
	// Backend is "none", "memory" or "redis".
	Backend       string `json:"backend"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	Key           string `json:"key"`
	TTLHours      int    `json:"ttl_hours"`
}

func (c *SnapshotConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "none"
	}
	if c.Backend == "redis" && c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.TTLHours <= 0 {
		c.TTLHours = 48
	}
}

func (c SnapshotConfig) Validate() error {
	switch c.Backend {
	case "none", "memory", "redis":
		return nil
	default:
		return fmt.Errorf("unknown snapshot backend %s", c.Backend)
	}
}
