package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/JamesWheadon/Carbon-Intensity/core/metrics"
	"github.com/JamesWheadon/Carbon-Intensity/core/scheduler"
	"github.com/JamesWheadon/Carbon-Intensity/infra/mqtt"
)

type Config struct {
	HTTP        HTTPConfig        `json:"http"`
	Scheduler   scheduler.Config  `json:"scheduler"`
	Forecast    ForecastConfig    `json:"forecast"`
	MQTT        mqtt.Config       `json:"mqtt"`
	Metrics     metrics.Config    `json:"metrics"`
	Snapshot    SnapshotConfig    `json:"snapshot"`
	DecisionLog DecisionLogConfig `json:"decision_log"`
	Savings     SavingsConfig     `json:"savings"`
	Sentry      SentryConfig      `json:"sentry"`
}

// Default returns a configuration with every section defaulted, as used
// when no file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults defaults every section.
func (c *Config) SetDefaults() {
	c.HTTP.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Forecast.SetDefaults()
	c.MQTT.SetDefaults()
	c.Snapshot.SetDefaults()
	c.DecisionLog.SetDefaults()
	c.Savings.SetDefaults()
}

// Validate validates every section.
func (c *Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"http", c.HTTP.Validate},
		{"scheduler", c.Scheduler.Validate},
		{"forecast", c.Forecast.Validate},
		{"mqtt", c.MQTT.Validate},
		{"snapshot", c.Snapshot.Validate},
		{"decision_log", c.DecisionLog.Validate},
		{"savings", c.Savings.Validate},
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("%s: %w", ch.name, err)
		}
	}
	return nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
