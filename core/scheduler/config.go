package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// Config holds the learning parameters and the forecast shape.
type Config struct {
	Alpha        float64 `json:"alpha" yaml:"alpha"`
	Gamma        float64 `json:"gamma" yaml:"gamma"`
	Epsilon      float64 `json:"epsilon" yaml:"epsilon"`
	EpsilonMin   float64 `json:"epsilon_min" yaml:"epsilon_min"`
	EpsilonDecay float64 `json:"epsilon_decay" yaml:"epsilon_decay"`
	Episodes     int     `json:"episodes" yaml:"episodes"`
	CoarseSlots  int     `json:"coarse_slots" yaml:"coarse_slots"`
	// ResetEpsilon restores Epsilon at the start of every Train call instead
	// of carrying the decayed value over from the previous bucket.
	ResetEpsilon bool `json:"reset_epsilon" yaml:"reset_epsilon"`
	// Seed fixes the exploration sequence. Zero seeds from the clock.
	Seed int64 `json:"seed" yaml:"seed"`
}

// MinEpisodes is the lowest accepted episode count.
const MinEpisodes = 500

// DefaultConfig returns the standard learning parameters.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Alpha == 0 {
		c.Alpha = 0.1
	}
	if c.Gamma == 0 {
		c.Gamma = 0.2
	}
	if c.Epsilon == 0 {
		c.Epsilon = 1.0
	}
	if c.EpsilonMin == 0 {
		c.EpsilonMin = 0.01
	}
	if c.EpsilonDecay == 0 {
		c.EpsilonDecay = 0.995
	}
	if c.Episodes == 0 {
		c.Episodes = MinEpisodes
	}
	if c.CoarseSlots == 0 {
		c.CoarseSlots = model.DefaultCoarseSlots
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.Alpha <= 0 || c.Alpha > 1 {
		return errors.New("alpha must be in (0,1]")
	}
	if c.Gamma < 0 || c.Gamma >= 1 {
		return errors.New("gamma must be in [0,1)")
	}
	if c.Epsilon < 0 || c.Epsilon > 1 {
		return errors.New("epsilon must be in [0,1]")
	}
	if c.EpsilonMin < 0 || c.EpsilonMin > c.Epsilon {
		return errors.New("epsilon_min must be in [0,epsilon]")
	}
	if c.EpsilonDecay <= 0 || c.EpsilonDecay > 1 {
		return errors.New("epsilon_decay must be in (0,1]")
	}
	if c.Episodes < MinEpisodes {
		return fmt.Errorf("episodes must be at least %d", MinEpisodes)
	}
	largest := int(model.Buckets[len(model.Buckets)-1])
	if c.FineSlots() <= largest {
		return fmt.Errorf("coarse_slots must cover more than %d fine slots", largest)
	}
	return nil
}

// FineSlots returns the number of 15 minute slots in one forecast.
func (c Config) FineSlots() int { return c.CoarseSlots * model.FinePerCoarse }

// LoadConfig loads a Config from a JSON or YAML file and applies defaults.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "yaml", "yml", "json":
	default:
		return Config{}, fmt.Errorf("unsupported config format: .%s", ext)
	}
	return DecodeConfig(f, ext)
}

// DecodeConfig reads a Config from r, applies defaults and validates it.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported format: %s", format)
	}
	cfg.SetDefaults()
	return cfg, cfg.Validate()
}
