package config

import (
	"fmt"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// AuthConfig holds OAuth2 client credentials for a forecast provider behind
// an authenticating gateway. Empty ClientID disables authentication.
type AuthConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenURL     string `json:"token_url"`
}

// ForecastConfig defines the upstream forecast poller.
type ForecastConfig struct {
	Enabled             bool       `json:"enabled"`
	BaseURL             string     `json:"base_url"`
	TimeoutSeconds      int        `json:"timeout_seconds"`
	PollIntervalSeconds int        `json:"poll_interval_seconds"`
	MaxRetries          int        `json:"max_retries"`
	Auth                AuthConfig `json:"auth"`
	// TrainDurations lists the task lengths in minutes trained whenever a
	// forecast is fetched or restored.
	TrainDurations []int `json:"train_durations"`
	// TrainOnDemand trains an untrained duration on its first query instead
	// of answering "Duration has not been trained".
	TrainOnDemand bool `json:"train_on_demand"`
}

// SetDefaults applies sane defaults.
func (c *ForecastConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.carbonintensity.org.uk"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = 300
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if len(c.TrainDurations) == 0 {
		c.TrainDurations = []int{30, 60, 120}
	}
}

// Validate checks the durations and the credential set.
func (c ForecastConfig) Validate() error {
	for _, m := range c.TrainDurations {
		if m <= 0 {
			return fmt.Errorf("forecast train duration %d must be positive", m)
		}
	}
	if c.Auth.ClientID != "" && c.Auth.TokenURL == "" {
		return fmt.Errorf("forecast auth requires token_url")
	}
	return nil
}

// Buckets snaps TrainDurations to duration buckets.
func (c ForecastConfig) Buckets() []model.DurationBucket {
	out := make([]model.DurationBucket, 0, len(c.TrainDurations))
	for _, m := range c.TrainDurations {
		out = append(out, model.BucketForMinutes(m))
	}
	return out
}
