package events

import "time"

// Forecast sources.
const (
	SourceHTTP     = "http"
	SourceMQTT     = "mqtt"
	SourcePoller   = "poller"
	SourceSnapshot = "snapshot"
	SourceCLI      = "cli"
)

// ForecastLoaded is published after a forecast replaces the previous one.
type ForecastLoaded struct {
	Date   time.Time
	Values []int
	Source string
	At     time.Time
}

// ForecastCleared is published when the forecast is discarded.
type ForecastCleared struct {
	At time.Time
}
