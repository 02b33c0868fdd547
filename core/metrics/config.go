package metrics

import "github.com/JamesWheadon/Carbon-Intensity/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// PrometheusAddr is where /metrics is served. Empty disables the server.
	PrometheusAddr string `json:"prometheus_addr" yaml:"prometheus_addr"`
}
