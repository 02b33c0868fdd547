package metrics

import (
	"time"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// ChargeTimeEvent describes one answered charge time query.
type ChargeTimeEvent struct {
	Bucket  model.DurationBucket
	Outcome string
	Saving  float64
	Latency time.Duration
	Time    time.Time
}

// MetricsSink records scheduler activity for observability purposes.
type MetricsSink interface {
	RecordChargeTime(ev ChargeTimeEvent) error
}

// TrainingEvent describes a finished training run.
type TrainingEvent struct {
	Bucket   model.DurationBucket
	Episodes int
	Epsilon  float64
	Elapsed  time.Duration
	Time     time.Time
}

// TrainingRecorder records training runs.
type TrainingRecorder interface {
	RecordTraining(ev TrainingEvent) error
}

// ForecastEvent reports a forecast being installed or cleared. Values is
// empty when Loaded is false.
type ForecastEvent struct {
	Date   time.Time
	Values []int
	Loaded bool
	Source string
	Time   time.Time
}

// ForecastRecorder records forecast changes.
type ForecastRecorder interface {
	RecordForecast(ev ForecastEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordChargeTime(ChargeTimeEvent) error { return nil }
func (NopSink) RecordTraining(TrainingEvent) error     { return nil }
func (NopSink) RecordForecast(ForecastEvent) error     { return nil }
