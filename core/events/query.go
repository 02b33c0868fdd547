package events

import (
	"time"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// Query outcomes.
const (
	OutcomeFound      = "found"
	OutcomeNoData     = "no_data"
	OutcomeUntrained  = "untrained"
	OutcomeNoForecast = "no_forecast"
	OutcomeInvalid    = "invalid"
)

// DurationTrained is published after a bucket is trained.
type DurationTrained struct {
	Bucket   model.DurationBucket
	Episodes int
	Epsilon  float64
	Elapsed  time.Duration
	At       time.Time
}

// ChargeTimeAnswered is published for every charge time query.
type ChargeTimeAnswered struct {
	Bucket     model.DurationBucket
	Current    time.Time
	ChargeTime time.Time
	Outcome    string
	Saving     float64
	Latency    time.Duration
	At         time.Time
}
