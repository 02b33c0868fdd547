// Package forecast defines how carbon intensity forecasts reach the scheduler
// from outside the process.
package forecast

import (
	"context"
	"errors"
	"time"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// ErrNotFound is returned by a SnapshotStore holding no forecast.
var ErrNotFound = errors.New("forecast snapshot not found")

// Provider fetches the forecast for the UTC day starting at day.
type Provider interface {
	Fetch(ctx context.Context, day time.Time) (model.Intensities, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, day time.Time) (model.Intensities, error)

// Fetch calls f.
func (f ProviderFunc) Fetch(ctx context.Context, day time.Time) (model.Intensities, error) {
	return f(ctx, day)
}

// SnapshotStore keeps the last installed forecast across restarts.
type SnapshotStore interface {
	Save(ctx context.Context, in model.Intensities) error
	// Load returns ErrNotFound when nothing is stored.
	Load(ctx context.Context) (model.Intensities, error)
	Delete(ctx context.Context) error
}

// StartOfDay aligns t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Stale reports whether a forecast must be fetched at now: nothing is loaded
// or the loaded anchor precedes the current UTC day.
func Stale(in model.Intensities, loaded bool, now time.Time) bool {
	if !loaded {
		return true
	}
	return in.Date.Before(StartOfDay(now))
}
