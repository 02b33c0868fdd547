package decisionlog

import (
	"context"
	"fmt"
	"time"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// Record is one answered charge time query.
type Record struct {
	Timestamp       time.Time            `json:"timestamp"`
	Current         time.Time            `json:"current"`
	End             *time.Time           `json:"end,omitempty"`
	DurationMinutes int                  `json:"duration_minutes"`
	Bucket          model.DurationBucket `json:"bucket"`
	ChargeTime      *time.Time           `json:"charge_time,omitempty"`
	Outcome         string               `json:"outcome"`
	Saving          float64              `json:"saving"`
	ForecastDate    time.Time            `json:"forecast_date"`
	Error           string               `json:"error,omitempty"`
}

// Query filters records. Zero fields match everything.
type Query struct {
	Start   time.Time
	End     time.Time
	Bucket  model.DurationBucket
	Outcome string
}

// Matches reports whether r satisfies q.
func (q Query) Matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Bucket != 0 && r.Bucket != q.Bucket {
		return false
	}
	if q.Outcome != "" && r.Outcome != q.Outcome {
		return false
	}
	return true
}

// Store persists records.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Options selects and configures a Store backend.
type Options struct {
	// Backend is "memory", "jsonl" or "sqlite".
	Backend string
	Path    string
	// MaxSizeMB enables rotation of the jsonl backend when positive.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Open creates the Store described by opts.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "jsonl":
		if opts.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(opts.Path, opts.MaxSizeMB, opts.MaxBackups, opts.MaxAgeDays)
		}
		return NewJSONLStore(opts.Path)
	case "sqlite":
		return NewSQLiteStore(opts.Path)
	default:
		return nil, fmt.Errorf("unknown decision log backend %q", opts.Backend)
	}
}
