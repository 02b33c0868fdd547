package scheduler

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/JamesWheadon/Carbon-Intensity/core/logger"
	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// Trainable trains value tables for a duration bucket.
type Trainable interface {
	Train(b model.DurationBucket) (TrainingStats, error)
}

// Queryable answers best start time queries.
type Queryable interface {
	BestActionFor(current time.Time, b model.DurationBucket, end *time.Time) (time.Time, bool, error)
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithRand injects the random source used for exploration.
func WithRand(r *rand.Rand) Option {
	return func(s *Scheduler) { s.rng = r }
}

// Scheduler owns one forecast, the value table and the set of buckets trained
// against that forecast.
type Scheduler struct {
	cfg     Config
	log     logger.Logger
	rng     *rand.Rand
	table   *Table
	trainer *Trainer

	env     *Environment
	anchor  time.Time
	trained map[model.DurationBucket]struct{}
}

// New validates cfg and allocates the value table.
func New(cfg Config, opts ...Option) (*Scheduler, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	s := &Scheduler{
		cfg:     cfg,
		log:     logger.Nop{},
		table:   NewTable(cfg.FineSlots()),
		trained: make(map[model.DurationBucket]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		s.rng = rand.New(rand.NewSource(seed))
	}
	s.trainer = NewTrainer(cfg, s.rng)
	return s, nil
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// Table exposes the value table.
func (s *Scheduler) Table() *Table { return s.table }

// SetIntensities installs a forecast and forgets every trained bucket. The
// value table keeps its contents. The series must hold exactly
// Config.CoarseSlots values.
func (s *Scheduler) SetIntensities(in model.Intensities) error {
	if err := in.Validate(s.cfg.CoarseSlots); err != nil {
		return &ValidationError{Msg: err.Error()}
	}
	s.env = NewEnvironment(in.Values)
	s.anchor = in.Date
	clear(s.trained)
	s.log.Infof("forecast installed for %s", model.FormatTimestamp(in.Date))
	return nil
}

// Intensities returns the loaded forecast.
func (s *Scheduler) Intensities() (model.Intensities, bool) {
	if s.env == nil {
		return model.Intensities{}, false
	}
	return model.Intensities{Values: s.env.Intensities(), Date: s.anchor}, true
}

// Loaded reports whether a forecast is installed.
func (s *Scheduler) Loaded() bool { return s.env != nil }

// ClearData drops the forecast and the trained set.
func (s *Scheduler) ClearData() {
	s.env = nil
	s.anchor = time.Time{}
	clear(s.trained)
	s.log.Infof("forecast cleared")
}

// Train runs Q-learning for b against the loaded forecast and marks b as
// trained.
func (s *Scheduler) Train(b model.DurationBucket) (TrainingStats, error) {
	if s.env == nil {
		return TrainingStats{}, ErrNoIntensities
	}
	stats, err := s.trainer.Train(s.env, s.table, b)
	if err != nil {
		return stats, fmt.Errorf("train %s: %w", b, err)
	}
	s.trained[b] = struct{}{}
	s.log.Debugw("duration trained", map[string]any{
		"bucket":   int(b),
		"episodes": stats.Episodes,
		"epsilon":  stats.FinalEpsilon,
		"elapsed":  stats.Elapsed.String(),
	})
	return stats, nil
}

// IsTrained reports whether b is usable for queries.
func (s *Scheduler) IsTrained(b model.DurationBucket) bool {
	_, ok := s.trained[b]
	return ok
}

// Trained lists the trained buckets in ascending order.
func (s *Scheduler) Trained() []model.DurationBucket {
	out := make([]model.DurationBucket, 0, len(s.trained))
	for b := range s.trained {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LoadAndTrain installs in and trains each bucket in order. It stops at the
// first training failure and returns the stats gathered so far.
func (s *Scheduler) LoadAndTrain(in model.Intensities, buckets []model.DurationBucket) ([]TrainingStats, error) {
	if err := s.SetIntensities(in); err != nil {
		return nil, err
	}
	stats := make([]TrainingStats, 0, len(buckets))
	for _, b := range buckets {
		st, err := s.Train(b)
		if err != nil {
			return stats, err
		}
		stats = append(stats, st)
	}
	return stats, nil
}
