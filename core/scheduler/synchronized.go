package scheduler

import (
	"sync"
	"time"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// Service is the full set of scheduler operations used by transports.
type Service interface {
	Trainable
	Queryable
	SetIntensities(in model.Intensities) error
	Intensities() (model.Intensities, bool)
	ClearData()
	Trained() []model.DurationBucket
	IsTrained(b model.DurationBucket) bool
	Saving(current, start time.Time, b model.DurationBucket) (float64, error)
	Plan(b model.DurationBucket) (Plan, error)
	LoadAndTrain(in model.Intensities, buckets []model.DurationBucket) ([]TrainingStats, error)
}

// Synchronized serialises every call to the wrapped Scheduler. Training holds
// the lock for its full run so queries never see a half trained bucket.
type Synchronized struct {
	mu sync.Mutex
	s  *Scheduler
}

var (
	_ Service = (*Scheduler)(nil)
	_ Service = (*Synchronized)(nil)
)

// NewSynchronized wraps s.
func NewSynchronized(s *Scheduler) *Synchronized {
	return &Synchronized{s: s}
}

// Config returns the scheduler configuration.
func (c *Synchronized) Config() Config { return c.s.Config() }

func (c *Synchronized) SetIntensities(in model.Intensities) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.SetIntensities(in)
}

func (c *Synchronized) Intensities() (model.Intensities, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Intensities()
}

func (c *Synchronized) ClearData() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.ClearData()
}

func (c *Synchronized) Train(b model.DurationBucket) (TrainingStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Train(b)
}

func (c *Synchronized) BestActionFor(current time.Time, b model.DurationBucket, end *time.Time) (time.Time, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.BestActionFor(current, b, end)
}

func (c *Synchronized) Trained() []model.DurationBucket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Trained()
}

func (c *Synchronized) IsTrained(b model.DurationBucket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.IsTrained(b)
}

func (c *Synchronized) Saving(current, start time.Time, b model.DurationBucket) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Saving(current, start, b)
}

func (c *Synchronized) Plan(b model.DurationBucket) (Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Plan(b)
}

// LoadAndTrain installs in and trains buckets in one critical section.
func (c *Synchronized) LoadAndTrain(in model.Intensities, buckets []model.DurationBucket) ([]TrainingStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.LoadAndTrain(in, buckets)
}
