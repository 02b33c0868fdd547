// Package advisor coordinates the scheduler with the stores and the event bus.
// Every transport (HTTP, MQTT, poller, CLI) goes through an Advisor so that
// forecasts, training runs and answers are recorded the same way.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JamesWheadon/Carbon-Intensity/core/decisionlog"
	"github.com/JamesWheadon/Carbon-Intensity/core/events"
	"github.com/JamesWheadon/Carbon-Intensity/core/forecast"
	"github.com/JamesWheadon/Carbon-Intensity/core/logger"
	"github.com/JamesWheadon/Carbon-Intensity/core/model"
	"github.com/JamesWheadon/Carbon-Intensity/core/monitoring"
	"github.com/JamesWheadon/Carbon-Intensity/core/savings"
	"github.com/JamesWheadon/Carbon-Intensity/core/scheduler"
	"github.com/JamesWheadon/Carbon-Intensity/internal/eventbus"
)

// Request is a charge time query.
type Request struct {
	Current         time.Time
	End             *time.Time
	DurationMinutes int
}

// Answer is the result of a charge time query. Found is false when the
// window holds no admissible slot.
type Answer struct {
	ChargeTime time.Time
	Found      bool
	Bucket     model.DurationBucket
	Saving     float64
}

// Option customises an Advisor.
type Option func(*Advisor)

// WithBus publishes scheduler events on bus.
func WithBus(bus eventbus.EventBus) Option { return func(a *Advisor) { a.bus = bus } }

// WithDecisionLog records every answer in store.
func WithDecisionLog(store decisionlog.Store) Option {
	return func(a *Advisor) { a.decisions = store }
}

// WithSavings aggregates answers per day in store.
func WithSavings(store savings.Store) Option { return func(a *Advisor) { a.savings = store } }

// WithSnapshot persists installed forecasts in store.
func WithSnapshot(store forecast.SnapshotStore) Option {
	return func(a *Advisor) { a.snapshot = store }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(a *Advisor) { a.log = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(a *Advisor) { a.now = now } }

// WithTrainOnDemand trains an untrained bucket on first query instead of
// returning scheduler.ErrUntrainedDuration.
func WithTrainOnDemand(on bool) Option { return func(a *Advisor) { a.trainOnDemand = on } }

// Advisor answers charge time queries and manages the forecast lifecycle.
type Advisor struct {
	svc           scheduler.Service
	bus           eventbus.EventBus
	decisions     decisionlog.Store
	savings       savings.Store
	snapshot      forecast.SnapshotStore
	log           logger.Logger
	now           func() time.Time
	trainOnDemand bool
}

// New returns an Advisor backed by svc.
func New(svc scheduler.Service, opts ...Option) *Advisor {
	a := &Advisor{svc: svc, log: logger.Nop{}, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Scheduler returns the underlying scheduler service.
func (a *Advisor) Scheduler() scheduler.Service { return a.svc }

func (a *Advisor) publish(e eventbus.Event) {
	if a.bus != nil {
		a.bus.Publish(e)
	}
}

// LoadForecast installs in without training anything.
func (a *Advisor) LoadForecast(ctx context.Context, in model.Intensities, source string) error {
	if err := a.svc.SetIntensities(in); err != nil {
		return err
	}
	a.loaded(ctx, in, source)
	return nil
}

// LoadAndTrain installs in and trains buckets under a single lock.
func (a *Advisor) LoadAndTrain(ctx context.Context, in model.Intensities, source string, buckets []model.DurationBucket) ([]scheduler.TrainingStats, error) {
	stats, err := a.svc.LoadAndTrain(in, buckets)
	if err != nil && scheduler.IsValidation(err) {
		return nil, err
	}
	a.loaded(ctx, in, source)
	for _, st := range stats {
		a.trained(st)
	}
	if err != nil {
		monitoring.CaptureException(err, map[string]string{"source": source})
		return stats, err
	}
	return stats, nil
}

func (a *Advisor) loaded(ctx context.Context, in model.Intensities, source string) {
	a.log.Infof("forecast for %s loaded from %s", model.FormatTimestamp(in.Date), source)
	a.publish(events.ForecastLoaded{Date: in.Date, Values: in.Clone().Values, Source: source, At: a.now()})
	if a.snapshot == nil || source == events.SourceSnapshot {
		return
	}
	if err := a.snapshot.Save(ctx, in); err != nil {
		a.log.Warnf("forecast snapshot save failed: %v", err)
	}
}

func (a *Advisor) trained(st scheduler.TrainingStats) {
	a.publish(events.DurationTrained{
		Bucket:   st.Bucket,
		Episodes: st.Episodes,
		Epsilon:  st.FinalEpsilon,
		Elapsed:  st.Elapsed,
		At:       a.now(),
	})
}

// Forecast returns the loaded forecast.
func (a *Advisor) Forecast() (model.Intensities, bool) { return a.svc.Intensities() }

// Clear drops the forecast, its trained buckets and the snapshot.
func (a *Advisor) Clear(ctx context.Context) {
	a.svc.ClearData()
	if a.snapshot != nil {
		if err := a.snapshot.Delete(ctx); err != nil {
			a.log.Warnf("forecast snapshot delete failed: %v", err)
		}
	}
	a.publish(events.ForecastCleared{At: a.now()})
}

// Train trains the bucket closest to minutes.
func (a *Advisor) Train(_ context.Context, minutes int) (scheduler.TrainingStats, error) {
	if minutes <= 0 {
		return scheduler.TrainingStats{}, &scheduler.ValidationError{Msg: "duration must be positive"}
	}
	st, err := a.svc.Train(model.BucketForMinutes(minutes))
	if err != nil {
		return st, err
	}
	a.trained(st)
	return st, nil
}

// ChargeTime answers req and records the outcome.
func (a *Advisor) ChargeTime(ctx context.Context, req Request) (Answer, error) {
	start := a.now()
	if req.DurationMinutes <= 0 {
		err := &scheduler.ValidationError{Msg: "duration must be positive"}
		a.record(ctx, req, 0, Answer{}, err, start)
		return Answer{}, err
	}
	b := model.BucketForMinutes(req.DurationMinutes)
	ans := Answer{Bucket: b}
	at, ok, err := a.svc.BestActionFor(req.Current, b, req.End)
	if errors.Is(err, scheduler.ErrUntrainedDuration) && a.trainOnDemand {
		a.log.Infof("training %s on demand", b)
		st, terr := a.svc.Train(b)
		if terr != nil {
			err = terr
		} else {
			a.trained(st)
			at, ok, err = a.svc.BestActionFor(req.Current, b, req.End)
		}
	}
	if err == nil && ok {
		ans.ChargeTime, ans.Found = at, true
		// The saving is undefined when current precedes the forecast.
		if s, serr := a.svc.Saving(req.Current, at, b); serr == nil {
			ans.Saving = s
		}
	}
	a.record(ctx, req, b, ans, err, start)
	return ans, err
}

// Outcome classifies a ChargeTime result for events and the decision log.
func Outcome(ans Answer, err error) string {
	switch {
	case err == nil && ans.Found:
		return events.OutcomeFound
	case err == nil:
		return events.OutcomeNoData
	case errors.Is(err, scheduler.ErrUntrainedDuration):
		return events.OutcomeUntrained
	case errors.Is(err, scheduler.ErrNoIntensities):
		return events.OutcomeNoForecast
	default:
		return events.OutcomeInvalid
	}
}

func (a *Advisor) record(ctx context.Context, req Request, b model.DurationBucket, ans Answer, err error, start time.Time) {
	now := a.now()
	oc := Outcome(ans, err)
	if err != nil && !scheduler.IsValidation(err) && oc == events.OutcomeInvalid {
		monitoring.CaptureException(err, map[string]string{"operation": "charge_time"})
	}
	a.publish(events.ChargeTimeAnswered{
		Bucket:     b,
		Current:    req.Current,
		ChargeTime: ans.ChargeTime,
		Outcome:    oc,
		Saving:     ans.Saving,
		Latency:    now.Sub(start),
		At:         now,
	})
	if a.decisions != nil {
		rec := decisionlog.Record{
			Timestamp:       now,
			Current:         req.Current,
			End:             req.End,
			DurationMinutes: req.DurationMinutes,
			Bucket:          b,
			Outcome:         oc,
			Saving:          ans.Saving,
		}
		if ans.Found {
			ct := ans.ChargeTime
			rec.ChargeTime = &ct
		}
		if in, ok := a.svc.Intensities(); ok {
			rec.ForecastDate = in.Date
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if aerr := a.decisions.Append(ctx, rec); aerr != nil {
			a.log.Warnf("decision log append failed: %v", aerr)
		}
	}
	if a.savings != nil && oc != events.OutcomeInvalid {
		if serr := a.savings.Add(savings.FromDecision(now, b, ans.Found, ans.Saving)); serr != nil {
			a.log.Warnf("savings update failed: %v", serr)
		}
	}
}

// Plan returns the day plan for the bucket closest to minutes.
func (a *Advisor) Plan(minutes int) (scheduler.Plan, error) {
	if minutes <= 0 {
		return scheduler.Plan{}, &scheduler.ValidationError{Msg: "duration must be positive"}
	}
	return a.svc.Plan(model.BucketForMinutes(minutes))
}

// Decisions lists logged answers matching q. It returns nil without a
// decision log.
func (a *Advisor) Decisions(ctx context.Context, q decisionlog.Query) ([]decisionlog.Record, error) {
	if a.decisions == nil {
		return nil, nil
	}
	return a.decisions.Query(ctx, q)
}

// Savings lists daily savings between start and end.
func (a *Advisor) Savings(start, end time.Time) ([]savings.Record, error) {
	if a.savings == nil {
		return nil, nil
	}
	return a.savings.Query(start, end)
}

// Restore reinstalls the snapshot forecast, when one exists for the current
// day, and trains buckets. It reports whether a forecast was restored.
func (a *Advisor) Restore(ctx context.Context, buckets []model.DurationBucket) (bool, error) {
	if a.snapshot == nil {
		return false, nil
	}
	in, err := a.snapshot.Load(ctx)
	if errors.Is(err, forecast.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if forecast.Stale(in, true, a.now()) {
		a.log.Infof("snapshot for %s is stale, ignoring", model.FormatTimestamp(in.Date))
		return false, nil
	}
	if _, err := a.LoadAndTrain(ctx, in, events.SourceSnapshot, buckets); err != nil {
		return false, fmt.Errorf("restore snapshot: %w", err)
	}
	return true, nil
}

// Refresh fetches and installs today's forecast from p when the loaded one is
// missing or stale. It reports whether a new forecast was installed.
func (a *Advisor) Refresh(ctx context.Context, p forecast.Provider, source string, buckets []model.DurationBucket) (bool, error) {
	in, ok := a.svc.Intensities()
	now := a.now()
	if !forecast.Stale(in, ok, now) {
		return false, nil
	}
	fresh, err := p.Fetch(ctx, forecast.StartOfDay(now))
	if err != nil {
		return false, fmt.Errorf("fetch forecast: %w", err)
	}
	if _, err := a.LoadAndTrain(ctx, fresh, source, buckets); err != nil {
		return false, err
	}
	return true, nil
}
