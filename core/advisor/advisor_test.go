package advisor

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JamesWheadon/Carbon-Intensity/core/decisionlog"
	"github.com/JamesWheadon/Carbon-Intensity/core/events"
	"github.com/JamesWheadon/Carbon-Intensity/core/forecast"
	"github.com/JamesWheadon/Carbon-Intensity/core/model"
	"github.com/JamesWheadon/Carbon-Intensity/core/savings"
	"github.com/JamesWheadon/Carbon-Intensity/core/scheduler"
	"github.com/JamesWheadon/Carbon-Intensity/internal/eventbus"
)

var (
	anchor = time.Date(2024, 9, 28, 1, 0, 0, 0, time.UTC)
	now    = time.Date(2024, 9, 28, 12, 0, 0, 0, time.UTC)
)

func valley(n, low int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 300
	}
	out[low] = 10
	out[low+1] = 10
	return out
}

type fixture struct {
	adv       *Advisor
	bus       *eventbus.Bus
	sub       <-chan eventbus.Event
	decisions *decisionlog.MemoryStore
	savings   *savings.MemoryStore
	snapshot  *forecast.MemoryStore
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	s, err := scheduler.New(scheduler.DefaultConfig(), scheduler.WithRand(rand.New(rand.NewSource(7))))
	require.NoError(t, err)
	f := fixture{
		bus:       eventbus.New(),
		decisions: decisionlog.NewMemoryStore(),
		savings:   savings.NewMemoryStore(),
		snapshot:  forecast.NewMemoryStore(),
	}
	f.sub = f.bus.Subscribe()
	t.Cleanup(f.bus.Close)
	base := []Option{
		WithBus(f.bus),
		WithDecisionLog(f.decisions),
		WithSavings(f.savings),
		WithSnapshot(f.snapshot),
		WithClock(func() time.Time { return now }),
	}
	f.adv = New(scheduler.NewSynchronized(s), append(base, opts...)...)
	return f
}

func drain(ch <-chan eventbus.Event) []eventbus.Event {
	var out []eventbus.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestLoadAndTrainPublishesAndSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := model.Intensities{Values: valley(48, 30), Date: anchor}

	stats, err := f.adv.LoadAndTrain(ctx, in, events.SourceHTTP, []model.DurationBucket{2, 4})
	require.NoError(t, err)
	require.Len(t, stats, 2)

	evs := drain(f.sub)
	require.Len(t, evs, 3)
	loaded, ok := evs[0].(events.ForecastLoaded)
	require.True(t, ok)
	assert.Equal(t, events.SourceHTTP, loaded.Source)
	assert.Equal(t, anchor, loaded.Date)
	trained, ok := evs[2].(events.DurationTrained)
	require.True(t, ok)
	assert.Equal(t, model.DurationBucket(4), trained.Bucket)

	snap, err := f.snapshot.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in.Values, snap.Values)
}

func TestLoadForecastRejectsWrongLength(t *testing.T) {
	f := newFixture(t)
	err := f.adv.LoadForecast(context.Background(), model.Intensities{Values: []int{1}, Date: anchor}, events.SourceHTTP)
	require.True(t, scheduler.IsValidation(err))
	assert.Empty(t, drain(f.sub))
	_, err = f.snapshot.Load(context.Background())
	assert.ErrorIs(t, err, forecast.ErrNotFound)
}

func TestChargeTimeRecordsDecisionAndSaving(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := model.Intensities{Values: valley(48, 30), Date: anchor}
	_, err := f.adv.LoadAndTrain(ctx, in, events.SourceHTTP, []model.DurationBucket{2})
	require.NoError(t, err)
	drain(f.sub)

	current := anchor.Add(2 * time.Hour)
	ans, err := f.adv.ChargeTime(ctx, Request{Current: current, DurationMinutes: 30})
	require.NoError(t, err)
	require.True(t, ans.Found)
	assert.Equal(t, model.DurationBucket(2), ans.Bucket)
	// 16:00, 16:15 and 16:30 all cover only the low fine slots.
	assert.False(t, ans.ChargeTime.Before(anchor.Add(15*time.Hour)), ans.ChargeTime)
	assert.False(t, ans.ChargeTime.After(anchor.Add(15*time.Hour+30*time.Minute)), ans.ChargeTime)
	assert.InDelta(t, 290.0, ans.Saving, 1e-9)

	evs := drain(f.sub)
	require.Len(t, evs, 1)
	answered := evs[0].(events.ChargeTimeAnswered)
	assert.Equal(t, events.OutcomeFound, answered.Outcome)

	recs, err := f.adv.Decisions(ctx, decisionlog.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, events.OutcomeFound, recs[0].Outcome)
	require.NotNil(t, recs[0].ChargeTime)
	assert.Equal(t, ans.ChargeTime, *recs[0].ChargeTime)
	assert.Equal(t, anchor, recs[0].ForecastDate)

	days, err := f.adv.Savings(now, now)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, 1, days[0].Recommended)
	assert.InDelta(t, 580.0, days[0].SlotSaving, 1e-9)
}

func TestChargeTimeOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.adv.ChargeTime(ctx, Request{Current: anchor, DurationMinutes: 30})
	assert.ErrorIs(t, err, scheduler.ErrNoIntensities)

	require.NoError(t, f.adv.LoadForecast(ctx, model.Intensities{Values: valley(48, 30), Date: anchor}, events.SourceHTTP))
	_, err = f.adv.ChargeTime(ctx, Request{Current: anchor, DurationMinutes: 30})
	assert.ErrorIs(t, err, scheduler.ErrUntrainedDuration)

	end := anchor.Add(10 * time.Minute)
	_, err = f.adv.ChargeTime(ctx, Request{Current: anchor, End: &end, DurationMinutes: 30})
	assert.True(t, scheduler.IsValidation(err))

	_, err = f.adv.Train(ctx, 30)
	require.NoError(t, err)
	ans, err := f.adv.ChargeTime(ctx, Request{Current: anchor.Add(-time.Hour), DurationMinutes: 30})
	require.NoError(t, err)
	assert.False(t, ans.Found)

	recs, err := f.adv.Decisions(ctx, decisionlog.Query{})
	require.NoError(t, err)
	got := make([]string, 0, len(recs))
	for _, r := range recs {
		got = append(got, r.Outcome)
	}
	assert.Equal(t, []string{
		events.OutcomeNoForecast,
		events.OutcomeUntrained,
		events.OutcomeInvalid,
		events.OutcomeNoData,
	}, got)

	days, err := f.adv.Savings(now, now)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, 3, days[0].Queries)
	assert.Equal(t, 0, days[0].Recommended)
}

func TestChargeTimeTrainsOnDemand(t *testing.T) {
	f := newFixture(t, WithTrainOnDemand(true))
	ctx := context.Background()
	require.NoError(t, f.adv.LoadForecast(ctx, model.Intensities{Values: valley(48, 30), Date: anchor}, events.SourceHTTP))

	ans, err := f.adv.ChargeTime(ctx, Request{Current: anchor, DurationMinutes: 30})
	require.NoError(t, err)
	assert.True(t, ans.Found)
	assert.True(t, f.adv.Scheduler().IsTrained(2))
}

func TestClearDropsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.adv.LoadForecast(ctx, model.Intensities{Values: valley(48, 30), Date: anchor}, events.SourceHTTP))
	drain(f.sub)

	f.adv.Clear(ctx)
	_, ok := f.adv.Forecast()
	assert.False(t, ok)
	_, err := f.snapshot.Load(ctx)
	assert.ErrorIs(t, err, forecast.ErrNotFound)
	evs := drain(f.sub)
	require.Len(t, evs, 1)
	assert.IsType(t, events.ForecastCleared{}, evs[0])
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("today", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.snapshot.Save(ctx, model.Intensities{Values: valley(48, 30), Date: anchor}))
		ok, err := f.adv.Restore(ctx, []model.DurationBucket{2})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, f.adv.Scheduler().IsTrained(2))
		loaded := drain(f.sub)[0].(events.ForecastLoaded)
		assert.Equal(t, events.SourceSnapshot, loaded.Source)
	})

	t.Run("stale", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.snapshot.Save(ctx, model.Intensities{Values: valley(48, 30), Date: anchor.Add(-24 * time.Hour)}))
		ok, err := f.adv.Restore(ctx, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty", func(t *testing.T) {
		f := newFixture(t)
		ok, err := f.adv.Restore(ctx, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	calls := 0
	var day time.Time
	p := forecast.ProviderFunc(func(_ context.Context, d time.Time) (model.Intensities, error) {
		calls++
		day = d
		return model.Intensities{Values: valley(48, 10), Date: d}, nil
	})

	ok, err := f.adv.Refresh(ctx, p, events.SourcePoller, []model.DurationBucket{2})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, forecast.StartOfDay(now), day)

	ok, err = f.adv.Refresh(ctx, p, events.SourcePoller, []model.DurationBucket{2})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, calls)

	failing := forecast.ProviderFunc(func(context.Context, time.Time) (model.Intensities, error) {
		return model.Intensities{}, errors.New("upstream down")
	})
	f.adv.Clear(ctx)
	_, err = f.adv.Refresh(ctx, failing, events.SourcePoller, nil)
	assert.ErrorContains(t, err, "upstream down")
}
