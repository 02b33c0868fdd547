package nationalgrid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JamesWheadon/Carbon-Intensity/config"
	"github.com/JamesWheadon/Carbon-Intensity/core/forecast"
	"github.com/JamesWheadon/Carbon-Intensity/core/model"
	"github.com/JamesWheadon/Carbon-Intensity/core/scheduler"
)

type fakeRefresher struct {
	calls   int
	fails   int
	err     error
	buckets []model.DurationBucket
	source  string
}

func (f *fakeRefresher) Refresh(_ context.Context, _ forecast.Provider, source string, buckets []model.DurationBucket) (bool, error) {
	f.calls++
	f.source = source
	f.buckets = buckets
	if f.calls <= f.fails {
		return false, f.err
	}
	return true, nil
}

var noProvider = forecast.ProviderFunc(func(context.Context, time.Time) (model.Intensities, error) {
	return model.Intensities{}, nil
})

func TestPollRetriesTransientErrors(t *testing.T) {
	r := &fakeRefresher{fails: 1, err: errors.New("timeout")}
	p := NewPoller(config.ForecastConfig{MaxRetries: 2, TrainDurations: []int{30, 95}}, r, noProvider, nil)
	p.Poll(context.Background())
	if r.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", r.calls)
	}
	if r.source != "poller" {
		t.Fatalf("source %q", r.source)
	}
	if len(r.buckets) != 2 || r.buckets[0] != 2 || r.buckets[1] != 6 {
		t.Fatalf("buckets %v", r.buckets)
	}
}

func TestPollStopsOnValidationError(t *testing.T) {
	r := &fakeRefresher{fails: 5, err: &scheduler.ValidationError{Msg: "bad forecast"}}
	p := NewPoller(config.ForecastConfig{MaxRetries: 3}, r, noProvider, nil)
	p.Poll(context.Background())
	if r.calls != 1 {
		t.Fatalf("expected a single call, got %d", r.calls)
	}
}

func TestPollerStartStopsWithContext(t *testing.T) {
	r := &fakeRefresher{}
	p := NewPoller(config.ForecastConfig{PollIntervalSeconds: 3600}, r, noProvider, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("poller did not stop")
	}
	if r.calls != 1 {
		t.Fatalf("expected the initial poll, got %d calls", r.calls)
	}
}
