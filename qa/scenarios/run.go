package scenarios

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JamesWheadon/Carbon-Intensity/core/advisor"
	"github.com/JamesWheadon/Carbon-Intensity/core/events"
	"github.com/JamesWheadon/Carbon-Intensity/core/model"
	"github.com/JamesWheadon/Carbon-Intensity/core/scheduler"
	"github.com/JamesWheadon/Carbon-Intensity/infra/metrics"
	"github.com/JamesWheadon/Carbon-Intensity/internal/eventbus"
)

func RunScenario(t *testing.T, sc *Scenario) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	bus := eventbus.NewTypedSize[eventbus.Event](len(sc.Queries) + len(sc.TrainDurations) + 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := metrics.StartEventCollector(ctx, bus, sink)

	cfg := sc.Scheduler
	cfg.SetDefaults()
	s, err := scheduler.New(cfg, scheduler.WithRand(rand.New(rand.NewSource(sc.Seed))))
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	adv := advisor.New(scheduler.NewSynchronized(s),
		advisor.WithBus(bus),
		advisor.WithTrainOnDemand(sc.TrainOnDemand),
	)

	if sc.Forecast != nil {
		in, err := sc.Forecast.ToModel()
		if err != nil {
			t.Fatalf("forecast: %v", err)
		}
		buckets := make([]model.DurationBucket, 0, len(sc.TrainDurations))
		for _, m := range sc.TrainDurations {
			buckets = append(buckets, model.BucketForMinutes(m))
		}
		if _, err := adv.LoadAndTrain(ctx, in, events.SourceSnapshot, buckets); err != nil {
			t.Fatalf("load and train: %v", err)
		}
	}

	for i, q := range sc.Queries {
		if err := runQuery(ctx, adv, q); err != nil {
			t.Errorf("scenario %s query %d: %v", sc.Name, i, err)
		}
	}
	for _, m := range sc.Expected.Trained {
		if !adv.Scheduler().IsTrained(model.BucketForMinutes(m)) {
			t.Errorf("scenario %s expected %d minutes to be trained", sc.Name, m)
		}
	}

	bus.Close()
	<-done
	cancel()
	if got := queriesRecorded(t, reg); got != len(sc.Queries) {
		t.Errorf("scenario %s recorded %d queries, want %d", sc.Name, got, len(sc.Queries))
	}
}

func queriesRecorded(t *testing.T, reg *prometheus.Registry) int {
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	total := 0.0
	for _, f := range families {
		if f.GetName() != "scheduler_queries_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return int(total)
}

func runQuery(ctx context.Context, adv *advisor.Advisor, q QueryDef) error {
	current, err := model.ParseTimestamp(q.Current)
	if err != nil {
		return fmt.Errorf("current: %w", err)
	}
	end, err := parseOptional(q.End)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	ans, err := adv.ChargeTime(ctx, advisor.Request{Current: current, End: end, DurationMinutes: q.Duration})
	got := advisor.Outcome(ans, err)
	if got != q.Outcome {
		return fmt.Errorf("expected outcome %s, got %s (err %v)", q.Outcome, got, err)
	}
	if !ans.Found {
		return nil
	}
	if q.ChargeTime != "" && model.FormatTimestamp(ans.ChargeTime) != q.ChargeTime {
		return fmt.Errorf("expected charge time %s, got %s", q.ChargeTime, model.FormatTimestamp(ans.ChargeTime))
	}
	if lo, err := parseOptional(q.Earliest); err != nil {
		return fmt.Errorf("earliest: %w", err)
	} else if lo != nil && ans.ChargeTime.Before(*lo) {
		return fmt.Errorf("charge time %s before %s", model.FormatTimestamp(ans.ChargeTime), q.Earliest)
	}
	if hi, err := parseOptional(q.Latest); err != nil {
		return fmt.Errorf("latest: %w", err)
	} else if hi != nil && ans.ChargeTime.After(*hi) {
		return fmt.Errorf("charge time %s after %s", model.FormatTimestamp(ans.ChargeTime), q.Latest)
	}
	return nil
}
