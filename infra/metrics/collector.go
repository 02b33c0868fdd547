package metrics

import (
	"context"

	"github.com/JamesWheadon/Carbon-Intensity/core/events"
	coremetrics "github.com/JamesWheadon/Carbon-Intensity/core/metrics"
	"github.com/JamesWheadon/Carbon-Intensity/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// scheduler events. It stops when the context is canceled or the bus closes.
// The returned channel is closed once the collector has exited.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev)
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) {
	switch e := ev.(type) {
	case events.ChargeTimeAnswered:
		_ = sink.RecordChargeTime(coremetrics.ChargeTimeEvent{
			Bucket:  e.Bucket,
			Outcome: e.Outcome,
			Saving:  e.Saving,
			Latency: e.Latency,
			Time:    e.At,
		})
	case events.DurationTrained:
		if r, ok := sink.(coremetrics.TrainingRecorder); ok {
			_ = r.RecordTraining(coremetrics.TrainingEvent{
				Bucket:   e.Bucket,
				Episodes: e.Episodes,
				Epsilon:  e.Epsilon,
				Elapsed:  e.Elapsed,
				Time:     e.At,
			})
		}
	case events.ForecastLoaded:
		if r, ok := sink.(coremetrics.ForecastRecorder); ok {
			_ = r.RecordForecast(coremetrics.ForecastEvent{
				Date:   e.Date,
				Values: e.Values,
				Loaded: true,
				Source: e.Source,
				Time:   e.At,
			})
		}
	case events.ForecastCleared:
		if r, ok := sink.(coremetrics.ForecastRecorder); ok {
			_ = r.RecordForecast(coremetrics.ForecastEvent{Time: e.At})
		}
	}
}
