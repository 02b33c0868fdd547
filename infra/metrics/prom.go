package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JamesWheadon/Carbon-Intensity/core/events"
	coremetrics "github.com/JamesWheadon/Carbon-Intensity/core/metrics"
	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// PromSink records scheduler activity in Prometheus metrics.
type PromSink struct {
	queries  *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	saving   *prometheus.HistogramVec
	training *prometheus.CounterVec
	trainDur *prometheus.HistogramVec
	epsilon  prometheus.Gauge
	loaded   prometheus.Gauge
	mean     prometheus.Gauge
}

// NewPromSink registers scheduler metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.queries, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_queries_total",
		Help: "Charge time queries by duration bucket and outcome",
	}, []string{"duration", "outcome"})); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_query_latency_seconds",
		Help:    "Time spent answering a charge time query",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"duration"})); err != nil {
		return nil, err
	}
	if s.saving, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_intensity_saving",
		Help:    "Mean gCO2/kWh avoided per slot by following the recommendation",
		Buckets: []float64{0, 5, 10, 20, 40, 80, 160},
	}, []string{"duration"})); err != nil {
		return nil, err
	}
	if s.training, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_trainings_total",
		Help: "Completed training runs by duration bucket",
	}, []string{"duration"})); err != nil {
		return nil, err
	}
	if s.trainDur, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_training_seconds",
		Help:    "Wall time of a training run",
		Buckets: prometheus.DefBuckets,
	}, []string{"duration"})); err != nil {
		return nil, err
	}
	if s.epsilon, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_epsilon",
		Help: "Exploration rate after the last training run",
	})); err != nil {
		return nil, err
	}
	if s.loaded, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_forecast_loaded",
		Help: "1 when a forecast is installed",
	})); err != nil {
		return nil, err
	}
	if s.mean, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_forecast_mean_intensity",
		Help: "Mean intensity of the installed forecast",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func bucketLabel(b model.DurationBucket) string { return strconv.Itoa(b.Minutes()) }

// RecordChargeTime counts the query and observes latency and saving.
func (s *PromSink) RecordChargeTime(ev coremetrics.ChargeTimeEvent) error {
	label := bucketLabel(ev.Bucket)
	s.queries.WithLabelValues(label, ev.Outcome).Inc()
	s.latency.WithLabelValues(label).Observe(ev.Latency.Seconds())
	if ev.Outcome == events.OutcomeFound {
		s.saving.WithLabelValues(label).Observe(ev.Saving)
	}
	return nil
}

// RecordTraining counts the run and tracks the exploration rate.
func (s *PromSink) RecordTraining(ev coremetrics.TrainingEvent) error {
	label := bucketLabel(ev.Bucket)
	s.training.WithLabelValues(label).Inc()
	s.trainDur.WithLabelValues(label).Observe(ev.Elapsed.Seconds())
	s.epsilon.Set(ev.Epsilon)
	return nil
}

// RecordForecast updates the forecast gauges.
func (s *PromSink) RecordForecast(ev coremetrics.ForecastEvent) error {
	if !ev.Loaded {
		s.loaded.Set(0)
		s.mean.Set(0)
		return nil
	}
	s.loaded.Set(1)
	s.mean.Set(meanIntensity(ev.Values))
	return nil
}

func meanIntensity(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
