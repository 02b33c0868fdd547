// Package metrics defines the sink interfaces used to observe the scheduler.
// Sinks like PromSink and InfluxSink in infra/metrics record answered charge
// time queries, training runs and forecast changes. Several sinks can be
// combined with NewMultiSink; NewMetricsSink does so automatically when more
// than one sink is configured.
package metrics
