// Package infra contains the adapters behind the scheduler core: forecast
// feeds, snapshot and KPI storage, and metrics exporters. They depend only on
// interfaces defined in the core packages.
package infra
