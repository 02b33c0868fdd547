// Package events defines the scheduler events emitted on the event bus.
//
// Available event types:
//   - ForecastLoaded: a forecast was installed from an HTTP, MQTT, poller or snapshot source
//   - ForecastCleared: the forecast and trained set were dropped
//   - DurationTrained: a duration bucket finished training
//   - ChargeTimeAnswered: a charge time query completed, with its outcome
package events
