// Package scheduler picks low-carbon start times for deferrable loads.
//
// A day of half-hourly carbon intensity forecasts is upsampled to 15 minute
// slots and a tabular Q-learning value table is trained per duration bucket.
// Queries then read the trained row for the earliest admissible slot and
// return the best start inside the caller's window.
//
// Scheduler itself holds no locks. Wrap it with NewSynchronized when it is
// shared between goroutines.
package scheduler
