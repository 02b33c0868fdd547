package savings

import (
	"time"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// Record aggregates recommendation outcomes for one UTC day.
type Record struct {
	Date time.Time `json:"date"`
	// Queries counts every charge time query, answered or not.
	Queries int `json:"queries"`
	// Recommended counts queries that produced a start time.
	Recommended int `json:"recommended"`
	// SlotSaving sums saving x duration slots over recommended queries, in
	// gCO2/kWh x fine slots.
	SlotSaving float64 `json:"slot_saving"`
}

// FromDecision converts one answer into a daily increment.
func FromDecision(at time.Time, b model.DurationBucket, recommended bool, saving float64) Record {
	r := Record{Date: Day(at), Queries: 1}
	if recommended {
		r.Recommended = 1
		r.SlotSaving = saving * float64(b.Slots())
	}
	return r
}

// CO2Avoided returns the grams of CO2 avoided by a load drawing powerKW that
// followed every recommendation.
func (r Record) CO2Avoided(powerKW float64) float64 {
	return r.SlotSaving * model.FineSlot.Hours() * powerKW
}

// HitRate returns the share of queries that produced a recommendation.
func (r Record) HitRate() float64 {
	if r.Queries == 0 {
		return 0
	}
	return float64(r.Recommended) / float64(r.Queries)
}
