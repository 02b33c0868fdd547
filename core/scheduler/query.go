package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// BestActionFor returns the recommended start for a task of bucket b that may
// begin at current and must finish by end, when given. ok is false when the
// window holds no admissible slot.
func (s *Scheduler) BestActionFor(current time.Time, b model.DurationBucket, end *time.Time) (time.Time, bool, error) {
	if !b.Valid() {
		return time.Time{}, false, validationf(fmt.Sprintf("unsupported duration bucket %d", b))
	}
	if end != nil && end.Before(current.Add(b.Duration())) {
		return time.Time{}, false, validationf("End must be after current plus duration")
	}
	if s.env == nil {
		return time.Time{}, false, ErrNoIntensities
	}
	if !s.IsTrained(b) {
		return time.Time{}, false, ErrUntrainedDuration
	}
	earliest, latest, ok := s.window(current, b, end)
	if !ok {
		return time.Time{}, false, nil
	}
	slot, ok := s.table.ArgMax(b, earliest, earliest, latest)
	if !ok {
		return time.Time{}, false, nil
	}
	return s.SlotTime(slot), true, nil
}

// window converts the request into the half-open slot range [earliest, latest).
func (s *Scheduler) window(current time.Time, b model.DurationBucket, end *time.Time) (int, int, bool) {
	last := s.env.Len() - b.Slots()
	earliest := int(math.Ceil(s.minutesFromAnchor(current) / 15))
	if earliest < 0 || earliest >= last {
		return 0, 0, false
	}
	latest := last
	if end != nil {
		latest = min(int(math.Floor(s.minutesFromAnchor(*end)/15))-b.Slots(), last)
	}
	return earliest, latest, true
}

// minutesFromAnchor floors the offset of t from the anchor to whole minutes.
func (s *Scheduler) minutesFromAnchor(t time.Time) float64 {
	return math.Floor(t.Sub(s.anchor).Seconds() / 60)
}

// SlotTime returns the start time of a fine slot.
func (s *Scheduler) SlotTime(slot int) time.Time {
	return s.anchor.Add(time.Duration(slot) * model.FineSlot)
}

// SlotAt returns the fine slot containing t, or false outside the forecast.
func (s *Scheduler) SlotAt(t time.Time) (int, bool) {
	if s.env == nil {
		return 0, false
	}
	slot := int(math.Floor(t.Sub(s.anchor).Minutes() / 15))
	if slot < 0 || slot >= s.env.Len() {
		return 0, false
	}
	return slot, true
}
