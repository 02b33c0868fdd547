package scheduler

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// Saving returns the mean intensity per fine slot avoided by starting at start
// rather than at current. Both windows must fit inside the forecast.
func (s *Scheduler) Saving(current, start time.Time, b model.DurationBucket) (float64, error) {
	if s.env == nil {
		return 0, ErrNoIntensities
	}
	if !b.Valid() {
		return 0, validationf(fmt.Sprintf("unsupported duration bucket %d", b))
	}
	from, ok := s.SlotAt(current)
	if !ok {
		return 0, fmt.Errorf("%w: current %s", ErrWindowOutOfRange, model.FormatTimestamp(current))
	}
	to, ok := s.SlotAt(start)
	if !ok {
		return 0, fmt.Errorf("%w: start %s", ErrWindowOutOfRange, model.FormatTimestamp(start))
	}
	now, err := s.env.WindowIntensity(from, b.Slots())
	if err != nil {
		return 0, err
	}
	best, err := s.env.WindowIntensity(to, b.Slots())
	if err != nil {
		return 0, err
	}
	return float64(now-best) / float64(b.Slots()), nil
}

// PlanEntry is the recommendation for a task that becomes ready at From.
type PlanEntry struct {
	From      time.Time `json:"from"`
	Start     time.Time `json:"start"`
	Intensity int       `json:"intensity"`
	Saving    float64   `json:"saving"`
}

// Plan is the day of recommendations for one bucket.
type Plan struct {
	Date       time.Time            `json:"date"`
	Bucket     model.DurationBucket `json:"bucket"`
	Entries    []PlanEntry          `json:"entries"`
	MeanSaving float64              `json:"mean_saving"`
	StdSaving  float64              `json:"std_saving"`
}

// Plan lists the recommended start for every feasible ready slot of the
// loaded forecast. b must already be trained.
func (s *Scheduler) Plan(b model.DurationBucket) (Plan, error) {
	if s.env == nil {
		return Plan{}, ErrNoIntensities
	}
	if !s.IsTrained(b) {
		return Plan{}, ErrUntrainedDuration
	}
	last := s.env.Len() - b.Slots()
	p := Plan{Date: s.anchor, Bucket: b}
	savings := make([]float64, 0, last)
	for from := 0; from < last; from++ {
		slot, ok := s.table.ArgMax(b, from, from, last)
		if !ok {
			continue
		}
		intensity, err := s.env.WindowIntensity(slot, b.Slots())
		if err != nil {
			return Plan{}, err
		}
		saving, err := s.Saving(s.SlotTime(from), s.SlotTime(slot), b)
		if err != nil {
			return Plan{}, err
		}
		p.Entries = append(p.Entries, PlanEntry{
			From:      s.SlotTime(from),
			Start:     s.SlotTime(slot),
			Intensity: intensity,
			Saving:    saving,
		})
		savings = append(savings, saving)
	}
	if len(savings) > 1 {
		p.MeanSaving, p.StdSaving = stat.MeanStdDev(savings, nil)
	} else if len(savings) == 1 {
		p.MeanSaving = savings[0]
	}
	return p, nil
}
