package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
	"github.com/JamesWheadon/Carbon-Intensity/core/scheduler"
)

// ForecastDef describes a forecast compactly: Values is repeated to fill
// Slots and Overrides then replaces individual coarse slots.
type ForecastDef struct {
	Date      string      `yaml:"date"`
	Values    []int       `yaml:"values"`
	Slots     int         `yaml:"slots,omitempty"`
	Overrides map[int]int `yaml:"overrides,omitempty"`
}

// ToModel expands the definition.
func (f ForecastDef) ToModel() (model.Intensities, error) {
	date, err := model.ParseTimestamp(f.Date)
	if err != nil {
		return model.Intensities{}, fmt.Errorf("forecast date: %w", err)
	}
	n := f.Slots
	if n == 0 {
		n = len(f.Values)
	}
	if len(f.Values) == 0 {
		return model.Intensities{}, fmt.Errorf("forecast values are required")
	}
	values := make([]int, n)
	for i := range values {
		values[i] = f.Values[i%len(f.Values)]
	}
	for i, v := range f.Overrides {
		if i < 0 || i >= n {
			return model.Intensities{}, fmt.Errorf("override slot %d out of range", i)
		}
		values[i] = v
	}
	return model.Intensities{Values: values, Date: date}, nil
}

// QueryDef is one charge time request and what it must produce.
type QueryDef struct {
	Current  string `yaml:"current"`
	End      string `yaml:"end,omitempty"`
	Duration int    `yaml:"duration"`
	// Outcome is one of found, no_data, untrained, no_forecast or invalid.
	Outcome string `yaml:"outcome"`
	// Earliest and Latest bound the returned start when found.
	Earliest   string `yaml:"earliest,omitempty"`
	Latest     string `yaml:"latest,omitempty"`
	ChargeTime string `yaml:"charge_time,omitempty"`
}

type Expected struct {
	// Trained lists the buckets that must be trained after the run.
	Trained []int `yaml:"trained"`
}

type Scenario struct {
	Name           string           `yaml:"name"`
	Description    string           `yaml:"description,omitempty"`
	Seed           int64            `yaml:"seed"`
	Scheduler      scheduler.Config `yaml:"scheduler,omitempty"`
	TrainOnDemand  bool             `yaml:"train_on_demand,omitempty"`
	Forecast       *ForecastDef     `yaml:"forecast,omitempty"`
	TrainDurations []int            `yaml:"train_durations"`
	Queries        []QueryDef       `yaml:"queries"`
	Expected       Expected         `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func parseOptional(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := model.ParseTimestamp(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
