package scheduler

import (
	"fmt"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// Environment exposes one forecast at fine resolution.
type Environment struct {
	fine []int
}

// NewEnvironment upsamples coarse values so each fills FinePerCoarse slots.
func NewEnvironment(coarse []int) *Environment {
	fine := make([]int, 0, len(coarse)*model.FinePerCoarse)
	for _, v := range coarse {
		for i := 0; i < model.FinePerCoarse; i++ {
			fine = append(fine, v)
		}
	}
	return &Environment{fine: fine}
}

// Len returns the number of fine slots.
func (e *Environment) Len() int { return len(e.fine) }

// Intensity returns the value of a single fine slot.
func (e *Environment) Intensity(slot int) int { return e.fine[slot] }

// WindowIntensity sums duration fine slots starting at start.
func (e *Environment) WindowIntensity(start, duration int) (int, error) {
	if start < 0 || duration < 0 || start+duration > len(e.fine) {
		return 0, fmt.Errorf("%w: start %d duration %d horizon %d", ErrWindowOutOfRange, start, duration, len(e.fine))
	}
	sum := 0
	for _, v := range e.fine[start : start+duration] {
		sum += v
	}
	return sum, nil
}

// Reward is the negated window intensity of running for duration slots from
// start.
func (e *Environment) Reward(start, duration int) (int, error) {
	sum, err := e.WindowIntensity(start, duration)
	return -sum, err
}

// Intensities recovers the coarse series.
func (e *Environment) Intensities() []int {
	out := make([]int, 0, len(e.fine)/model.FinePerCoarse)
	for i := 0; i < len(e.fine); i += model.FinePerCoarse {
		out = append(out, e.fine[i])
	}
	return out
}
