package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

var anchor = time.Date(2024, 9, 28, 1, 0, 0, 0, time.UTC)

func alternating(a, b, n int) []int {
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			out = append(out, a)
		} else {
			out = append(out, b)
		}
	}
	return out
}

func newTestScheduler(t *testing.T, values []int) *Scheduler {
	t.Helper()
	cfg := DefaultConfig()
	s, err := New(cfg, WithRand(rand.New(rand.NewSource(42))))
	require.NoError(t, err)
	if values != nil {
		require.NoError(t, s.SetIntensities(model.Intensities{Values: values, Date: anchor}))
	}
	return s
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 9, 28, hour, minute, 0, 0, time.UTC)
}
