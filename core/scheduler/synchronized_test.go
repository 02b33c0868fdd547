package scheduler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

func TestSynchronizedConcurrentUse(t *testing.T) {
	c := NewSynchronized(newTestScheduler(t, nil))
	_, err := c.LoadAndTrain(model.Intensities{Values: alternating(266, 312, 48), Date: anchor}, []model.DurationBucket{2})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				_, err := c.Train(3)
				assert.NoError(t, err)
				return
			}
			_, ok, err := c.BestActionFor(at(12, 0), 2, nil)
			assert.NoError(t, err)
			assert.True(t, ok)
			_, loaded := c.Intensities()
			assert.True(t, loaded)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, []model.DurationBucket{2, 3}, c.Trained())
	assert.True(t, c.IsTrained(3))

	c.ClearData()
	assert.Empty(t, c.Trained())
	_, _, err = c.BestActionFor(at(12, 0), 2, nil)
	assert.ErrorIs(t, err, ErrNoIntensities)
}
