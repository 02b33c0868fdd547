package scheduler

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// TrainingStats summarises one Train call.
type TrainingStats struct {
	Bucket       model.DurationBucket
	Episodes     int
	Updates      int
	FinalEpsilon float64
	Elapsed      time.Duration
}

// Trainer runs epsilon-greedy Q-learning over a Table. Exploration state is
// kept between calls unless Config.ResetEpsilon is set.
type Trainer struct {
	cfg     Config
	rng     *rand.Rand
	epsilon float64
}

// NewTrainer creates a Trainer drawing randomness from rng.
func NewTrainer(cfg Config, rng *rand.Rand) *Trainer {
	return &Trainer{cfg: cfg, rng: rng, epsilon: cfg.Epsilon}
}

// Epsilon returns the current exploration rate.
func (tr *Trainer) Epsilon() float64 { return tr.epsilon }

// Train updates the slice of table belonging to b using env as reward source.
func (tr *Trainer) Train(env *Environment, table *Table, b model.DurationBucket) (TrainingStats, error) {
	if !b.Valid() {
		return TrainingStats{}, validationf(fmt.Sprintf("unsupported duration bucket %d", b))
	}
	fine := env.Len()
	if fine != table.Size() {
		return TrainingStats{}, fmt.Errorf("environment has %d slots, table expects %d", fine, table.Size())
	}
	d := b.Slots()
	if d >= fine {
		return TrainingStats{}, fmt.Errorf("%w: bucket %d exceeds horizon %d", ErrWindowOutOfRange, d, fine)
	}
	if tr.cfg.ResetEpsilon {
		tr.epsilon = tr.cfg.Epsilon
	}

	started := time.Now()
	lastAction := fine - d
	updates := 0
	for ep := 0; ep < tr.cfg.Episodes; ep++ {
		for state := 0; state+d < fine; state++ {
			var action int
			if tr.rng.Float64() < tr.epsilon {
				action = state + tr.rng.Intn(lastAction-state+1)
			} else {
				action, _ = table.ArgMax(b, state, state, lastAction+1)
			}
			reward, err := env.Reward(action, d)
			if err != nil {
				return TrainingStats{}, err
			}
			q := table.At(b, state, action)
			future := table.RowMax(b, action)
			table.Set(b, state, action, q+tr.cfg.Alpha*(float64(reward)+tr.cfg.Gamma*future-q))
			updates++
		}
		if tr.epsilon > tr.cfg.EpsilonMin {
			tr.epsilon *= tr.cfg.EpsilonDecay
		}
	}
	return TrainingStats{
		Bucket:       b,
		Episodes:     tr.cfg.Episodes,
		Updates:      updates,
		FinalEpsilon: tr.epsilon,
		Elapsed:      time.Since(started),
	}, nil
}
