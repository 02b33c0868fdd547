package scheduler

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// Table stores one state x action value matrix per duration bucket.
type Table struct {
	size int
	q    []*mat.Dense
}

// NewTable allocates zeroed matrices for every bucket.
func NewTable(size int) *Table {
	q := make([]*mat.Dense, len(model.Buckets))
	for i := range q {
		q[i] = mat.NewDense(size, size, nil)
	}
	return &Table{size: size, q: q}
}

// Size returns the number of states, equal to the number of actions.
func (t *Table) Size() int { return t.size }

func (t *Table) matrix(b model.DurationBucket) *mat.Dense {
	idx, ok := b.Index()
	if !ok {
		panic(fmt.Sprintf("scheduler: unsupported duration bucket %d", b))
	}
	return t.q[idx]
}

// At returns Q[b][state][action].
func (t *Table) At(b model.DurationBucket, state, action int) float64 {
	return t.matrix(b).At(state, action)
}

// Set stores Q[b][state][action].
func (t *Table) Set(b model.DurationBucket, state, action int, v float64) {
	t.matrix(b).Set(state, action, v)
}

// Row returns a copy of the action values for state.
func (t *Table) Row(b model.DurationBucket, state int) []float64 {
	return mat.Row(nil, state, t.matrix(b))
}

// RowMax returns the highest action value for state.
func (t *Table) RowMax(b model.DurationBucket, state int) float64 {
	return floats.Max(t.matrix(b).RawRowView(state))
}

// ArgMax returns the absolute column of the best action in [lo, hi). The
// first column wins ties. ok is false for an empty or out-of-range window.
func (t *Table) ArgMax(b model.DurationBucket, state, lo, hi int) (int, bool) {
	if state < 0 || state >= t.size {
		return 0, false
	}
	if lo < 0 {
		lo = 0
	}
	if hi > t.size {
		hi = t.size
	}
	if lo >= hi {
		return 0, false
	}
	row := t.matrix(b).RawRowView(state)
	return lo + floats.MaxIdx(row[lo:hi]), true
}

// Reset zeroes every matrix.
func (t *Table) Reset() {
	for _, m := range t.q {
		m.Zero()
	}
}
