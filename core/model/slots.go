package model

import (
	"fmt"
	"time"
)

const (
	// FineSlot is the resolution the scheduler reasons in.
	FineSlot = 15 * time.Minute
	// CoarseSlot is the resolution of the published forecast.
	CoarseSlot = 30 * time.Minute
	// FinePerCoarse is the number of fine slots covered by one coarse value.
	FinePerCoarse = int(CoarseSlot / FineSlot)
	// DefaultCoarseSlots covers one day of half-hourly forecast values.
	DefaultCoarseSlots = 48
)

// DurationBucket is a task length expressed in fine slots. Only the values
// listed in Buckets are valid.
type DurationBucket int

// Buckets enumerates the supported durations in ascending order. The position
// of a bucket in this list is its value table index.
var Buckets = []DurationBucket{2, 3, 4, 5, 6, 7, 8, 10, 12, 14, 16, 20}

var bucketIndex = func() map[DurationBucket]int {
	m := make(map[DurationBucket]int, len(Buckets))
	for i, b := range Buckets {
		m[b] = i
	}
	return m
}()

// Index returns the static table index of b and whether b is supported.
func (b DurationBucket) Index() (int, bool) {
	i, ok := bucketIndex[b]
	return i, ok
}

// Valid reports whether b is one of the supported buckets.
func (b DurationBucket) Valid() bool {
	_, ok := bucketIndex[b]
	return ok
}

// Slots returns the number of fine slots covered by b.
func (b DurationBucket) Slots() int { return int(b) }

// Minutes returns the wall-clock length of b in minutes.
func (b DurationBucket) Minutes() int { return int(b) * int(FineSlot/time.Minute) }

// Duration returns the wall-clock length of b.
func (b DurationBucket) Duration() time.Duration { return time.Duration(b) * FineSlot }

func (b DurationBucket) String() string { return fmt.Sprintf("%dm", b.Minutes()) }

// BucketForMinutes snaps a requested task length to the closest supported
// bucket. Ties go to the shorter bucket.
func BucketForMinutes(minutes int) DurationBucket {
	target := float64(minutes) / float64(FineSlot/time.Minute)
	best := Buckets[0]
	bestDiff := abs(float64(best) - target)
	for _, b := range Buckets[1:] {
		if d := abs(float64(b) - target); d < bestDiff {
			best, bestDiff = b, d
		}
	}
	return best
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
