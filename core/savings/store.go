package savings

import "time"

// Store persists daily savings records. Add merges into an existing day.
type Store interface {
	Add(Record) error
	Query(start, end time.Time) ([]Record, error)
}

// Day aligns t to the start of its UTC day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
