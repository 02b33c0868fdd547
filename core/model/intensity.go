package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is the zone-less layout used on every external surface.
const TimestampLayout = "2006-01-02T15:04:05"

// ParseTimestamp parses s using TimestampLayout. The result is in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.UTC)
}

// FormatTimestamp renders t using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Timestamp is a time.Time that marshals with TimestampLayout.
type Timestamp struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(FormatTimestamp(t.Time))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return fmt.Errorf("date %q does not match %s", s, TimestampLayout)
	}
	t.Time = parsed
	return nil
}

// Intensities is one day of coarse forecast values together with the anchor
// time of the first slot.
type Intensities struct {
	Values []int     `json:"intensities"`
	Date   time.Time `json:"-"`
}

// Validate checks that the series has exactly n values and an anchor.
func (in Intensities) Validate(n int) error {
	if len(in.Values) != n {
		return fmt.Errorf("intensities must contain %d values, got %d", n, len(in.Values))
	}
	if in.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	return nil
}

// Clone returns a deep copy of in.
func (in Intensities) Clone() Intensities {
	vals := make([]int, len(in.Values))
	copy(vals, in.Values)
	return Intensities{Values: vals, Date: in.Date}
}

// End returns the instant just after the last coarse slot.
func (in Intensities) End() time.Time {
	return in.Date.Add(time.Duration(len(in.Values)) * CoarseSlot)
}

// IntensitiesPayload is the wire representation of Intensities.
type IntensitiesPayload struct {
	Intensities []int     `json:"intensities"`
	Date        Timestamp `json:"date"`
}

// Payload converts in to its wire form.
func (in Intensities) Payload() IntensitiesPayload {
	return IntensitiesPayload{Intensities: in.Values, Date: Timestamp{in.Date}}
}

// ToIntensities converts the payload back to the domain type.
func (p IntensitiesPayload) ToIntensities() Intensities {
	return Intensities{Values: p.Intensities, Date: p.Date.Time}
}
