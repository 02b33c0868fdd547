package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketForMinutes(t *testing.T) {
	cases := []struct {
		minutes int
		want    DurationBucket
	}{
		{0, 2},
		{30, 2},
		{45, 3},
		{60, 4},
		{100, 7},
		{135, 8},
		{140, 10},
		{160, 10},
		{165, 10},
		{210, 14},
		{240, 16},
		{270, 16},
		{285, 20},
		{600, 20},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, BucketForMinutes(c.minutes), "minutes=%d", c.minutes)
	}
}

func TestBucketIndexIsStatic(t *testing.T) {
	for i, b := range Buckets {
		idx, ok := b.Index()
		require.True(t, ok)
		assert.Equal(t, i, idx)
	}
	_, ok := DurationBucket(9).Index()
	assert.False(t, ok)
	assert.False(t, DurationBucket(1).Valid())
	assert.Equal(t, 120, DurationBucket(8).Minutes())
	assert.Equal(t, 2*time.Hour, DurationBucket(8).Duration())
}

func TestIntensitiesPayloadRoundTrip(t *testing.T) {
	raw := []byte(`{"intensities":[1,2,3],"date":"2024-05-01T01:00:00"}`)
	var p IntensitiesPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	in := p.ToIntensities()
	assert.Equal(t, time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC), in.Date)
	assert.NoError(t, in.Validate(3))
	assert.Error(t, in.Validate(48))

	out, err := json.Marshal(in.Payload())
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(out))
}

func TestIntensitiesPayloadRejectsBadInput(t *testing.T) {
	bad := []string{
		`{"intensities":[1,2.5],"date":"2024-05-01T01:00:00"}`,
		`{"intensities":[1,2],"date":"2024-05-01 01:00"}`,
		`{"intensities":[1,2],"date":5}`,
		`{"intensities":[1,2],"date":" 2024-05-01T01:00:00"}`,
	}
	for _, b := range bad {
		var p IntensitiesPayload
		assert.Error(t, json.Unmarshal([]byte(b), &p), b)
	}
}

func TestParseTimestampIsStrict(t *testing.T) {
	got, err := ParseTimestamp("2024-09-28T01:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 9, 28, 1, 0, 0, 0, time.UTC), got)
	for _, s := range []string{" 2024-09-28T01:00:00", "2024-09-28T01:00:00 ", "2024-09-28T01:00:00Z"} {
		_, err := ParseTimestamp(s)
		assert.Error(t, err, s)
	}
}

func TestIntensitiesEndAndClone(t *testing.T) {
	anchor := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	in := Intensities{Values: []int{1, 2, 3, 4}, Date: anchor}
	assert.Equal(t, anchor.Add(2*time.Hour), in.End())
	c := in.Clone()
	c.Values[0] = 99
	assert.Equal(t, 1, in.Values[0])
}
