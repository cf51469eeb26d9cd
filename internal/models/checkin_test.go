package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckInRecordDuration(t *testing.T) {
	in := time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC)

	out := func(d time.Duration) *time.Time {
		ts := in.Add(d)
		return &ts
	}

	testCases := []struct {
		name     string
		out      *time.Time
		expected string
	}{
		{"still open", nil, "N/A"},
		{"one hour fifteen", out(75 * time.Minute), "1h 15m"},
		{"under an hour", out(45 * time.Minute), "45m"},
		{"seconds floored", out(90*time.Minute + 40*time.Second), "1h 30m"},
		{"clock skew", out(-10 * time.Minute), "N/A"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			record := &CheckInRecord{TimestampIn: in, TimestampOut: tc.out}
			assert.Equal(t, tc.expected, record.Duration())
		})
	}
}

func TestCheckInRecordOpen(t *testing.T) {
	record := &CheckInRecord{TimestampIn: time.Now()}
	assert.True(t, record.Open())

	now := time.Now()
	record.TimestampOut = &now
	assert.False(t, record.Open())
}
