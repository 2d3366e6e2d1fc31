package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMSToSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"00:00:00", 0},
		{"00:01:11", 71},
		{"01:00:00", 3600},
		{"10:59:59", 39599},
		{"1:2:3", 3723},
		{"00:60:00", -1},
		{"00:00:60", -1},
		{"-1:00:00", -1},
		{"00:00", -1},
		{"", -1},
		{"aa:bb:cc", -1},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, HMSToSeconds(tc.in), "input %q", tc.in)
	}
}

func TestSecondsToHMS(t *testing.T) {
	assert.Equal(t, "00:00:00", SecondsToHMS(0))
	assert.Equal(t, "00:01:11", SecondsToHMS(71.4))
	assert.Equal(t, "01:00:00", SecondsToHMS(3600))
	assert.Equal(t, "00:00:00", SecondsToHMS(-5))
}

func TestSecondsToMinSec(t *testing.T) {
	assert.Equal(t, "50 secs", SecondsToMinSec(50))
	assert.Equal(t, "1 min 11 secs", SecondsToMinSec(71))
	assert.Equal(t, "0 secs", SecondsToMinSec(0.4))
}
