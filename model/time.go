package model

import (
	"fmt"
	"strconv"
	"strings"
)

// HMSToSeconds converts an "HH:MM:SS" string to total seconds.
// Returns -1 on invalid input.
func HMSToSeconds(hms string) int {
	parts := strings.Split(hms, ":")
	if len(parts) != 3 {
		return -1
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return -1
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return -1
	}
	s, err := strconv.Atoi(parts[2])
	if err != nil {
		return -1
	}

	if h < 0 || m < 0 || s < 0 || m >= 60 || s >= 60 {
		return -1
	}

	return h*3600 + m*60 + s
}

// SecondsToHMS converts total seconds into "HH:MM:SS".
func SecondsToHMS(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// SecondsToMinSec converts total seconds into a human string like
// "1 min 11 secs" or "50 secs".
func SecondsToMinSec(seconds float64) string {
	total := int(seconds)
	m := total / 60
	s := total % 60
	if m == 0 {
		return fmt.Sprintf("%d secs", s)
	}
	return fmt.Sprintf("%d min %d secs", m, s)
}
