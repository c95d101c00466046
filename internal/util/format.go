package util

import (
	"fmt"
	"strconv"
	"time"
)

// FormatDuration formats a duration as m:ss.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	m := total / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatHz formats a frequency as "500 Hz" or "1.5 kHz".
func FormatHz(hz int) string {
	if hz < 1000 {
		return strconv.Itoa(hz) + " Hz"
	}
	return strconv.FormatFloat(float64(hz)/1000, 'f', -1, 64) + " kHz"
}

// FormatBand formats a half-open band [lo, hi) as "0-500 Hz".
func FormatBand(lo, hi int) string {
	if hi < 1000 {
		return fmt.Sprintf("%d-%d Hz", lo, hi)
	}
	return FormatHz(lo) + "-" + FormatHz(hi)
}
