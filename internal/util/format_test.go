package util

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(75 * time.Second); got != "1:15" {
		t.Fatalf("FormatDuration(75s) = %q, want %q", got, "1:15")
	}
	if got := FormatDuration(-time.Second); got != "0:00" {
		t.Fatalf("FormatDuration(-1s) = %q, want %q", got, "0:00")
	}
}

func TestFormatHz(t *testing.T) {
	cases := map[int]string{
		0:     "0 Hz",
		500:   "500 Hz",
		1000:  "1 kHz",
		1500:  "1.5 kHz",
		15000: "15 kHz",
	}
	for in, want := range cases {
		if got := FormatHz(in); got != want {
			t.Fatalf("FormatHz(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatBand(t *testing.T) {
	if got := FormatBand(0, 500); got != "0-500 Hz" {
		t.Fatalf("FormatBand(0, 500) = %q", got)
	}
	if got := FormatBand(1000, 15000); got != "1 kHz-15 kHz" {
		t.Fatalf("FormatBand(1000, 15000) = %q", got)
	}
}
