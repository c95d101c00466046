package analyzer

import (
	"errors"
	"math"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestValidateRejectsSingleBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Boundaries = []int{1000}

	err := cfg.Validate()
	if !errors.Is(err, ErrInsufficientBands) {
		t.Fatalf("expected ErrInsufficientBands, got %v", err)
	}
	var cerr *ConfigError
	if !errors.As(err, &cerr) || cerr.Field != "boundaries" {
		t.Fatalf("expected *ConfigError on boundaries, got %#v", err)
	}
}

func TestValidateRejectsBadBoundaries(t *testing.T) {
	for _, b := range [][]int{{500, 100}, {-1, 100}, {0, 100, 50}} {
		cfg := DefaultConfig()
		cfg.Boundaries = b
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidBoundaries) {
			t.Fatalf("boundaries %v: expected ErrInvalidBoundaries, got %v", b, err)
		}
	}

	cfg := DefaultConfig()
	cfg.Boundaries = []int{0, 500, 500}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("equal neighbouring boundaries should be accepted, got %v", err)
	}
}

func TestValidateRejectsBadParameters(t *testing.T) {
	mutations := map[string]func(*Config){
		"fft_size":    func(c *Config) { c.FFTSize = 0 },
		"sample_rate": func(c *Config) { c.SampleRate = -1 },
		"decay_rate":  func(c *Config) { c.DecayRate = 1.5 },
		"sensitivity": func(c *Config) { c.Sensitivity = math.Inf(1) },
	}
	for field, mutate := range mutations {
		cfg := DefaultConfig()
		mutate(&cfg)
		err := cfg.Validate()
		var cerr *ConfigError
		if !errors.As(err, &cerr) || cerr.Field != field {
			t.Fatalf("%s: expected *ConfigError for the field, got %v", field, err)
		}
	}
}

func TestValidateRejectsHugeTransform(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FFTSize = maxFFTSize + 1
	if err := cfg.Validate(); !errors.Is(err, ErrAllocationFailed) {
		t.Fatalf("expected ErrAllocationFailed, got %v", err)
	}
}

func TestCapacityIsTwoSamplesPerSlot(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Capacity(); got != 2*cfg.FFTSize {
		t.Fatalf("Capacity() = %d, want %d", got, 2*cfg.FFTSize)
	}
	if got := cfg.NumBands(); got != 1 {
		t.Fatalf("NumBands() = %d, want 1", got)
	}
}
