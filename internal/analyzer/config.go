package analyzer

import (
	"math"
)

const (
	defaultFFTSize     = 8192
	defaultSampleRate  = 44100
	defaultDecayRate   = 0.992
	defaultSensitivity = 2.0

	// maxFFTSize bounds the workspace so a bad flag cannot ask for gigabytes.
	maxFFTSize = 1 << 22

	// levelCeiling is the hard clamp applied after sensitivity scaling.
	levelCeiling = 4.0
)

// Config is the flat, immutable analysis configuration for one Analyzer.
type Config struct {
	FFTSize     int     // transform size N, in complex slots
	SampleRate  int     // Hz
	DecayRate   float64 // per-chunk release factor in [0,1]
	Sensitivity float64 // linear gain applied before clamping
	Boundaries  []int   // ordered boundary frequencies in Hz, len >= 2
	Source      string  // opaque capture source identifier
	Label       string  // display name, e.g. "Bass"
}

// DefaultConfig returns the bass meter settings the tool ships with.
func DefaultConfig() Config {
	return Config{
		FFTSize:     defaultFFTSize,
		SampleRate:  defaultSampleRate,
		DecayRate:   defaultDecayRate,
		Sensitivity: defaultSensitivity,
		Boundaries:  []int{0, 500},
		Label:       "Bass",
	}
}

// Validate checks every construction parameter. The returned error is
// always a *ConfigError.
func (c Config) Validate() error {
	if len(c.Boundaries) < 2 {
		return configErr("boundaries", ErrInsufficientBands, "got %d", len(c.Boundaries))
	}
	for i, f := range c.Boundaries {
		if f < 0 {
			return configErr("boundaries", ErrInvalidBoundaries, "boundary %d is %d Hz", i, f)
		}
		if i > 0 && f < c.Boundaries[i-1] {
			return configErr("boundaries", ErrInvalidBoundaries, "boundary %d (%d Hz) below boundary %d (%d Hz)", i, f, i-1, c.Boundaries[i-1])
		}
	}
	if c.FFTSize <= 0 {
		return configErr("fft_size", ErrInvalidConfig, "must be positive, got %d", c.FFTSize)
	}
	if c.FFTSize > maxFFTSize {
		return configErr("fft_size", ErrAllocationFailed, "%d exceeds %d", c.FFTSize, maxFFTSize)
	}
	if c.SampleRate <= 0 {
		return configErr("sample_rate", ErrInvalidConfig, "must be positive, got %d", c.SampleRate)
	}
	if math.IsNaN(c.DecayRate) || c.DecayRate < 0 || c.DecayRate > 1 {
		return configErr("decay_rate", ErrInvalidConfig, "must be within [0,1], got %v", c.DecayRate)
	}
	if math.IsNaN(c.Sensitivity) || math.IsInf(c.Sensitivity, 0) || c.Sensitivity < 0 {
		return configErr("sensitivity", ErrInvalidConfig, "must be finite and >= 0, got %v", c.Sensitivity)
	}
	return nil
}

// NumBands is the number of bands the boundaries describe.
func (c Config) NumBands() int {
	if len(c.Boundaries) < 2 {
		return 0
	}
	return len(c.Boundaries) - 1
}

// Capacity returns how many float32 samples one chunk may carry: two per
// complex workspace slot.
func (c Config) Capacity() int {
	return 2 * c.FFTSize
}

func (c Config) clone() Config {
	c.Boundaries = append([]int(nil), c.Boundaries...)
	return c
}
