package analyzer

import "math"

// BandRange is the frequency interval one band covers, [Lower, Upper) Hz.
type BandRange struct {
	Lower int
	Upper int
}

// Level is the published state of one band.
type Level struct {
	Value    float64 // decayed, sensitivity-scaled magnitude in [0, 4]
	Progress int     // round(Value * 100)
}

type band struct {
	BandRange
	lo, hi int // bin indices, [lo, hi)

	level    Level
	previous float64
}

// binIndex maps a frequency to its spectrum bin: floor(f * n / rate),
// clamped to [0, n].
func binIndex(freq, n, rate int) int {
	idx := int(int64(freq) * int64(n) / int64(rate))
	if idx < 0 {
		return 0
	}
	if idx > n {
		return n
	}
	return idx
}

// newBands builds the band table for validated boundaries. The final
// boundary only closes the last band.
func newBands(boundaries []int, n, rate int) []band {
	bands := make([]band, len(boundaries)-1)
	for i := range bands {
		lower, upper := boundaries[i], boundaries[i+1]
		bands[i] = band{
			BandRange: BandRange{Lower: lower, Upper: upper},
			lo:        binIndex(lower, n, rate),
			hi:        binIndex(upper, n, rate),
		}
	}
	return bands
}

// aggregator is a per-band envelope follower: instant attack, exponential
// release.
type aggregator struct {
	decay       float64
	sensitivity float64
}

func (a aggregator) update(spectrum []complex128, bands []band) {
	for i := range bands {
		b := &bands[i]

		raw := magnitude(spectrum, b.lo, b.hi)
		reported := raw
		if raw < b.previous {
			reported = a.decayed(b.previous)
		}
		b.previous = reported

		final := math.Min(reported*a.sensitivity, levelCeiling)
		b.level = Level{Value: final, Progress: int(math.Round(final * 100))}
	}
}

// decayed applies one release step. Rates outside (0,1) hold the level.
func (a aggregator) decayed(prev float64) float64 {
	if a.decay > 0 && a.decay < 1 {
		return prev * a.decay
	}
	return prev
}

// magnitude is the L2 norm of the bins in [lo, hi).
func magnitude(spectrum []complex128, lo, hi int) float64 {
	if hi > len(spectrum) {
		hi = len(spectrum)
	}
	sum := 0.0
	for i := lo; i < hi; i++ {
		re, im := real(spectrum[i]), imag(spectrum[i])
		sum += re*re + im*im
	}
	return math.Sqrt(sum)
}
