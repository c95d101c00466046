package analyzer

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// sampleWidth is the byte width of one little-endian float32 sample.
const sampleWidth = 4

// engine owns the fixed-size transform workspace. Interleaved samples are
// packed pairwise into the complex input: sample 2k is the real part and
// sample 2k+1 the imaginary part of slot k.
type engine struct {
	n   int
	fft *fourier.CmplxFFT
	in  []complex128
	out []complex128
}

func newEngine(n int) (e *engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			e = nil
			err = fmt.Errorf("%w: %d point transform: %v", ErrAllocationFailed, n, r)
		}
	}()

	return &engine{
		n:   n,
		fft: fourier.NewCmplxFFT(n),
		in:  make([]complex128, n),
		out: make([]complex128, n),
	}, nil
}

// capacity is the number of float samples the workspace holds.
func (e *engine) capacity() int { return 2 * e.n }

// checkChunk validates a raw chunk without touching the workspace.
func (e *engine) checkChunk(chunk []byte) error {
	if len(chunk)%sampleWidth != 0 {
		return fmt.Errorf("%w: %d bytes", ErrMalformedChunk, len(chunk))
	}
	count := len(chunk) / sampleWidth
	if count > e.capacity() {
		return fmt.Errorf("%w: %d samples, capacity %d", ErrChunkTooLarge, count, e.capacity())
	}
	return checkFinite(count, func(i int) float32 { return decodeSample(chunk, i) })
}

// checkFinite rejects NaN and infinite samples, which would poison every
// band they reach.
func checkFinite(count int, sample func(i int) float32) error {
	for i := range count {
		v := float64(sample(i))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite sample %v at %d", ErrMalformedChunk, v, i)
		}
	}
	return nil
}

func decodeSample(chunk []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(chunk[i*sampleWidth:]))
}

// transform decodes chunk into the workspace and runs the forward DFT.
// The returned spectrum aliases the workspace and is only valid until the
// next call.
func (e *engine) transform(chunk []byte) ([]complex128, error) {
	if err := e.checkChunk(chunk); err != nil {
		return nil, err
	}
	count := len(chunk) / sampleWidth
	e.load(count, func(i int) float64 { return float64(decodeSample(chunk, i)) })
	return e.execute(), nil
}

// transformSamples is transform for callers that already hold floats.
func (e *engine) transformSamples(samples []float32) ([]complex128, error) {
	if len(samples) > e.capacity() {
		return nil, fmt.Errorf("%w: %d samples, capacity %d", ErrChunkTooLarge, len(samples), e.capacity())
	}
	if err := checkFinite(len(samples), func(i int) float32 { return samples[i] }); err != nil {
		return nil, err
	}
	e.load(len(samples), func(i int) float64 { return float64(samples[i]) })
	return e.execute(), nil
}

// load overwrites the whole input workspace; slots past the chunk are zeroed.
func (e *engine) load(count int, sample func(i int) float64) {
	for k := range e.in {
		var re, im float64
		if i := 2 * k; i < count {
			re = sample(i)
			if i+1 < count {
				im = sample(i + 1)
			}
		}
		e.in[k] = complex(re, im)
	}
}

func (e *engine) execute() []complex128 {
	return e.fft.Coefficients(e.out, e.in)
}

func (e *engine) release() {
	e.fft = nil
	e.in = nil
	e.out = nil
}
