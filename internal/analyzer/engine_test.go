package analyzer

import (
	"encoding/binary"
	"errors"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/mjibson/go-dsp/fft"
)

func f32le(samples ...float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

func randomSamples(r *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(r.Float64()*2 - 1)
	}
	return out
}

func TestEngineMatchesReferenceFFT(t *testing.T) {
	const n = 512
	e, err := newEngine(n)
	if err != nil {
		t.Fatalf("newEngine() error = %v", err)
	}

	samples := randomSamples(rand.New(rand.NewSource(1)), 2*n-6)
	got, err := e.transform(f32le(samples...))
	if err != nil {
		t.Fatalf("transform() error = %v", err)
	}

	in := make([]complex128, n)
	for k := range in {
		var re, im float64
		if 2*k < len(samples) {
			re = float64(samples[2*k])
		}
		if 2*k+1 < len(samples) {
			im = float64(samples[2*k+1])
		}
		in[k] = complex(re, im)
	}
	want := fft.FFT(in)

	for k := range want {
		g, w := cmplx.Abs(got[k]), cmplx.Abs(want[k])
		if math.Abs(g-w) > 1e-6*math.Max(1, w) {
			t.Fatalf("bin %d magnitude = %v, want %v", k, g, w)
		}
	}
}

func TestEngineOverwritesWholeWorkspace(t *testing.T) {
	const n = 64
	r := rand.New(rand.NewSource(2))
	short := f32le(randomSamples(r, 10)...)

	fresh, _ := newEngine(n)
	want, err := fresh.transform(short)
	if err != nil {
		t.Fatalf("transform() error = %v", err)
	}
	want = append([]complex128(nil), want...)

	reused, _ := newEngine(n)
	if _, err := reused.transform(f32le(randomSamples(r, 2*n)...)); err != nil {
		t.Fatalf("transform(full) error = %v", err)
	}
	got, err := reused.transform(short)
	if err != nil {
		t.Fatalf("transform(short) error = %v", err)
	}

	for k := range want {
		if got[k] != want[k] {
			t.Fatalf("bin %d = %v after reuse, want %v", k, got[k], want[k])
		}
	}
}

func TestEngineRejectsMalformedAndOversizedChunks(t *testing.T) {
	e, _ := newEngine(8)
	before := append([]complex128(nil), e.in...)

	if _, err := e.transform(make([]byte, 7)); !errors.Is(err, ErrMalformedChunk) {
		t.Fatalf("expected ErrMalformedChunk, got %v", err)
	}
	if _, err := e.transform(make([]byte, (e.capacity()+1)*4)); !errors.Is(err, ErrChunkTooLarge) {
		t.Fatalf("expected ErrChunkTooLarge, got %v", err)
	}
	if _, err := e.transformSamples(make([]float32, e.capacity()+1)); !errors.Is(err, ErrChunkTooLarge) {
		t.Fatalf("expected ErrChunkTooLarge from transformSamples, got %v", err)
	}
	for k := range before {
		if e.in[k] != before[k] {
			t.Fatalf("workspace slot %d modified by rejected chunk", k)
		}
	}
}

func TestEngineAcceptsExactCapacity(t *testing.T) {
	e, _ := newEngine(16)
	if _, err := e.transform(make([]byte, e.capacity()*4)); err != nil {
		t.Fatalf("transform() at capacity error = %v", err)
	}
}

func TestEngineImpulseIsFlat(t *testing.T) {
	e, _ := newEngine(32)
	spectrum, err := e.transformSamples([]float32{1})
	if err != nil {
		t.Fatalf("transformSamples() error = %v", err)
	}
	for k, c := range spectrum {
		if math.Abs(cmplx.Abs(c)-1) > 1e-12 {
			t.Fatalf("bin %d magnitude = %v, want 1", k, cmplx.Abs(c))
		}
	}
}

func TestEngineRejectsNonFiniteSamples(t *testing.T) {
	e, err := newEngine(16)
	if err != nil {
		t.Fatalf("newEngine() error = %v", err)
	}
	if _, err := e.transform(f32le(0.5, float32(math.NaN()))); !errors.Is(err, ErrMalformedChunk) {
		t.Fatalf("expected ErrMalformedChunk for NaN, got %v", err)
	}
	if _, err := e.transformSamples([]float32{float32(math.Inf(1))}); !errors.Is(err, ErrMalformedChunk) {
		t.Fatalf("expected ErrMalformedChunk for +Inf, got %v", err)
	}
	for _, v := range e.in {
		if v != 0 {
			t.Fatal("rejected chunk reached the workspace")
		}
	}
}
