package capture

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Tone generates a stereo sine wave in real time.
type Tone struct {
	*loop
	freq   float64
	amp    float64
	opts   Options
	log    logrus.FieldLogger
	frames int64 // phase position, owned by the loop goroutine
}

// NewTone returns a sine source of freq Hz with peak amplitude amp.
func NewTone(freq, amp float64, opts Options) *Tone {
	opts = opts.withDefaults()
	return &Tone{
		loop: newLoop(),
		freq: freq,
		amp:  amp,
		opts: opts,
		log:  opts.Logger.WithField("capture", "tone"),
	}
}

func (t *Tone) Name() string { return fmt.Sprintf("tone %.0f Hz", t.freq) }

// SampleRate is the rate the tone is generated at.
func (t *Tone) SampleRate() int { return t.opts.SampleRate }

func (t *Tone) Start(sink Sink) error {
	return t.run(func(stop <-chan struct{}) error {
		t.log.Info("capture started")
		defer t.log.Info("capture stopped")

		frames := t.opts.chunkFrames()
		samples := make([]float32, frames*t.opts.Channels)
		var scratch []byte
		p := newPacer(t.opts.SampleRate)
		for p.wait(frames, stop) {
			t.fill(samples)
			deliverSamples(sink, samples, &scratch, t.log)
		}
		return nil
	})
}

// fill writes the next len(samples)/channels frames of the waveform and
// advances phase.
func (t *Tone) fill(samples []float32) {
	ch := t.opts.Channels
	frames := len(samples) / ch
	step := 2 * math.Pi * t.freq / float64(t.opts.SampleRate)
	for i := range frames {
		v := float32(t.amp * math.Sin(step*float64(t.frames+int64(i))))
		for c := range ch {
			samples[i*ch+c] = v
		}
	}
	t.frames += int64(frames)
}
