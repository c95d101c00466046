// Package capture provides the audio producers that feed an analyzer.
//
// Every Source owns the goroutine (or foreign callback thread) that calls
// Sink.Ingest. Stop asks it to finish; Wait joins it. Once Wait has
// returned the source never calls its sink again.
package capture

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/olivier-w/climeter/internal/media"
	"github.com/sirupsen/logrus"
)

const (
	bytesPerSample = 4 // float32 output
	defaultRate    = 44100
	defaultChans   = 2
)

var (
	// ErrNotAvailable means the backend is missing from this build or host.
	ErrNotAvailable      = errors.New("capture backend not available")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrAlreadyStarted    = errors.New("capture already started")
)

// Sink receives chunks of interleaved little-endian float32 samples. The
// chunk is only valid for the duration of the call.
type Sink interface {
	Ingest(chunk []byte) error
}

// SampleSink is implemented by sinks that take float samples directly,
// sparing producers that already hold []float32 an encode/decode round trip.
type SampleSink interface {
	IngestSamples(samples []float32) error
}

// Source is an audio producer with its own thread of execution.
type Source interface {
	Name() string
	// Start begins delivering chunks to sink from the source's own goroutine.
	Start(sink Sink) error
	// Stop requests termination. It is idempotent and does not join.
	Stop()
	// Wait joins the source and returns its terminal error. A requested
	// stop or a clean end of input yields nil. Wait on a source that was
	// never started returns nil immediately.
	Wait() error
}

// Options configure the built-in sources.
type Options struct {
	SampleRate     int
	Channels       int
	FragmentMillis int
	// MaxChunkBytes caps a single chunk, normally the analyzer capacity.
	MaxChunkBytes int
	// Play sends decoded file audio to the default output device.
	Play   bool
	Logger logrus.FieldLogger
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = defaultRate
	}
	if o.Channels <= 0 {
		o.Channels = defaultChans
	}
	if o.FragmentMillis <= 0 {
		o.FragmentMillis = 1
	}
	if o.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.Logger = l
	}
	return o
}

// chunkFrames is the number of sample frames per delivered chunk.
func (o Options) chunkFrames() int {
	frames := o.SampleRate * o.FragmentMillis / 1000
	if frames < 1 {
		frames = 1
	}
	if o.MaxChunkBytes > 0 {
		frameBytes := o.Channels * bytesPerSample
		if limit := o.MaxChunkBytes / frameBytes; frames > limit {
			frames = limit
		}
		if frames < 1 {
			frames = 1
		}
	}
	return frames
}

// Open builds a source from a source string:
//
//	monitor:<sink>   PulseAudio monitor of <sink> via ffmpeg
//	file:<path>      decoded audio file (also any plain path with a known extension)
//	tone:<hz>        generated sine wave
//	portaudio        default input device
func Open(spec string, opts Options) (Source, error) {
	opts = opts.withDefaults()
	kind, arg, _ := strings.Cut(spec, ":")

	switch kind {
	case "monitor":
		return NewMonitor(arg, opts)
	case "file":
		return NewFile(arg, opts)
	case "tone":
		hz, err := strconv.ParseFloat(arg, 64)
		if err != nil || hz <= 0 {
			return nil, fmt.Errorf("invalid tone frequency %q", arg)
		}
		return NewTone(hz, 0.5, opts), nil
	case "portaudio":
		return NewPortAudio(opts)
	}

	if media.IsSupportedExt(filepath.Ext(spec)) {
		return NewFile(spec, opts)
	}
	return nil, fmt.Errorf("unknown capture source %q (want monitor:, file:, tone: or portaudio)", spec)
}

// loop runs a source body on its own goroutine and implements the
// Start/Stop/Wait half of Source.
type loop struct {
	mu       sync.Mutex
	started  bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	err      error
}

func newLoop() *loop {
	return &loop{stop: make(chan struct{}), done: make(chan struct{})}
}

func (l *loop) run(body func(stop <-chan struct{}) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return ErrAlreadyStarted
	}
	l.started = true
	go func() {
		defer close(l.done)
		l.err = body(l.stop)
	}()
	return nil
}

func (l *loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *loop) Wait() error {
	l.mu.Lock()
	started := l.started
	l.mu.Unlock()
	if !started {
		return nil
	}
	<-l.done
	return l.err
}

func (l *loop) isStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}

func (l *loop) stopping() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

// deliverSamples hands float samples to sink, through IngestSamples when the
// sink has it and as an f32le chunk encoded into *scratch otherwise.
func deliverSamples(sink Sink, samples []float32, scratch *[]byte, log logrus.FieldLogger) {
	ss, ok := sink.(SampleSink)
	if !ok {
		*scratch = floatsToBytes(*scratch, samples)
		deliver(sink, *scratch, log)
		return
	}
	if err := ss.IngestSamples(samples); err != nil {
		log.WithFields(logrus.Fields{
			"samples": len(samples),
		}).WithError(err).Warn("chunk rejected")
	}
}

// deliver hands one chunk to sink. Rejections are logged and delivery
// carries on with the next chunk.
func deliver(sink Sink, chunk []byte, log logrus.FieldLogger) {
	if err := sink.Ingest(chunk); err != nil {
		log.WithFields(logrus.Fields{
			"bytes": len(chunk),
		}).WithError(err).Warn("chunk rejected")
	}
}
