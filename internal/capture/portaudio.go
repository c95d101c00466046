//go:build portaudio

package capture

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

// PortAudio records the default input device. PortAudio's callback
// thread is the producer; Wait returns once the stream is stopped and
// no callback can run any more.
type PortAudio struct {
	*loop
	opts Options
	log  logrus.FieldLogger
}

// NewPortAudio returns a source for the default input device.
func NewPortAudio(opts Options) (Source, error) {
	opts = opts.withDefaults()
	return &PortAudio{
		loop: newLoop(),
		opts: opts,
		log:  opts.Logger.WithField("capture", "portaudio"),
	}, nil
}

func (s *PortAudio) Name() string { return "default input" }

// SampleRate is the rate the stream is opened at.
func (s *PortAudio) SampleRate() int { return s.opts.SampleRate }

func (s *PortAudio) Start(sink Sink) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: portaudio: %v", ErrNotAvailable, err)
	}

	var scratch []byte
	callback := func(in []float32) {
		if s.stopping() {
			return
		}
		deliverSamples(sink, in, &scratch, s.log)
	}
	stream, err := portaudio.OpenDefaultStream(s.opts.Channels, 0, float64(s.opts.SampleRate), s.opts.chunkFrames(), callback)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting input stream: %w", err)
	}

	return s.run(func(stop <-chan struct{}) error {
		s.log.Info("capture started")
		defer s.log.Info("capture stopped")
		defer portaudio.Terminate()

		<-stop
		// Stop blocks until pending callbacks have returned.
		if err := stream.Stop(); err != nil {
			stream.Close()
			return fmt.Errorf("stopping input stream: %w", err)
		}
		return stream.Close()
	})
}
