package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const defaultMonitor = "@DEFAULT_MONITOR@"

// Monitor records the monitor of a PulseAudio sink through an ffmpeg
// subprocess producing f32le PCM on stdout.
type Monitor struct {
	*loop
	device string
	ffmpeg string
	opts   Options
	log    logrus.FieldLogger
}

// NewMonitor returns a source for the monitor of sink. An empty sink
// selects the default monitor.
func NewMonitor(sink string, opts Options) (*Monitor, error) {
	opts = opts.withDefaults()
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found (required for monitor capture)", ErrNotAvailable)
	}
	device := monitorDevice(sink)
	return &Monitor{
		loop:   newLoop(),
		device: device,
		ffmpeg: ffmpeg,
		opts:   opts,
		log:    opts.Logger.WithFields(logrus.Fields{"capture": "monitor", "device": device}),
	}, nil
}

func monitorDevice(sink string) string {
	switch {
	case sink == "":
		return defaultMonitor
	case strings.HasSuffix(sink, ".monitor"), strings.HasPrefix(sink, "@"):
		return sink
	default:
		return sink + ".monitor"
	}
}

func (m *Monitor) Name() string { return m.device }

// SampleRate is the rate ffmpeg is asked to resample to.
func (m *Monitor) SampleRate() int { return m.opts.SampleRate }

func (m *Monitor) args() []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "pulse",
		"-fragment_size", strconv.Itoa(m.opts.chunkFrames() * m.opts.Channels * bytesPerSample),
		"-i", m.device,
		"-vn",
		"-ac", strconv.Itoa(m.opts.Channels),
		"-ar", strconv.Itoa(m.opts.SampleRate),
		"-f", "f32le",
		"pipe:1",
	}
}

func (m *Monitor) Start(sink Sink) error {
	cmd := exec.Command(m.ffmpeg, m.args()...)
	cmd.Stdin = nil
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setting up ffmpeg capture: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg capture: %w", err)
	}

	err = m.run(func(stop <-chan struct{}) error {
		m.log.Info("capture started")
		defer m.log.Info("capture stopped")

		readDone := make(chan error, 1)
		go func() { readDone <- m.pump(stdout, sink) }()

		var readErr error
		select {
		case <-stop:
			_ = cmd.Process.Kill()
			readErr = <-readDone
		case readErr = <-readDone:
		}
		waitErr := cmd.Wait()

		if m.stopping() {
			return nil
		}
		if readErr != nil && !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
			return fmt.Errorf("reading ffmpeg capture: %w", readErr)
		}
		if waitErr != nil {
			return fmt.Errorf("ffmpeg capture exited: %w: %s", waitErr, strings.TrimSpace(stderr.String()))
		}
		return nil
	})
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	return err
}

// pump reads whole chunks from r until it fails. A trailing partial chunk
// is truncated to whole samples and delivered.
func (m *Monitor) pump(r io.Reader, sink Sink) error {
	buf := make([]byte, m.opts.chunkFrames()*m.opts.Channels*bytesPerSample)
	for {
		n, err := io.ReadFull(r, buf)
		if n -= n % bytesPerSample; n > 0 && !m.stopping() {
			deliver(sink, buf[:n], m.log)
		}
		if err != nil {
			return err
		}
	}
}
