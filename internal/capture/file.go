package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"
)

// File decodes an audio file and delivers it in real time. With
// Options.Play the audio also goes to the default output device and
// delivery follows the device's consumption.
type File struct {
	*loop
	path string
	file *os.File
	dec  pcmDecoder
	meta Metadata
	opts Options
	log  logrus.FieldLogger
}

// NewFile opens path and prepares its decoder. Options.SampleRate and
// Options.Channels are overridden by the file's own format.
func NewFile(path string, opts Options) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := newDecoder(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	opts = opts.withDefaults()
	opts.SampleRate = dec.SampleRate()
	opts.Channels = 2 // mono is upmixed

	return &File{
		loop: newLoop(),
		path: path,
		file: f,
		dec:  dec,
		meta: ReadMetadata(path),
		opts: opts,
		log:  opts.Logger.WithFields(logrus.Fields{"capture": "file", "path": path}),
	}, nil
}

func (s *File) Name() string { return s.meta.Title }

// Metadata returns the tags read from the file.
func (s *File) Metadata() Metadata { return s.meta }

// SampleRate is the file's native rate.
func (s *File) SampleRate() int { return s.opts.SampleRate }

// Close releases the file of a source that was never started. A started
// source closes it itself when its goroutine ends.
func (s *File) Close() error {
	if s.isStarted() {
		return nil
	}
	if err := s.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

func (s *File) Start(sink Sink) error {
	var player *filePlayback
	if s.opts.Play {
		var err error
		player, err = newFilePlayback(s.dec, s.opts.SampleRate)
		if err != nil {
			s.file.Close()
			return err
		}
	}

	err := s.run(func(stop <-chan struct{}) error {
		s.log.Info("capture started")
		defer s.log.Info("capture stopped")
		defer s.file.Close()

		if player != nil {
			defer player.close()
			return s.follow(player, sink, stop)
		}
		return s.stream(sink, stop)
	})
	if err != nil && player != nil {
		player.close()
	}
	return err
}

// stream reads the decoder directly, paced by the wall clock.
func (s *File) stream(sink Sink, stop <-chan struct{}) error {
	frames := s.opts.chunkFrames()
	srcChannels := s.dec.ChannelCount()
	pcm := make([]byte, frames*srcChannels*2)
	var out []byte

	p := newPacer(s.opts.SampleRate)
	for {
		n, err := io.ReadFull(s.dec, pcm)
		n -= n % (srcChannels * 2)
		if n > 0 {
			if !p.wait(n/(srcChannels*2), stop) {
				return nil
			}
			out = s16ToFloat(out, pcm[:n], srcChannels)
			deliver(sink, out, s.log)
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("decoding %s: %w", s.path, err)
		}
	}
}

// follow delivers whatever the output device has just consumed.
func (s *File) follow(player *filePlayback, sink Sink, stop <-chan struct{}) error {
	chunk := s.opts.chunkFrames() * player.channels * 2
	srcChannels := player.channels
	var out []byte

	player.start()
	for {
		select {
		case <-stop:
			return nil
		case pcm, ok := <-player.tap:
			if !ok {
				return player.err()
			}
			for len(pcm) > 0 {
				n := min(chunk, len(pcm))
				out = s16ToFloat(out, pcm[:n], srcChannels)
				deliver(sink, out, s.log)
				pcm = pcm[n:]
			}
		}
	}
}

var (
	otoCtx     *oto.Context
	otoRate    int
	otoOnce    sync.Once
	otoInitErr error
)

// initOto creates the process-wide output context. oto allows only one,
// so every later file must share the first file's rate.
func initOto(rate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   rate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		}
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-ready
			otoRate = rate
		}
	})
	if otoInitErr != nil {
		return nil, fmt.Errorf("%w: audio output: %v", ErrNotAvailable, otoInitErr)
	}
	if otoRate != rate {
		return nil, fmt.Errorf("audio output already open at %d Hz, file is %d Hz", otoRate, rate)
	}
	return otoCtx, nil
}

// filePlayback plays decoded PCM and copies every block the device pulls
// onto tap. The tap is closed at end of input.
type filePlayback struct {
	player   *oto.Player
	tapper   *tapReader
	tap      <-chan []byte
	channels int
}

func newFilePlayback(dec pcmDecoder, rate int) (*filePlayback, error) {
	ctx, err := initOto(rate)
	if err != nil {
		return nil, err
	}
	// oto is opened for stereo; mono files are upmixed before playback.
	var src io.Reader = dec
	if dec.ChannelCount() == 1 {
		src = &upmixReader{src: dec}
	}
	tr := newTapReader(src, 64)
	return &filePlayback{
		player:   ctx.NewPlayer(tr),
		tapper:   tr,
		tap:      tr.ch,
		channels: 2,
	}, nil
}

func (p *filePlayback) start() { p.player.Play() }

func (p *filePlayback) err() error {
	if err := p.tapper.readErr(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (p *filePlayback) close() {
	p.player.Pause()
	_ = p.player.Close()
	p.tapper.close()
}

// tapReader copies each successful read onto a channel, dropping blocks
// when the consumer falls behind.
type tapReader struct {
	src    io.Reader
	ch     chan []byte
	mu     sync.Mutex
	closed bool
	err    error
}

func newTapReader(src io.Reader, depth int) *tapReader {
	return &tapReader{src: src, ch: make(chan []byte, depth)}
}

func (t *tapReader) Read(p []byte) (int, error) {
	n, err := t.src.Read(p)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return n, err
	}
	if n > 0 {
		select {
		case t.ch <- append([]byte(nil), p[:n]...):
		default:
		}
	}
	if err != nil {
		t.err = err
		t.closed = true
		close(t.ch)
	}
	return n, err
}

func (t *tapReader) readErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *tapReader) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.ch)
	}
}

// upmixReader duplicates each s16 mono sample into a stereo frame.
type upmixReader struct {
	src io.Reader
	pending
}

func (u *upmixReader) Read(p []byte) (int, error) {
	if n, ok := u.drain(p); ok {
		return n, nil
	}
	mono := make([]byte, max(len(p)/4, 1)*2)
	n, err := u.src.Read(mono)
	n -= n % 2
	if n == 0 {
		return 0, err
	}
	raw := make([]byte, n*2)
	for i := 0; i < n; i += 2 {
		copy(raw[i*2:], mono[i:i+2])
		copy(raw[i*2+2:], mono[i:i+2])
	}
	return u.emit(p, raw), err
}
