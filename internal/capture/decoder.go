package capture

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// pcmDecoder yields interleaved s16le PCM at the file's native rate.
type pcmDecoder interface {
	io.Reader
	SampleRate() int
	ChannelCount() int
}

// newDecoder detects format by file extension and returns the appropriate decoder.
func newDecoder(f *os.File) (pcmDecoder, error) {
	ext := strings.ToLower(filepath.Ext(f.Name()))
	var (
		dec pcmDecoder
		err error
	)
	switch ext {
	case ".mp3":
		dec, err = newMP3Decoder(f)
	case ".wav":
		dec, err = newWAVDecoder(f)
	case ".flac":
		dec, err = newFLACDecoder(f)
	case ".ogg":
		dec, err = newOGGDecoder(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	if ch := dec.ChannelCount(); ch < 1 || ch > 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, ch)
	}
	if dec.SampleRate() <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, dec.SampleRate())
	}
	return dec, nil
}

func clamp16(sample int) int16 {
	if sample > 32767 {
		return 32767
	}
	if sample < -32768 {
		return -32768
	}
	return int16(sample)
}

// pending drains leftover converted bytes before new source data is read.
type pending struct {
	buf []byte
}

func (p *pending) drain(dst []byte) (int, bool) {
	if len(p.buf) == 0 {
		return 0, false
	}
	n := copy(dst, p.buf)
	p.buf = p.buf[n:]
	return n, true
}

func (p *pending) emit(dst, raw []byte) int {
	n := copy(dst, raw)
	if n < len(raw) {
		p.buf = raw[n:]
	}
	return n
}

// --- MP3 decoder ---

// go-mp3 always produces 16-bit stereo.
type mp3Decoder struct {
	dec *mp3.Decoder
}

func newMP3Decoder(f *os.File) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}
	return &mp3Decoder{dec: dec}, nil
}

func (d *mp3Decoder) Read(p []byte) (int, error) { return d.dec.Read(p) }
func (d *mp3Decoder) SampleRate() int            { return d.dec.SampleRate() }
func (d *mp3Decoder) ChannelCount() int          { return 2 }

// --- WAV decoder ---

type wavDecoder struct {
	file        *os.File
	pending     pending
	sampleRate  int
	channels    int
	srcBitDepth int
}

func newWAVDecoder(f *os.File) (*wavDecoder, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	// FwdToPCM positions the reader at the start of PCM data
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}
	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedFormat, bitDepth)
	}
	return &wavDecoder{
		file:        f,
		sampleRate:  int(dec.SampleRate),
		channels:    int(dec.NumChans),
		srcBitDepth: bitDepth,
	}, nil
}

func (d *wavDecoder) Read(p []byte) (int, error) {
	if n, ok := d.pending.drain(p); ok {
		return n, nil
	}

	srcBytesPerSample := d.srcBitDepth / 8
	numOutputSamples := len(p) / 2
	if numOutputSamples == 0 {
		numOutputSamples = 1
	}
	srcBytes := make([]byte, numOutputSamples*srcBytesPerSample)
	n, err := io.ReadFull(d.file, srcBytes)
	samplesRead := n / srcBytesPerSample
	if samplesRead == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, err
	}

	raw := make([]byte, samplesRead*2)
	for i := range samplesRead {
		var sample int
		off := i * srcBytesPerSample
		switch d.srcBitDepth {
		case 8:
			// 8-bit WAV is unsigned
			sample = (int(srcBytes[off]) - 128) << 8
		case 16:
			sample = int(int16(binary.LittleEndian.Uint16(srcBytes[off:])))
		case 24:
			s := int32(srcBytes[off]) | int32(srcBytes[off+1])<<8 | int32(srcBytes[off+2])<<16
			if s&0x800000 != 0 {
				s |= ^0xFFFFFF // sign extend
			}
			sample = int(s >> 8)
		case 32:
			sample = int(int32(binary.LittleEndian.Uint32(srcBytes[off:])) >> 16)
		}
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(clamp16(sample)))
	}

	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return d.pending.emit(p, raw), err
}

func (d *wavDecoder) SampleRate() int   { return d.sampleRate }
func (d *wavDecoder) ChannelCount() int { return d.channels }

// --- FLAC decoder ---

type flacDecoder struct {
	stream     *flac.Stream
	pending    pending
	sampleRate int
	channels   int
	bps        int
}

func newFLACDecoder(f *os.File) (*flacDecoder, error) {
	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	info := stream.Info
	return &flacDecoder{
		stream:     stream,
		sampleRate: int(info.SampleRate),
		channels:   int(info.NChannels),
		bps:        int(info.BitsPerSample),
	}, nil
}

func (d *flacDecoder) Read(p []byte) (int, error) {
	if n, ok := d.pending.drain(p); ok {
		return n, nil
	}

	frame, err := d.stream.ParseNext()
	if err != nil {
		return 0, err
	}

	nSamples := int(frame.Subframes[0].NSamples)
	raw := make([]byte, nSamples*d.channels*2)
	for i := range nSamples {
		for ch := range d.channels {
			sample := int(frame.Subframes[ch].Samples[i])
			switch {
			case d.bps > 16:
				sample >>= (d.bps - 16)
			case d.bps < 16:
				sample <<= (16 - d.bps)
			}
			offset := (i*d.channels + ch) * 2
			binary.LittleEndian.PutUint16(raw[offset:], uint16(clamp16(sample)))
		}
	}
	return d.pending.emit(p, raw), nil
}

func (d *flacDecoder) SampleRate() int   { return d.sampleRate }
func (d *flacDecoder) ChannelCount() int { return d.channels }

// --- OGG Vorbis decoder ---

type oggDecoder struct {
	reader  *oggvorbis.Reader
	pending pending
}

func newOGGDecoder(f *os.File) (*oggDecoder, error) {
	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	return &oggDecoder{reader: reader}, nil
}

func (d *oggDecoder) Read(p []byte) (int, error) {
	if n, ok := d.pending.drain(p); ok {
		return n, nil
	}

	samples := make([]float32, max(len(p)/2, d.reader.Channels()))
	n, err := d.reader.Read(samples)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	raw := make([]byte, n*2)
	for i := range n {
		s := min(max(samples[i], -1), 1)
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(int16(s*32767)))
	}
	return d.pending.emit(p, raw), err
}

func (d *oggDecoder) SampleRate() int   { return d.reader.SampleRate() }
func (d *oggDecoder) ChannelCount() int { return d.reader.Channels() }
