package capture

import (
	"encoding/binary"
	"math"
	"time"
)

// s16ToFloat converts interleaved s16le PCM to interleaved f32le, upmixing
// mono to stereo. dst is grown as needed and returned.
func s16ToFloat(dst, src []byte, channels int) []byte {
	samples := len(src) / 2
	outSamples := samples
	if channels == 1 {
		outSamples *= 2
	}
	if cap(dst) < outSamples*bytesPerSample {
		dst = make([]byte, outSamples*bytesPerSample)
	}
	dst = dst[:outSamples*bytesPerSample]

	o := 0
	for i := range samples {
		v := float32(int16(binary.LittleEndian.Uint16(src[i*2:]))) / 32768
		bits := math.Float32bits(v)
		binary.LittleEndian.PutUint32(dst[o:], bits)
		o += bytesPerSample
		if channels == 1 {
			binary.LittleEndian.PutUint32(dst[o:], bits)
			o += bytesPerSample
		}
	}
	return dst
}

// floatsToBytes encodes samples as f32le into dst.
func floatsToBytes(dst []byte, samples []float32) []byte {
	n := len(samples) * bytesPerSample
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*bytesPerSample:], math.Float32bits(s))
	}
	return dst
}

// pacer releases chunks at the rate the audio would play.
type pacer struct {
	start  time.Time
	rate   int
	frames int64
}

func newPacer(rate int) *pacer {
	return &pacer{start: time.Now(), rate: rate}
}

// wait blocks until the given number of further frames is due, or stop
// closes. It reports false when stopped.
func (p *pacer) wait(frames int, stop <-chan struct{}) bool {
	p.frames += int64(frames)
	due := p.start.Add(time.Duration(p.frames) * time.Second / time.Duration(p.rate))
	d := time.Until(due)
	if d <= 0 {
		select {
		case <-stop:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}
