package capture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeMonoWAV(t *testing.T, path string, rate int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

func TestFileStreamsDecodedStereoFloats(t *testing.T) {
	const rate = 8000
	data := make([]int, 800)
	for i := range data {
		data[i] = i*37%20000 - 10000
	}
	path := filepath.Join(t.TempDir(), "ramp.wav")
	writeMonoWAV(t, path, rate, data)

	src, err := NewFile(path, Options{SampleRate: 44100, FragmentMillis: 10})
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	if src.SampleRate() != rate {
		t.Fatalf("SampleRate() = %d, want %d", src.SampleRate(), rate)
	}
	if src.Name() != "ramp" {
		t.Fatalf("Name() = %q, want %q", src.Name(), "ramp")
	}

	sink := &collectSink{}
	if err := src.Start(sink); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// End of input finishes the source without a Stop.
	if err := src.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if got := sink.count(); got != 10 {
		t.Fatalf("delivered %d chunks, want 10", got)
	}
	samples := sink.samples()
	if len(samples) != 2*len(data) {
		t.Fatalf("delivered %d samples, want %d", len(samples), 2*len(data))
	}
	for i, v := range data {
		want := float32(v) / 32768
		if samples[2*i] != want || samples[2*i+1] != want {
			t.Fatalf("frame %d = (%v, %v), want %v on both channels", i, samples[2*i], samples[2*i+1], want)
		}
	}
}

func TestFileStopsEarly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.wav")
	writeMonoWAV(t, path, 8000, make([]int, 8000*5))

	src, err := NewFile(path, Options{FragmentMillis: 10})
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	sink := &collectSink{}
	if err := src.Start(sink); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, func() bool { return sink.count() >= 2 })
	src.Stop()
	if err := src.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if sink.count() >= 500 {
		t.Fatal("source ran to completion despite Stop")
	}
}

func TestNewFileRejectsUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFile(path, Options{}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestReadMetadataFallsBackToFilename(t *testing.T) {
	meta := ReadMetadata("/music/Some Track.wav")
	if meta.Title != "Some Track" {
		t.Fatalf("Title = %q, want %q", meta.Title, "Some Track")
	}
	if meta.Artist != "" {
		t.Fatalf("Artist = %q, want empty", meta.Artist)
	}
}

func TestUpmixReaderDuplicatesSamples(t *testing.T) {
	src := &sliceReader{data: []byte{1, 2, 3, 4}}
	u := &upmixReader{src: src}
	p := make([]byte, 8)
	n, _ := u.Read(p)
	if n != 8 {
		t.Fatalf("Read() = %d bytes, want 8", n)
	}
	want := []byte{1, 2, 1, 2, 3, 4, 3, 4}
	for i := range want {
		if p[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, p[i], want[i])
		}
	}
}

type sliceReader struct{ data []byte }

func (r *sliceReader) Read(p []byte) (int, error) {
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestCloseReleasesUnstartedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idle.wav")
	writeMonoWAV(t, path, 8000, make([]int, 80))

	src, err := NewFile(path, Options{})
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := src.file.Read(make([]byte, 1)); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("expected file closed, got %v", err)
	}
}
