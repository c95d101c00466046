package capture

import (
	"errors"
	"sync"
	"testing"
)

// manualSource hands its sink to the test, which pushes chunks itself.
type manualSource struct {
	mu      sync.Mutex
	sink    Sink
	starts  int
	stopped bool
	waitErr error
}

func (m *manualSource) Name() string { return "manual" }

func (m *manualSource) Start(sink Sink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
	m.starts++
	return nil
}

func (m *manualSource) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *manualSource) Wait() error { return m.waitErr }

func (m *manualSource) push(chunk []byte) {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	_ = sink.Ingest(chunk)
}

func TestHubFansOutAndStopsWithLastTap(t *testing.T) {
	boom := errors.New("device gone")
	src := &manualSource{waitErr: boom}
	hub := NewHub(src, nil)

	a, b := hub.Tap(), hub.Tap()
	sa, sb := &collectSink{}, &collectSink{}
	if err := a.Start(sa); err != nil {
		t.Fatalf("tap a Start() error = %v", err)
	}
	if err := b.Start(sb); err != nil {
		t.Fatalf("tap b Start() error = %v", err)
	}
	if src.starts != 1 {
		t.Fatalf("shared source started %d times, want 1", src.starts)
	}

	src.push([]byte{1, 2, 3, 4})
	if sa.count() != 1 || sb.count() != 1 {
		t.Fatalf("expected one chunk per tap, got %d and %d", sa.count(), sb.count())
	}

	a.Stop()
	if err := a.Wait(); err != nil {
		t.Fatalf("first tap Wait() error = %v", err)
	}
	if src.stopped {
		t.Fatal("shared source stopped while a tap is still attached")
	}

	src.push([]byte{5, 6, 7, 8})
	if sa.count() != 1 {
		t.Fatal("detached tap still receiving chunks")
	}
	if sb.count() != 2 {
		t.Fatalf("remaining tap got %d chunks, want 2", sb.count())
	}

	b.Stop()
	if !src.stopped {
		t.Fatal("shared source not stopped with last tap")
	}
	if err := b.Wait(); !errors.Is(err, boom) {
		t.Fatalf("last tap Wait() = %v, want shared source error", err)
	}

	if err := hub.Tap().Start(&collectSink{}); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("expected ErrHubClosed, got %v", err)
	}
}

func TestHubTapWaitWithoutStart(t *testing.T) {
	hub := NewHub(&manualSource{}, nil)
	if err := hub.Tap().Wait(); err != nil {
		t.Fatalf("Wait() on unstarted tap = %v", err)
	}
}

func TestHubForwardsSamplesToEachSinkKind(t *testing.T) {
	src := &manualSource{}
	hub := NewHub(src, nil)

	floats, bytes := &floatSink{}, &collectSink{}
	if err := hub.Tap().Start(floats); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := hub.Tap().Start(bytes); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	in := []float32{0.25, -0.5, 1, 0}
	if err := hub.IngestSamples(in); err != nil {
		t.Fatalf("IngestSamples() error = %v", err)
	}

	got, chunks := floats.snapshot()
	if chunks != 0 || len(got) != len(in) {
		t.Fatalf("float sink got %d samples and %d chunks", len(got), chunks)
	}
	encoded := bytes.samples()
	for i := range in {
		if got[i] != in[i] || encoded[i] != in[i] {
			t.Fatalf("sample %d: float sink %v, byte sink %v, want %v", i, got[i], encoded[i], in[i])
		}
	}
}
