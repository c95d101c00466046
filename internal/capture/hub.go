package capture

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrHubClosed is returned when a tap starts after the hub's source has
// already been stopped.
var ErrHubClosed = errors.New("capture hub closed")

// Hub shares one Source among several sinks. Each consumer gets its own
// Tap, which is itself a Source: stopping a tap detaches its sink at once
// and the shared source is stopped with the last tap.
type Hub struct {
	src Source
	log logrus.FieldLogger

	mu     sync.Mutex // guards taps, active and closed
	active int
	closed bool

	deliverMu sync.RWMutex // held for reading while a chunk is delivered
	sinks     map[*Tap]Sink
}

// NewHub wraps src. src must not be started by anyone else.
func NewHub(src Source, logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = Options{}.withDefaults().Logger
	}
	return &Hub{
		src:   src,
		log:   logger.WithField("capture", src.Name()),
		sinks: make(map[*Tap]Sink),
	}
}

// Tap returns a new consumer endpoint.
func (h *Hub) Tap() *Tap {
	return &Tap{hub: h}
}

// Ingest fans a chunk out to every attached sink.
func (h *Hub) Ingest(chunk []byte) error {
	h.deliverMu.RLock()
	defer h.deliverMu.RUnlock()
	for _, sink := range h.sinks {
		deliver(sink, chunk, h.log)
	}
	return nil
}

// IngestSamples fans float samples out, handing them on as floats to every
// sink that accepts them.
func (h *Hub) IngestSamples(samples []float32) error {
	h.deliverMu.RLock()
	defer h.deliverMu.RUnlock()
	var scratch []byte
	for _, sink := range h.sinks {
		deliverSamples(sink, samples, &scratch, h.log)
	}
	return nil
}

func (h *Hub) attach(t *Tap, sink Sink) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}

	h.deliverMu.Lock()
	h.sinks[t] = sink
	h.deliverMu.Unlock()

	h.active++
	if h.active == 1 {
		if err := h.src.Start(h); err != nil && !errors.Is(err, ErrAlreadyStarted) {
			h.active--
			h.deliverMu.Lock()
			delete(h.sinks, t)
			h.deliverMu.Unlock()
			return err
		}
	}
	return nil
}

// detach removes t's sink; once it returns no delivery to that sink is in
// flight. It reports whether t was the last attached tap.
func (h *Hub) detach(t *Tap) (last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.deliverMu.Lock()
	_, ok := h.sinks[t]
	delete(h.sinks, t)
	h.deliverMu.Unlock()
	if !ok {
		return false
	}

	h.active--
	if h.active == 0 {
		h.closed = true
		h.src.Stop()
		return true
	}
	return false
}

// Tap is one consumer's view of a Hub.
type Tap struct {
	hub  *Hub
	once sync.Once
	last bool
}

func (t *Tap) Name() string { return t.hub.src.Name() }

func (t *Tap) Start(sink Sink) error { return t.hub.attach(t, sink) }

func (t *Tap) Stop() {
	t.once.Do(func() { t.last = t.hub.detach(t) })
}

// Wait returns once the tap is detached. The last tap also joins the
// shared source and returns its error.
func (t *Tap) Wait() error {
	t.Stop()
	if t.last {
		return t.hub.src.Wait()
	}
	return nil
}
