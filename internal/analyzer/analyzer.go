// Package analyzer turns a stream of raw interleaved float32 sample chunks
// into smoothed per-band energy levels for a polling display.
//
// An Analyzer is paired with one capture.Source. The source's goroutine is
// the only producer (Ingest); any number of consumers may call Snapshot
// concurrently. Shutdown is two-phase: the source is told to stop and
// joined before the workspace is released, so no Ingest call can observe
// released state.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/olivier-w/climeter/internal/capture"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle position of an Analyzer.
type State uint8

const (
	Created State = iota
	Running
	Stopping
	Destroyed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Destroyed:
		return "destroyed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Analyzer owns one transform workspace and one band table. All mutable
// state is guarded by mu; cond is broadcast after every accepted chunk and
// on every state change.
type Analyzer struct {
	cfg    Config
	ranges []BandRange
	log    logrus.FieldLogger

	mu      sync.Mutex
	cond    *sync.Cond
	state    State
	running  bool
	starting bool // src.Start in progress; Shutdown waits for it
	engine  *engine
	agg     aggregator
	bands   []band
	gen     uint64
	source  capture.Source
}

// New validates cfg and allocates the workspace. On failure no Analyzer is
// returned. A nil logger discards output.
func New(cfg Config, logger logrus.FieldLogger) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.clone()
	if logger == nil {
		logger = discardLogger()
	}

	eng, err := newEngine(cfg.FFTSize)
	if err != nil {
		return nil, err
	}
	bands, err := allocBands(cfg)
	if err != nil {
		eng.release()
		return nil, err
	}

	ranges := make([]BandRange, len(bands))
	for i, b := range bands {
		ranges[i] = b.BandRange
	}

	a := &Analyzer{
		cfg:    cfg,
		ranges: ranges,
		log: logger.WithFields(logrus.Fields{
			"meter":  cfg.Label,
			"source": cfg.Source,
		}),
		engine: eng,
		agg:    aggregator{decay: cfg.DecayRate, sensitivity: cfg.Sensitivity},
		bands:  bands,
	}
	a.cond = sync.NewCond(&a.mu)

	a.log.WithFields(logrus.Fields{
		"fft_size":    cfg.FFTSize,
		"sample_rate": cfg.SampleRate,
		"decay":       cfg.DecayRate,
		"sensitivity": cfg.Sensitivity,
		"bands":       len(bands),
	}).Info("analyzer created")
	return a, nil
}

func allocBands(cfg Config) (bands []band, err error) {
	defer func() {
		if r := recover(); r != nil {
			bands = nil
			err = fmt.Errorf("%w: band table: %v", ErrAllocationFailed, r)
		}
	}()
	return newBands(cfg.Boundaries, cfg.FFTSize, cfg.SampleRate), nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Config returns the configuration the analyzer was built with.
func (a *Analyzer) Config() Config { return a.cfg.clone() }

// Bands returns the configured frequency ranges, one per band.
func (a *Analyzer) Bands() []BandRange {
	return append([]BandRange(nil), a.ranges...)
}

// State reports the current lifecycle state.
func (a *Analyzer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Start pairs the analyzer with src and starts it. The analyzer accepts
// chunks from the moment Start is called; if src fails to start the
// analyzer returns to Created. A concurrent Shutdown waits until src.Start
// has returned, so it always joins a source that has really started.
func (a *Analyzer) Start(src capture.Source) error {
	if src == nil {
		return errors.New("analyzer: nil capture source")
	}

	a.mu.Lock()
	switch a.state {
	case Running:
		a.mu.Unlock()
		return ErrAlreadyStarted
	case Stopping, Destroyed:
		a.mu.Unlock()
		return ErrClosed
	}
	a.state = Running
	a.running = true
	a.starting = true
	a.source = src
	a.cond.Broadcast()
	a.mu.Unlock()

	err := src.Start(a)

	a.mu.Lock()
	a.starting = false
	if err != nil && a.state == Running && a.source == src {
		a.state = Created
		a.running = false
		a.source = nil
	}
	a.cond.Broadcast()
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("starting capture %s: %w", src.Name(), err)
	}

	a.log.WithField("capture", src.Name()).Info("analyzer running")
	return nil
}

// Ingest transforms one raw chunk of interleaved little-endian float32
// samples and updates every band. It is called from the capture goroutine.
//
// Chunks arriving while the analyzer is not running are dropped without
// error, as are empty chunks. Malformed or oversized chunks are rejected
// and leave all state untouched.
func (a *Analyzer) Ingest(chunk []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running || len(chunk) == 0 {
		return nil
	}
	spectrum, err := a.engine.transform(chunk)
	if err != nil {
		return err
	}
	a.publish(spectrum)
	return nil
}

// IngestSamples is Ingest for producers that already hold float samples.
func (a *Analyzer) IngestSamples(samples []float32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running || len(samples) == 0 {
		return nil
	}
	spectrum, err := a.engine.transformSamples(samples)
	if err != nil {
		return err
	}
	a.publish(spectrum)
	return nil
}

// publish must be called with mu held.
func (a *Analyzer) publish(spectrum []complex128) {
	a.agg.update(spectrum, a.bands)
	a.gen++
	a.cond.Broadcast()
}

// Snapshot returns a copy of band i. An out-of-range index yields a zero
// Level and ErrIndexOutOfRange; callers should treat it as "no data".
func (a *Analyzer) Snapshot(i int) (Level, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == Destroyed {
		return Level{}, ErrClosed
	}
	if i < 0 || i >= len(a.bands) {
		return Level{}, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, i, len(a.bands))
	}
	return a.bands[i].level, nil
}

// Levels returns every band, all taken from the same update.
func (a *Analyzer) Levels() ([]Level, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == Destroyed {
		return nil, ErrClosed
	}
	out := make([]Level, len(a.bands))
	for i := range a.bands {
		out[i] = a.bands[i].level
	}
	return out, nil
}

// Generation counts accepted chunks.
func (a *Analyzer) Generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen
}

// WaitForUpdate blocks until more than after chunks have been accepted,
// the analyzer stops, or ctx is done. It returns the current generation.
func (a *Analyzer) WaitForUpdate(ctx context.Context, after uint64) (uint64, error) {
	stop := context.AfterFunc(ctx, func() {
		a.mu.Lock()
		a.cond.Broadcast()
		a.mu.Unlock()
	})
	defer stop()

	a.mu.Lock()
	defer a.mu.Unlock()
	for a.gen <= after {
		if a.state == Stopping || a.state == Destroyed {
			return a.gen, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return a.gen, err
		}
		a.cond.Wait()
	}
	return a.gen, nil
}

// Shutdown stops ingestion, asks the paired source to stop, joins it and
// then releases the workspace. It blocks until the source goroutine has
// exited. Only the first call does anything; later calls return nil.
//
// The returned error is the source's terminal error, if any. Resources are
// released either way because Wait only returns once the source can no
// longer call Ingest.
func (a *Analyzer) Shutdown() error {
	a.mu.Lock()
	for a.starting {
		a.cond.Wait()
	}
	if a.state == Stopping || a.state == Destroyed {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.state = Stopping
	src := a.source
	a.cond.Broadcast()
	a.mu.Unlock()

	var err error
	if src != nil {
		src.Stop()
		if werr := src.Wait(); werr != nil {
			err = fmt.Errorf("stopping capture %s: %w", src.Name(), werr)
			a.log.WithError(werr).Error("capture did not stop cleanly")
		}
	}

	a.mu.Lock()
	a.engine.release()
	a.engine = nil
	a.bands = nil
	a.source = nil
	a.state = Destroyed
	a.cond.Broadcast()
	a.mu.Unlock()

	a.log.Info("analyzer shut down")
	return err
}
