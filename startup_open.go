package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/olivier-w/climeter/internal/analyzer"
	"github.com/olivier-w/climeter/internal/capture"
	"github.com/olivier-w/climeter/internal/ui"
	"github.com/sirupsen/logrus"
)

var errQuitDuringStartup = errors.New("quit while the source was opening")

// session is a running meter set: one analyzer per meter, all fed from a
// single capture source.
type session struct {
	title  string
	meters []*analyzer.Analyzer
	log    logrus.FieldLogger
}

// openSession validates every meter, opens the source and starts the
// analyzers. Several meters share the source through a capture.Hub.
func openSession(c cliConfig, log logrus.FieldLogger) (*session, error) {
	cfgs := c.analyzerConfigs()
	for _, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("meter %s: %w", cfg.Label, err)
		}
	}

	src, err := capture.Open(c.source, capture.Options{
		SampleRate:     c.sampleRate,
		Channels:       2,
		FragmentMillis: c.fragment,
		MaxChunkBytes:  cfgs[0].Capacity() * 4,
		Play:           c.play,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", c.source, err)
	}

	// File sources run at their native rate; bin mapping must follow it.
	if r, ok := src.(interface{ SampleRate() int }); ok && r.SampleRate() > 0 {
		for i := range cfgs {
			cfgs[i].SampleRate = r.SampleRate()
		}
	}

	s := &session{title: sourceTitle(src), log: log}
	for _, cfg := range cfgs {
		a, err := analyzer.New(cfg, log)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("meter %s: %w", cfg.Label, err), s.shutdown(), closeIdle(src))
		}
		s.meters = append(s.meters, a)
	}

	if len(s.meters) == 1 {
		if err := s.meters[0].Start(src); err != nil {
			return nil, errors.Join(err, s.shutdown())
		}
		return s, nil
	}

	hub := capture.NewHub(src, log)
	for _, a := range s.meters {
		if err := a.Start(hub.Tap()); err != nil {
			return nil, errors.Join(err, s.shutdown())
		}
	}
	return s, nil
}

// closeIdle releases a source that no meter managed to start.
func closeIdle(src capture.Source) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func sourceTitle(src capture.Source) string {
	if f, ok := src.(*capture.File); ok {
		meta := f.Metadata()
		if meta.Artist != "" {
			return meta.Artist + " - " + meta.Title
		}
		return meta.Title
	}
	return src.Name()
}

// shutdown stops every meter and joins their capture. Errors from all
// meters are reported together.
func (s *session) shutdown() error {
	var errs []error
	for _, a := range s.meters {
		if err := a.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err == nil {
		s.log.Info("shutdown complete")
	}
	return err
}

func (s *session) model(c cliConfig) ui.Model {
	meters := make([]ui.Meter, len(s.meters))
	for i, a := range s.meters {
		meters[i] = a
	}
	return ui.New(meters, ui.Options{
		Title:    s.title,
		Interval: c.interval,
		BarWidth: c.width,
	})
}

// sessionHolder hands the session opened by the startup screen to main.
// A session that finishes opening after main has shut down is refused.
type sessionHolder struct {
	mu     sync.Mutex
	sess   *session
	closed bool
}

func (h *sessionHolder) set(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sess = s
	return true
}

func (h *sessionHolder) shutdown() error {
	h.mu.Lock()
	h.closed = true
	s := h.sess
	h.sess = nil
	h.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.shutdown()
}
