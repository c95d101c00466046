package ui

import "github.com/charmbracelet/harmonica"

// springField animates one position per bar toward its latest level.
type springField struct {
	spring harmonica.Spring
	pos    []float64
	vel    []float64
}

func newSpringField(fps int, frequency, damping float64) springField {
	if fps < 1 {
		fps = 1
	}
	return springField{spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping)}
}

func (s *springField) resize(n int) {
	if len(s.pos) == n {
		return
	}
	s.pos = make([]float64, n)
	s.vel = make([]float64, n)
}

func (s *springField) step(i int, target float64) float64 {
	p, v := s.spring.Update(s.pos[i], s.vel[i], target)
	s.pos[i] = p
	s.vel[i] = v
	return p
}

// set places bar i at rest on value, so enabling springs starts from the
// current display.
func (s *springField) set(i int, value float64) {
	s.pos[i] = value
	s.vel[i] = 0
}
