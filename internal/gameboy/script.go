package gameboy

import (
	"github.com/thelolagemann/gbcore/internal/io"
)

// Step is a register write performed by a Script, Delay cycles after the
// previous one.
type Step struct {
	Delay uint64
	Addr  uint16
	Value uint8
}

// Script is a CPU that performs a fixed sequence of bus writes, then
// idles. It stands in for a program when exercising the hardware.
type Script struct {
	steps []Step
	pos   int
	wait  uint64
}

// NewScript returns a Script performing steps in order.
func NewScript(steps ...Step) *Script {
	s := &Script{steps: steps}
	if len(steps) > 0 {
		s.wait = steps[0].Delay
	}
	return s
}

// Done reports whether every step has been performed.
func (s *Script) Done() bool {
	return s.pos >= len(s.steps)
}

// Run implements CPU.
func (s *Script) Run(b *io.Bus, cc, until uint64) uint64 {
	for !s.Done() {
		if s.wait > until-cc {
			s.wait -= until - cc
			return until
		}
		cc += s.wait
		step := s.steps[s.pos]
		b.Write(step.Addr, cc, step.Value)
		s.pos++
		if !s.Done() {
			s.wait = s.steps[s.pos].Delay
		}
		if b.NextEventTime() <= cc {
			return cc
		}
	}
	return until
}
