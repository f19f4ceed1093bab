package apu

import (
	"github.com/thelolagemann/gbcore/internal/savestate"
	"github.com/thelolagemann/gbcore/internal/scheduler"
)

// sweepUnit periodically shifts channel 1's frequency (NR10). A result past
// 2047 silences the channel, as does leaving negate mode after a negated
// calculation.
type sweepUnit struct {
	disabler masterDisabler
	duty     *dutyUnit
	counter  uint64
	shadow   uint16
	nr0      uint8
	negging  bool
	cgb      bool
}

func (s *sweepUnit) calcFreq() uint16 {
	f := s.shadow >> (s.nr0 & 7)
	if s.nr0&8 != 0 {
		f = s.shadow - f
		s.negging = true
	} else {
		f = s.shadow + f
	}
	if f&2048 != 0 {
		s.disabler.disableMaster()
	}
	return f
}

func (s *sweepUnit) event() {
	period := uint64(s.nr0 >> 4 & 7)
	if period == 0 {
		s.counter += 8 << 14
		return
	}

	f := s.calcFreq()
	if f&2048 == 0 && s.nr0&7 != 0 {
		s.shadow = f
		s.duty.setFreq(f, s.counter)
		s.calcFreq()
	}
	if s.counter == disabled {
		// silenced by the overflow check
		return
	}
	s.counter += period << 14
}

func (s *sweepUnit) nr0Change(v uint8) {
	if s.negging && v&8 == 0 {
		s.disabler.disableMaster()
	}
	s.nr0 = v
}

func (s *sweepUnit) nr4Init(sc uint64) {
	s.negging = false
	s.shadow = s.duty.freq

	period := uint64(s.nr0 >> 4 & 7)
	shift := s.nr0 & 7
	if period != 0 || shift != 0 {
		if period == 0 {
			period = 8
		}
		cgb := uint64(0)
		if s.cgb {
			cgb = 2
		}
		s.counter = ((((sc + 2 + cgb) >> 14) + period) << 14) + 2
	} else {
		s.counter = disabled
	}

	if shift != 0 {
		s.calcFreq()
	}
}

func (s *sweepUnit) reset() {
	s.counter = disabled
	s.shadow = 0
	s.nr0 = 0
	s.negging = false
}

// channel1 is the first square channel (NR10 - NR14), the only one with a
// frequency sweep.
type channel1 struct {
	square
	sweep sweepUnit
}

func newChannel1(cgb bool) *channel1 {
	c := &channel1{}
	c.init(c)
	c.sweep = sweepUnit{disabler: c, duty: &c.duty, counter: disabled, cgb: cgb}
	return c
}

func (c *channel1) disableMaster() {
	c.square.disableMaster()
	c.sweep.counter = disabled
}

func (c *channel1) setNr0(v uint8) {
	c.sweep.nr0Change(v)
}

func (c *channel1) setNr4(v uint8, sc uint64) {
	if c.square.setNr4(v, sc) {
		c.sweep.nr4Init(sc)
	}
	c.staticOutputTest(sc)
}

func (c *channel1) update(s *sink, base stereo, sc, cycles uint64) {
	c.run(s, base, sc, cycles, &c.sweep)
}

func (c *channel1) rebase(sc, dec uint64) {
	c.square.rebase(sc, dec)
	c.sweep.counter = scheduler.Rebase(c.sweep.counter, dec)
}

func (c *channel1) reset(sc uint64) {
	c.square.reset(sc)
	c.sweep.reset()
}

func (c *channel1) save(st *savestate.SPU) {
	c.square.save(&st.Ch1)
	st.Sweep.Counter = c.sweep.counter
	st.Sweep.Shadow = c.sweep.shadow
	st.Sweep.Negging = c.sweep.negging
}

func (c *channel1) load(st *savestate.SPU, sc uint64) {
	c.square.load(&st.Ch1, st.Regs[0x01], st.Regs[0x02], sc)
	c.sweep.nr0 = st.Regs[0x00]
	c.sweep.counter = clampSound(st.Sweep.Counter, sc)
	c.sweep.shadow = st.Sweep.Shadow & 0x7FF
	c.sweep.negging = st.Sweep.Negging
}
