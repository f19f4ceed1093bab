package apu

import (
	"github.com/thelolagemann/gbcore/internal/savestate"
)

// square is a pulse channel: a duty unit shaped by an envelope and cut by
// a length counter. Channel 2 is a bare square, channel 1 adds a sweep.
type square struct {
	duty   dutyUnit
	env    envelopeUnit
	length lengthCounter
	out    output

	disabler masterDisabler
	nr4      uint8
	master   bool
}

// channel2 is the second square channel (NR21 - NR24).
type channel2 struct {
	square
}

func newChannel2() *channel2 {
	c := &channel2{}
	c.init(c)
	return c
}

func (c *square) init(d masterDisabler) {
	c.disabler = d
	c.length = newLengthCounter(d, 0x3F)
	c.env.counter = disabled
}

func (c *square) disableMaster() {
	c.master = false
	c.duty.kill()
	c.env.counter = disabled
}

func (c *square) setNr1(v uint8, sc uint64) {
	c.length.nr1Change(v, c.nr4, sc)
	c.duty.nr1Change(v, sc)
}

func (c *square) setNr2(v uint8) {
	if c.env.nr2Change(v) {
		c.disabler.disableMaster()
	}
}

func (c *square) setNr3(v uint8, sc uint64) {
	c.duty.nr3Change(v, sc)
}

// setNr4 applies a write to NRx4 and reports whether it was a trigger.
func (c *square) setNr4(v uint8, sc uint64) bool {
	c.length.nr4Change(c.nr4, v, sc)
	c.nr4 = v & 0x7F
	c.duty.nr4Change(v, sc, c.master)
	if v&0x80 == 0 {
		return false
	}
	c.master = !c.env.nr4Init(sc)
	return true
}

// staticOutputTest starts or stops duty events to follow the master flag.
func (c *square) staticOutputTest(sc uint64) {
	if c.master {
		c.duty.revive(sc)
	} else {
		c.duty.kill()
	}
}

func (c *channel2) setNr4(v uint8, sc uint64) {
	c.square.setNr4(v, sc)
	c.staticOutputTest(sc)
}

// levels returns the output for the current envelope volume when the duty
// is high, and the output when it is low.
func (c *square) levels(base stereo) (high, low stereo) {
	low = stereo{base.l * -15, base.r * -15}
	if !c.master {
		return low, low
	}
	v := int32(c.env.volume)*2 - 15
	return stereo{base.l * v, base.r * v}, low
}

// majorEvent services the length or envelope event due at t and reports
// whether there was one.
func (c *square) majorEvent(t uint64) bool {
	switch {
	case c.env.counter == t:
		c.env.event()
	case c.length.counter == t:
		c.length.event()
	default:
		return false
	}
	return true
}

// run accumulates cycles sound cycles starting at sc into s. sw is the
// sweep unit of channel 1, or nil.
func (c *square) run(s *sink, base stereo, sc, cycles uint64, sw *sweepUnit) {
	if !c.env.dacOn() {
		base = stereo{}
	}
	end := sc + cycles
	cc := sc

	for {
		high, low := c.levels(base)
		next := min64(min64(c.length.counter, c.env.counter), end)
		if sw != nil {
			next = min64(next, sw.counter)
		}

		out := low
		if c.duty.high {
			out = high
		}
		for c.duty.counter() <= next {
			t := c.duty.counter()
			if cc < end {
				s.emit(&c.out, s.base+cc-sc, out.l, out.r)
			}
			cc = t
			c.duty.event()
			out = low
			if c.duty.high {
				out = high
			}
		}
		if cc < next {
			s.emit(&c.out, s.base+cc-sc, out.l, out.r)
			cc = next
		}

		if sw != nil && sw.counter == next {
			sw.event()
			continue
		}
		if !c.majorEvent(next) {
			break
		}
	}
}

func (c *channel2) update(s *sink, base stereo, sc, cycles uint64) {
	c.run(s, base, sc, cycles, nil)
}

func (c *square) rebase(sc, dec uint64) {
	c.duty.rebase(sc, dec)
	c.env.rebase(dec)
	c.length.rebase(dec)
}

func (c *square) reset(sc uint64) {
	c.duty.reset(sc)
	c.env.reset()
	c.length.counter = disabled
	c.nr4 = 0
	c.master = false
}

func (c *square) save(st *savestate.Square) {
	st.NextPosUpdate = c.duty.nextPosUpdate
	st.Freq = c.duty.freq
	st.Pos = c.duty.pos
	st.DutyEvents = c.duty.events
	st.EnvCounter = c.env.counter
	st.Volume = c.env.volume
	st.LenCounter = c.length.counter
	st.LengthCounter = c.length.lengthCounter
	st.Nr4 = c.nr4
	st.Master = c.master
	st.PrevL, st.PrevR = c.out.l, c.out.r
}

// load restores the channel from st. nr1 and nr2 are the register values,
// which carry the duty and envelope settings.
func (c *square) load(st *savestate.Square, nr1, nr2 uint8, sc uint64) {
	c.duty.freq = st.Freq & 0x7FF
	c.duty.period = toPeriod(c.duty.freq)
	c.duty.duty = nr1 >> 6
	c.duty.pos = st.Pos & 7
	c.duty.high = dutyHigh(c.duty.duty, c.duty.pos)
	c.duty.nextPosUpdate = st.NextPosUpdate
	c.duty.events = st.DutyEvents
	if c.duty.events {
		c.duty.nextPosUpdate = clampSound(st.NextPosUpdate, sc)
	}
	c.env.nr2 = nr2
	c.env.volume = st.Volume & 0xF
	c.env.counter = clampSound(st.EnvCounter, sc)
	c.length.counter = clampSound(st.LenCounter, sc)
	c.length.lengthCounter = st.LengthCounter
	c.nr4 = st.Nr4
	c.master = st.Master
	c.out = output{st.PrevL, st.PrevR}
}
