package apu

import (
	"github.com/thelolagemann/gbcore/internal/savestate"
	"github.com/thelolagemann/gbcore/internal/scheduler"
)

// lfsr is channel 4's linear feedback shift register. Every period the
// register shifts right, with bit 0 XOR bit 1 fed into bit 14 (and bit 6
// as well in 7-bit mode). The channel is high while bit 0 is clear.
//
// While the channel is silent the register takes no events; the skipped
// periods are applied in closed form by updateBackupCounter, at most 15
// (6 in 7-bit mode) at a time, which gives the same register as stepping
// through them one by one.
type lfsr struct {
	counter       uint64
	backupCounter uint64
	reg           uint16
	nr3           uint8
	master        bool
}

func lfsrPeriod(nr3 uint8) uint64 {
	s := uint64(nr3>>4) + 3
	r := uint64(nr3 & 7)
	if r == 0 {
		r = 1
		s--
	}
	return r << s
}

// step advances the register by one period.
func (l *lfsr) step() {
	shifted := l.reg >> 1
	xored := (l.reg ^ shifted) & 1
	l.reg = shifted | xored<<14
	if l.nr3&8 != 0 {
		l.reg = l.reg&^0x40 | xored<<6
	}
}

// advance applies n periods to the register.
func (l *lfsr) advance(n uint64) {
	reg := uint64(l.reg)
	if l.nr3&8 != 0 {
		for n > 6 {
			xored := (reg<<1 ^ reg) & 0x7E
			reg = reg>>6&^0x7E | xored | xored<<8
			n -= 6
		}
		xored := ((reg ^ reg>>1) << (7 - n)) & 0x7F
		reg = reg>>n&^(0x80-(0x80>>n)) | xored | xored<<8
	} else {
		for n >= 15 {
			r := reg ^ reg>>1
			reg = r ^ (r&1)<<14
			n -= 15
		}
		if n > 0 {
			reg = reg>>n | ((reg^reg>>1)<<(15-n))&0x7FFF
		}
	}
	l.reg = uint16(reg & 0x7FFF)
}

func (l *lfsr) updateBackupCounter(sc uint64) {
	if l.backupCounter > sc {
		return
	}
	period := lfsrPeriod(l.nr3)
	periods := (sc-l.backupCounter)/period + 1
	l.backupCounter += periods * period
	if l.master && l.nr3 < 0xE0 {
		l.advance(periods)
	}
}

func (l *lfsr) event() {
	if l.nr3 < 0xE0 {
		l.step()
	}
	l.counter += lfsrPeriod(l.nr3)
	l.backupCounter = l.counter
}

func (l *lfsr) high() bool {
	return ^l.reg&1 != 0
}

func (l *lfsr) nr3Change(v uint8, sc uint64) {
	l.updateBackupCounter(sc)
	l.nr3 = v
}

func (l *lfsr) nr4Init(sc uint64) {
	l.disableMaster()
	l.updateBackupCounter(sc)
	l.master = true
	l.backupCounter += 4
	l.counter = l.backupCounter
}

func (l *lfsr) killCounter() {
	l.counter = disabled
}

func (l *lfsr) reviveCounter(sc uint64) {
	l.updateBackupCounter(sc)
	l.counter = l.backupCounter
}

func (l *lfsr) disableMaster() {
	l.killCounter()
	l.master = false
	l.reg = 0x7FFF
}

func (l *lfsr) reset(sc uint64) {
	l.nr3 = 0
	l.disableMaster()
	l.backupCounter = sc + lfsrPeriod(0)
}

// channel4 is the noise channel (NR41 - NR44).
type channel4 struct {
	lfsr   lfsr
	env    envelopeUnit
	length lengthCounter
	out    output

	nr4    uint8
	routed bool
	master bool
}

func newChannel4() *channel4 {
	c := &channel4{}
	c.length = newLengthCounter(c, 0x3F)
	c.env.counter = disabled
	c.lfsr.counter = disabled
	c.lfsr.reg = 0x7FFF
	return c
}

func (c *channel4) disableMaster() {
	c.master = false
	c.lfsr.disableMaster()
	c.env.counter = disabled
}

// staticOutputTest runs the shift register on events only while the
// channel can be heard.
func (c *channel4) staticOutputTest(sc uint64) {
	if c.master && c.routed {
		if c.lfsr.counter == disabled {
			c.lfsr.reviveCounter(sc)
		}
	} else if c.lfsr.counter != disabled {
		c.lfsr.updateBackupCounter(sc)
		c.lfsr.killCounter()
	}
}

func (c *channel4) setRouted(routed bool, sc uint64) {
	c.routed = routed
	c.staticOutputTest(sc)
}

func (c *channel4) setNr1(v uint8, sc uint64) {
	c.length.nr1Change(v, c.nr4, sc)
}

func (c *channel4) setNr2(v uint8, sc uint64) {
	if c.env.nr2Change(v) {
		c.disableMaster()
	} else {
		c.staticOutputTest(sc)
	}
}

func (c *channel4) setNr3(v uint8, sc uint64) {
	c.lfsr.nr3Change(v, sc)
	if c.lfsr.counter != disabled {
		c.lfsr.counter = c.lfsr.backupCounter
	}
}

func (c *channel4) setNr4(v uint8, sc uint64) {
	c.length.nr4Change(c.nr4, v, sc)
	c.nr4 = v & 0x7F
	if v&0x80 != 0 {
		c.master = !c.env.nr4Init(sc)
		if c.master {
			c.lfsr.nr4Init(sc)
		}
	}
	c.staticOutputTest(sc)
}

func (c *channel4) update(s *sink, base stereo, sc, cycles uint64) {
	if !c.env.dacOn() {
		base = stereo{}
	}
	end := sc + cycles
	cc := sc

	for {
		low := stereo{base.l * -15, base.r * -15}
		high := low
		if c.master {
			v := int32(c.env.volume)*2 - 15
			high = stereo{base.l * v, base.r * v}
		}
		next := min64(min64(c.length.counter, c.env.counter), end)

		out := low
		if c.lfsr.high() {
			out = high
		}
		for c.lfsr.counter <= next {
			if cc < end {
				s.emit(&c.out, s.base+cc-sc, out.l, out.r)
			}
			cc = c.lfsr.counter
			c.lfsr.event()
			out = low
			if c.lfsr.high() {
				out = high
			}
		}
		if cc < next {
			s.emit(&c.out, s.base+cc-sc, out.l, out.r)
			cc = next
		}

		switch {
		case c.env.counter == next:
			c.env.event()
		case c.length.counter == next:
			c.length.event()
		default:
			return
		}
	}
}

func (c *channel4) rebase(sc, dec uint64) {
	c.lfsr.updateBackupCounter(sc)
	c.lfsr.counter = scheduler.Rebase(c.lfsr.counter, dec)
	c.lfsr.backupCounter = scheduler.Rebase(c.lfsr.backupCounter, dec)
	c.env.rebase(dec)
	c.length.rebase(dec)
}

func (c *channel4) reset(sc uint64) {
	c.lfsr.reset(sc)
	c.env.reset()
	c.length.counter = disabled
	c.nr4 = 0
	c.master = false
}

func (c *channel4) save(st *savestate.SPU) {
	st.Ch4.Counter = c.lfsr.counter
	st.Ch4.BackupCounter = c.lfsr.backupCounter
	st.Ch4.Reg = c.lfsr.reg
	st.Ch4.Events = c.lfsr.counter != disabled
	st.Ch4.EnvCounter = c.env.counter
	st.Ch4.Volume = c.env.volume
	st.Ch4.LenCounter = c.length.counter
	st.Ch4.LengthCounter = c.length.lengthCounter
	st.Ch4.Nr4 = c.nr4
	st.Ch4.Master = c.master
	st.Ch4.PrevL, st.Ch4.PrevR = c.out.l, c.out.r
}

func (c *channel4) load(st *savestate.SPU, sc uint64) {
	c.env.nr2 = st.Regs[0x11]
	c.env.volume = st.Ch4.Volume & 0xF
	c.env.counter = clampSound(st.Ch4.EnvCounter, sc)
	c.length.counter = clampSound(st.Ch4.LenCounter, sc)
	c.length.lengthCounter = st.Ch4.LengthCounter
	c.lfsr.nr3 = st.Regs[0x12]
	c.lfsr.reg = st.Ch4.Reg & 0x7FFF
	c.lfsr.backupCounter = st.Ch4.BackupCounter
	c.lfsr.counter = disabled
	if st.Ch4.Events {
		c.lfsr.counter = clampSound(st.Ch4.Counter, sc)
		c.lfsr.backupCounter = c.lfsr.counter
	}
	c.nr4 = st.Ch4.Nr4
	c.master = st.Ch4.Master
	c.lfsr.master = c.master
	c.routed = st.Regs[0x15]&0x88 != 0
	c.out = output{st.Ch4.PrevL, st.Ch4.PrevR}
}
