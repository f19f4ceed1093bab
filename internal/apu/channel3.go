package apu

import (
	"github.com/thelolagemann/gbcore/internal/savestate"
	"github.com/thelolagemann/gbcore/internal/scheduler"
)

// channel3 is the wave channel (NR30 - NR34). It plays the 32 4-bit samples
// held in wave RAM, one every (2048-freq) sound cycles.
//
// While it plays, wave RAM accesses go to the byte the channel is reading.
// The CGB always allows them; the DMG only in the sound cycle the channel
// fetched that byte, otherwise reads return 0xFF and writes are dropped.
type channel3 struct {
	waveRAM [16]byte
	length  lengthCounter
	out     output

	waveCounter  uint64
	lastReadTime uint64

	nr0       uint8 // DAC, bit 7
	nr3       uint8
	nr4       uint8
	rshift    uint8
	wavePos   uint8
	sampleBuf uint8
	master    bool
	cgb       bool
}

func newChannel3(cgb bool) *channel3 {
	c := &channel3{cgb: cgb, waveCounter: disabled, lastReadTime: disabled, rshift: 7}
	c.length = newLengthCounter(c, 0xFF)
	return c
}

func (c *channel3) period() uint64 {
	return 0x800 - (uint64(c.nr4&7)<<8 | uint64(c.nr3))
}

func (c *channel3) disableMaster() {
	c.master = false
	c.waveCounter = disabled
}

func (c *channel3) setNr0(v uint8) {
	c.nr0 = v & 0x80
	if c.nr0 == 0 {
		c.disableMaster()
	}
}

func (c *channel3) setNr1(v uint8, sc uint64) {
	c.length.nr1Change(v, c.nr4, sc)
}

func (c *channel3) setNr2(v uint8) {
	// 0: mute, 1: 100%, 2: 50%, 3: 25%
	c.rshift = (v>>5&3 - 1) & 7
}

func (c *channel3) setNr3(v uint8) {
	c.nr3 = v
}

func (c *channel3) setNr4(v uint8, sc uint64) {
	c.length.nr4Change(c.nr4, v, sc)
	c.nr4 = v & 0x7F

	if v&c.nr0 == 0 {
		return
	}

	// retriggering on the DMG while the channel is about to fetch a byte
	// corrupts the start of wave RAM
	if !c.cgb && c.master && c.waveCounter == sc+1 {
		pos := ((c.wavePos + 1) & 0x1F) >> 1
		if pos < 4 {
			c.waveRAM[0] = c.waveRAM[pos]
		} else {
			copy(c.waveRAM[:4], c.waveRAM[pos&^3:pos&^3+4])
		}
	}

	c.master = true
	c.wavePos = 0
	c.waveCounter = sc + c.period() + 3
	c.lastReadTime = c.waveCounter
}

func (c *channel3) sample() int32 {
	return int32((c.sampleBuf>>(^c.wavePos<<2&4)&0xF)>>c.rshift)*2 - 15
}

func (c *channel3) step() {
	c.lastReadTime = c.waveCounter
	c.waveCounter += c.period()
	c.wavePos = (c.wavePos + 1) & 0x1F
	c.sampleBuf = c.waveRAM[c.wavePos>>1]
}

func (c *channel3) update(s *sink, base stereo, sc, cycles uint64) {
	if c.nr0 == 0 {
		base = stereo{}
	}
	end := sc + cycles
	cc := sc

	for {
		next := min64(c.length.counter, end)
		lvl := int32(-15)
		if c.master {
			lvl = c.sample()
		}
		for c.waveCounter <= next {
			if cc < end {
				s.emit(&c.out, s.base+cc-sc, base.l*lvl, base.r*lvl)
			}
			cc = c.waveCounter
			c.step()
			lvl = c.sample()
		}
		if cc < next {
			s.emit(&c.out, s.base+cc-sc, base.l*lvl, base.r*lvl)
			cc = next
		}

		if c.length.counter != next {
			break
		}
		c.length.event()
	}
}

func (c *channel3) readWave(index uint8, sc uint64) uint8 {
	if c.master {
		if !c.cgb && sc != c.lastReadTime {
			return 0xFF
		}
		index = c.wavePos >> 1
	}
	return c.waveRAM[index&0xF]
}

func (c *channel3) writeWave(index uint8, sc uint64, v uint8) {
	if c.master {
		if !c.cgb && sc != c.lastReadTime {
			return
		}
		index = c.wavePos >> 1
	}
	c.waveRAM[index&0xF] = v
}

func (c *channel3) rebase(dec uint64) {
	c.waveCounter = scheduler.Rebase(c.waveCounter, dec)
	if c.lastReadTime != disabled && c.lastReadTime < dec {
		c.lastReadTime = disabled
	} else {
		c.lastReadTime = scheduler.Rebase(c.lastReadTime, dec)
	}
	c.length.rebase(dec)
}

func (c *channel3) reset() {
	c.length.counter = disabled
	c.waveCounter = disabled
	c.lastReadTime = disabled
	c.nr0, c.nr3, c.nr4 = 0, 0, 0
	c.rshift = 7
	c.wavePos = 0
	c.sampleBuf = 0
	c.master = false
}

func (c *channel3) save(st *savestate.SPU) {
	copy(st.Regs[0x20:0x30], c.waveRAM[:])
	st.Ch3.WaveCounter = c.waveCounter
	st.Ch3.LastReadTime = c.lastReadTime
	st.Ch3.LenCounter = c.length.counter
	st.Ch3.LengthCounter = c.length.lengthCounter
	st.Ch3.WavePos = c.wavePos
	st.Ch3.SampleBuf = c.sampleBuf
	st.Ch3.Nr4 = c.nr4
	st.Ch3.Master = c.master
	st.Ch3.PrevL, st.Ch3.PrevR = c.out.l, c.out.r
}

func (c *channel3) load(st *savestate.SPU, sc uint64) {
	copy(c.waveRAM[:], st.Regs[0x20:0x30])
	c.nr0 = st.Regs[0x0A] & 0x80
	c.setNr2(st.Regs[0x0C])
	c.nr3 = st.Regs[0x0D]
	c.nr4 = st.Ch3.Nr4
	c.master = st.Ch3.Master && c.nr0 != 0
	c.waveCounter = disabled
	if c.master {
		c.waveCounter = clampSound(st.Ch3.WaveCounter, sc)
	}
	c.lastReadTime = st.Ch3.LastReadTime
	c.length.counter = clampSound(st.Ch3.LenCounter, sc)
	c.length.lengthCounter = st.Ch3.LengthCounter
	c.wavePos = st.Ch3.WavePos & 0x1F
	c.sampleBuf = st.Ch3.SampleBuf
	c.out = output{st.Ch3.PrevL, st.Ch3.PrevR}
}
