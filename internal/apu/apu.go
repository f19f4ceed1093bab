package apu

import (
	"github.com/thelolagemann/gbcore/internal/savestate"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
)

const (
	// SampleRate is the rate of the generated samples, one per sound cycle.
	SampleRate = 2097152

	// rebaseThreshold bounds the sound cycle counter. Rebasing by a
	// multiple of 0x8000 keeps every unit in phase with the frame
	// sequencer.
	rebaseThreshold = 1<<30 + 0x8000
	rebaseAmount    = 1 << 30
)

// readMasks holds the bits of 0xFF10 - 0xFF2F that always read back set.
var readMasks = [0x20]uint8{
	0x80, 0x3F, 0x00, 0xFF, 0xBF, // NR10 - NR14
	0xFF, 0x3F, 0x00, 0xFF, 0xBF, // NR20 - NR24
	0x7F, 0xFF, 0x9F, 0xFF, 0xBF, // NR30 - NR34
	0xFF, 0xFF, 0x00, 0x00, 0xBF, // NR40 - NR44
	0x00, 0x00, 0x70, // NR50 - NR52
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
}

func clampSound(t, sc uint64) uint64 {
	return scheduler.Clamp(t, sc)
}

// APU represents the GameBoy's audio processing unit. It comprises 4
// channels: 2 pulse channels, a wave channel and a noise channel. Each
// channel is controlled by a set of registers, 0xFF10 - 0xFF3F.
//
// Channels are not ticked. Whenever the machine touches a sound register
// the APU first catches up to the access cycle with GenerateSamples, which
// runs every channel from one unit event to the next and only writes the
// change in output level (a delta) at the sound cycle it happens.
// FillBuffer then turns those deltas into levels.
type APU struct {
	ch1 *channel1
	ch2 *channel2
	ch3 *channel3
	ch4 *channel4

	regs [0x20]uint8

	buf        []int32
	bufferPos  uint64
	sink       sink
	sumL, sumR int32

	sc         uint64 // sound cycle counter
	lastUpdate uint64 // machine cycle sc was last brought up to

	enabled bool
	cgb     bool
}

// New returns a powered off APU.
func New(cgb bool) *APU {
	a := &APU{
		ch1: newChannel1(cgb),
		ch2: newChannel2(),
		ch3: newChannel3(cgb),
		ch4: newChannel4(),
		cgb: cgb,
	}
	a.Reset(0)
	return a
}

// Reset powers the APU off and clears every register, with the machine
// clock at cc.
func (a *APU) Reset(cc uint64) {
	a.regs = [0x20]uint8{}
	a.enabled = false
	a.lastUpdate = cc
	a.sc = 0x1000
	a.bufferPos = 0
	a.sink.carryL, a.sink.carryR = 0, 0
	a.resetChannels()
	a.resetLengths()
}

func (a *APU) resetLengths() {
	a.ch1.length.reset()
	a.ch2.length.reset()
	a.ch3.length.reset()
	a.ch4.length.reset()
}

func (a *APU) resetChannels() {
	a.ch1.reset(a.sc)
	a.ch2.reset(a.sc)
	a.ch3.reset()
	a.ch4.reset(a.sc)
	a.ch4.routed = a.regs[0x15]&0x88 != 0
}

// SetBuffer sets the buffer samples are generated into, as interleaved
// left/right pairs. Samples still pending in the previous buffer are
// dropped, keeping their effect on the output level.
func (a *APU) SetBuffer(buf []int32) {
	a.drain()
	for i := range buf {
		buf[i] = 0
	}
	a.buf = buf
	a.sink.buf = buf
	a.sink.limit = uint64(len(buf) / 2)
}

func (a *APU) drain() {
	n := a.bufferPos
	if n > a.sink.limit {
		n = a.sink.limit
	}
	for i := uint64(0); i < n; i++ {
		a.sumL += a.buf[2*i]
		a.sumR += a.buf[2*i+1]
	}
	a.sumL += a.sink.carryL
	a.sumR += a.sink.carryR
	a.sink.carryL, a.sink.carryR = 0, 0
	a.bufferPos = 0
}

// GenerateSamples brings the channels up to machine cycle cc. ds is 1 in
// double speed mode.
func (a *APU) GenerateSamples(cc uint64, ds uint8) {
	shift := 1 + ds
	cycles := (cc - a.lastUpdate) >> shift
	a.lastUpdate += cycles << shift
	if cycles != 0 {
		a.accumulate(cycles)
	}
}

// base returns the per side multiplier for channel n from NR50 and NR51.
func (a *APU) base(n uint) stereo {
	nr50, nr51 := a.regs[0x14], a.regs[0x15]
	var b stereo
	if nr51&(0x10<<n) != 0 {
		b.l = int32(nr50>>4&7) + 1
	}
	if nr51&(1<<n) != 0 {
		b.r = int32(nr50&7) + 1
	}
	return b
}

func (a *APU) accumulate(cycles uint64) {
	start, end := a.bufferPos, a.bufferPos+cycles
	if end > a.sink.limit {
		end = a.sink.limit
	}
	for i := start; i < end; i++ {
		a.buf[2*i] = 0
		a.buf[2*i+1] = 0
	}

	a.sink.base = a.bufferPos
	a.ch1.update(&a.sink, a.base(0), a.sc, cycles)
	a.ch2.update(&a.sink, a.base(1), a.sc, cycles)
	a.ch3.update(&a.sink, a.base(2), a.sc, cycles)
	a.ch4.update(&a.sink, a.base(3), a.sc, cycles)

	a.sc += cycles
	a.bufferPos += cycles

	if a.sc >= rebaseThreshold {
		a.ch1.rebase(a.sc, rebaseAmount)
		a.ch2.rebase(a.sc, rebaseAmount)
		a.ch3.rebase(rebaseAmount)
		a.ch4.rebase(a.sc, rebaseAmount)
		a.sc -= rebaseAmount
	}
}

// FillBuffer turns the deltas generated since the last call into output
// levels and returns the number of stereo samples now in the buffer.
// Samples past the end of the buffer are lost.
func (a *APU) FillBuffer() int {
	n := a.bufferPos
	if n > a.sink.limit {
		n = a.sink.limit
	}
	l, r := a.sumL, a.sumR
	for i := uint64(0); i < n; i++ {
		l += a.buf[2*i]
		r += a.buf[2*i+1]
		a.buf[2*i], a.buf[2*i+1] = l, r
	}
	a.sumL = l + a.sink.carryL
	a.sumR = r + a.sink.carryR
	a.sink.carryL, a.sink.carryR = 0, 0
	a.bufferPos = 0
	return int(n)
}

// IsEnabled reports whether the APU is powered on (NR52 bit 7).
func (a *APU) IsEnabled() bool {
	return a.enabled
}

// ChannelActive reports whether channel n (1 - 4) is playing.
func (a *APU) ChannelActive(n int) bool {
	switch n {
	case 1:
		return a.ch1.master
	case 2:
		return a.ch2.master
	case 3:
		return a.ch3.master
	case 4:
		return a.ch4.master
	}
	return false
}

func (a *APU) nr52() uint8 {
	v := uint8(0x70)
	if a.enabled {
		v |= types.Bit7
	}
	v |= types.Bool(a.ch1.master)
	v |= types.Bool(a.ch2.master) << 1
	v |= types.Bool(a.ch3.master) << 2
	v |= types.Bool(a.ch4.master) << 3
	return v
}

// Read returns the value of the sound register at addr, as seen at machine
// cycle cc.
func (a *APU) Read(addr uint16, cc uint64, ds uint8) uint8 {
	switch {
	case addr >= types.WaveRAM && addr <= types.WaveRAM+0xF:
		a.GenerateSamples(cc, ds)
		return a.ch3.readWave(uint8(addr-types.WaveRAM), a.sc)
	case addr == types.NR52:
		a.GenerateSamples(cc, ds)
		return a.nr52()
	case addr >= types.NR10 && addr < types.WaveRAM:
		i := addr - types.NR10
		return a.regs[i] | readMasks[i]
	}
	return 0xFF
}

// Write writes v to the sound register at addr at machine cycle cc.
func (a *APU) Write(addr uint16, cc uint64, ds uint8, v uint8) {
	if addr < types.NR10 || addr > types.WaveRAM+0xF {
		return
	}
	a.GenerateSamples(cc, ds)

	switch {
	case addr >= types.WaveRAM:
		a.ch3.writeWave(uint8(addr-types.WaveRAM), a.sc, v)
	case addr == types.NR52:
		a.setNr52(v)
	case a.enabled:
		a.write(addr, v)
	case !a.cgb:
		// the length counters stay writable while powered off
		switch addr {
		case types.NR11, types.NR21:
			a.write(addr, v&0x3F)
		case types.NR31, types.NR41:
			a.write(addr, v)
		}
	}
}

func (a *APU) write(addr uint16, v uint8) {
	sc := a.sc
	switch addr {
	case types.NR10:
		a.ch1.setNr0(v)
	case types.NR11:
		a.ch1.setNr1(v, sc)
	case types.NR12:
		a.ch1.setNr2(v)
	case types.NR13:
		a.ch1.setNr3(v, sc)
	case types.NR14:
		a.ch1.setNr4(v, sc)
	case types.NR21:
		a.ch2.setNr1(v, sc)
	case types.NR22:
		a.ch2.setNr2(v)
	case types.NR23:
		a.ch2.setNr3(v, sc)
	case types.NR24:
		a.ch2.setNr4(v, sc)
	case types.NR30:
		a.ch3.setNr0(v)
	case types.NR31:
		a.ch3.setNr1(v, sc)
	case types.NR32:
		a.ch3.setNr2(v)
	case types.NR33:
		a.ch3.setNr3(v)
	case types.NR34:
		a.ch3.setNr4(v, sc)
	case types.NR41:
		a.ch4.setNr1(v, sc)
	case types.NR42:
		a.ch4.setNr2(v, sc)
	case types.NR43:
		a.ch4.setNr3(v, sc)
	case types.NR44:
		a.ch4.setNr4(v, sc)
	case types.NR51:
		a.ch4.setRouted(v&0x88 != 0, sc)
	case types.NR50:
	default:
		return
	}
	a.regs[addr-types.NR10] = v
}

func (a *APU) setNr52(v uint8) {
	on := v&types.Bit7 != 0
	if on == a.enabled {
		return
	}

	if !on {
		for addr := types.NR10; addr <= types.NR51; addr++ {
			switch addr {
			case types.NR11, types.NR21, types.NR31, types.NR41:
				if !a.cgb {
					continue
				}
			}
			a.write(addr, 0)
		}
		if !a.cgb {
			// only the duty survives the length counters
			a.ch1.duty.nr1Change(0, a.sc)
			a.ch2.duty.nr1Change(0, a.sc)
			a.regs[types.NR11-types.NR10] &= 0x3F
			a.regs[types.NR21-types.NR10] &= 0x3F
		} else {
			a.resetLengths()
		}
		a.resetChannels()
		a.enabled = false
		return
	}

	a.sc = 0x1000 | a.sc&0xFFF
	a.resetChannels()
	a.enabled = true
}

// Rebase subtracts dec from the machine cycle the APU was last updated at.
func (a *APU) Rebase(dec uint64) {
	a.lastUpdate -= dec
}

// SaveState brings the APU up to the snapshot's cycle and stores it in st.
// The saved sums are the output level with every pending sample applied.
func (a *APU) SaveState(st *savestate.State) {
	a.GenerateSamples(st.CPU.CycleCounter, types.Bool(st.Mem.DoubleSpeed))

	spu := &st.SPU
	copy(spu.Regs[:0x20], a.regs[:])
	spu.CycleCounter = a.sc
	spu.LastUpdate = a.lastUpdate
	spu.Enabled = a.enabled
	spu.SumL = a.ch1.out.l + a.ch2.out.l + a.ch3.out.l + a.ch4.out.l
	spu.SumR = a.ch1.out.r + a.ch2.out.r + a.ch3.out.r + a.ch4.out.r

	a.ch1.save(spu)
	a.ch2.save(&spu.Ch2)
	a.ch3.save(spu)
	a.ch4.save(spu)
}

// LoadState restores the APU from st. Samples not yet collected with
// FillBuffer are discarded.
func (a *APU) LoadState(st *savestate.State) {
	spu := &st.SPU
	copy(a.regs[:], spu.Regs[:0x20])
	a.regs[0x16] = 0
	a.sc = spu.CycleCounter
	a.lastUpdate = spu.LastUpdate
	if cc := st.CPU.CycleCounter; a.lastUpdate > cc {
		a.lastUpdate = cc
	}
	a.enabled = spu.Enabled
	a.sumL, a.sumR = spu.SumL, spu.SumR
	a.bufferPos = 0
	a.sink.carryL, a.sink.carryR = 0, 0

	a.ch1.load(spu, a.sc)
	a.ch2.load(&spu.Ch2, spu.Regs[0x06], spu.Regs[0x07], a.sc)
	a.ch3.load(spu, a.sc)
	a.ch4.load(spu, a.sc)
}
