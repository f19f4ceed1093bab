package io

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thelolagemann/gbcore/internal/interrupts"
	"github.com/thelolagemann/gbcore/internal/savestate"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
)

func newTestBus(m types.Model) *Bus {
	b := NewBus(m, nil)
	b.Reset(0)
	return b
}

// run services events until cc, returning the cycle counter reached.
func run(b *Bus, cc, until uint64) uint64 {
	for {
		next := b.NextEventTime()
		if next > until {
			return until
		}
		if next > cc {
			cc = next
		}
		cc, _ = b.Event(cc)
	}
}

type recordingInterrupter struct {
	vectors []uint16
}

func (r *recordingInterrupter) Interrupt(vector uint16, cc uint64) uint64 {
	r.vectors = append(r.vectors, vector)
	return cc + dispatchCycles
}

type romCartridge []byte

func (r romCartridge) Read(addr uint16, _ uint64) uint8 {
	if int(addr) < len(r) {
		return r[addr]
	}
	return 0xFF
}

func (romCartridge) Write(uint16, uint64, uint8) {}

func TestBus_Reset(t *testing.T) {
	b := newTestBus(types.DMGABC)

	assert.Equal(t, uint8(0x91), b.Read(types.LCDC, 0))
	assert.Equal(t, uint8(0xFC), b.Read(types.BGP, 0))
	assert.Equal(t, uint8(0xE1), b.Read(types.IF, 0))
	assert.Equal(t, uint8(0xFF), b.Read(types.DMA, 0))
	assert.Equal(t, uint8(0xAB), b.Read(types.DIV, 0))
	assert.True(t, b.Sound().IsEnabled())
	assert.False(t, b.OAMDMAActive())
	assert.Equal(t, uint8(0xFF), b.Read(0x0100, 0), "no cartridge inserted")
	assert.NotEqual(t, scheduler.Disabled, b.Requester().EventTime(scheduler.Blit))
}

func TestBus_Cartridge(t *testing.T) {
	b := newTestBus(types.DMGABC)
	b.AttachCartridge(romCartridge{0x00, 0x3C, 0xC9})
	assert.Equal(t, uint8(0x3C), b.Read(0x0001, 0))

	b.AttachCartridge(nil)
	assert.Equal(t, uint8(0xFF), b.Read(0x0001, 0))
}

func TestBus_WRAM(t *testing.T) {
	t.Run("echo", func(t *testing.T) {
		b := newTestBus(types.DMGABC)
		b.Write(0xC123, 0, 0x42)
		assert.Equal(t, uint8(0x42), b.Read(0xE123, 0))
		b.Write(0xF000, 0, 0x24)
		assert.Equal(t, uint8(0x24), b.Read(0xD000, 0))
	})
	t.Run("CGB banking", func(t *testing.T) {
		b := newTestBus(types.CGBABC)
		b.Write(0xD000, 0, 1)
		b.Write(types.SVBK, 0, 2)
		assert.Equal(t, uint8(0xFA), b.Read(types.SVBK, 0))
		assert.Equal(t, uint8(0), b.Read(0xD000, 0))
		b.Write(0xD000, 0, 2)

		b.Write(types.SVBK, 0, 0)
		assert.Equal(t, uint8(1), b.Read(0xD000, 0), "bank 0 selects bank 1")
		b.Write(types.SVBK, 0, 2)
		assert.Equal(t, uint8(2), b.Read(0xD000, 0))
	})
	t.Run("DMG ignores SVBK", func(t *testing.T) {
		b := newTestBus(types.DMGABC)
		b.Write(0xD000, 0, 1)
		b.Write(types.SVBK, 0, 2)
		assert.Equal(t, uint8(0xFF), b.Read(types.SVBK, 0))
		assert.Equal(t, uint8(1), b.Read(0xD000, 0))
	})
}

func TestBus_HRAMAndIE(t *testing.T) {
	b := newTestBus(types.DMGABC)
	b.Write(0xFF80, 0, 0x12)
	assert.Equal(t, uint8(0x12), b.Read(0xFF80, 0))

	b.Write(types.IE, 0, 0xFF)
	assert.Equal(t, uint8(0xFF), b.Read(types.IE, 0), "IE keeps every bit")
	assert.Equal(t, uint8(0x1F), b.Requester().IE())
}

func TestBus_VRAMAccess(t *testing.T) {
	b := newTestBus(types.DMGABC)

	// line 1, mode 2
	b.Write(0x8000, 456+10, 0x55)
	assert.Equal(t, uint8(0x55), b.Read(0x8000, 456+20))

	// line 1, mode 3
	assert.Equal(t, uint8(0xFF), b.Read(0x8000, 456+100))
	b.Write(0x8000, 456+110, 0xAA)
	assert.Equal(t, uint8(0x55), b.Read(0x8000, 456+400))
}

func TestBus_OAMDMA(t *testing.T) {
	b := newTestBus(types.DMGABC)
	b.Write(types.LCDC, 0, 0x11)
	for i := uint16(0); i < oamSize; i++ {
		b.Write(0xC000+i, 0, uint8(i)+1)
	}

	const start = 100
	b.Write(types.DMA, start, 0xC0)
	assert.Equal(t, uint8(0xC0), b.Read(types.DMA, start))

	cc := run(b, start, start+4+10*oamDMAStep)
	require.True(t, b.OAMDMAActive())
	assert.Equal(t, uint8(0xFF), b.Read(0xFE00, cc), "OAM is held by the transfer")
	assert.Equal(t, uint8(0xFF), b.Read(0xFEA0, cc))
	assert.Equal(t, uint8(11), b.Read(0xC050, cc), "conflicting reads see the moving byte")
	assert.Equal(t, uint8(11), b.Read(0x0000, cc), "ROM shares the external bus")
	assert.NotEqual(t, uint8(11), b.Read(0xFF80, cc), "HRAM is free")

	b.Write(0xC050, cc, 0x99)
	b.Write(0x8000, cc, 0x77)
	assert.Equal(t, uint8(0x77), b.Read(0x8000, cc), "VRAM is on its own bus")

	cc = run(b, cc, start+4+oamSize*oamDMAStep+oamDMAStep)
	assert.False(t, b.OAMDMAActive())
	for i := uint16(0); i < oamSize; i++ {
		assert.Equal(t, uint8(i)+1, b.Read(0xFE00+i, cc))
	}
	assert.Equal(t, uint8(0x51), b.Read(0xC050, cc), "writes during the transfer were dropped")
	assert.Equal(t, scheduler.Disabled, b.Requester().EventTime(scheduler.OAM))
}

func TestBus_OAMDMAConflictsCGB(t *testing.T) {
	b := newTestBus(types.CGBABC)
	b.Write(types.LCDC, 0, 0x11)
	b.AttachCartridge(romCartridge{0x3C})
	b.Write(0xC002, 0, 0x42)

	b.Write(types.DMA, 0, 0xC0)
	cc := run(b, 0, 12)
	require.True(t, b.OAMDMAActive())
	assert.Equal(t, uint8(0x3C), b.Read(0x0000, cc), "WRAM has its own bus on the CGB")
	assert.Equal(t, uint8(0x42), b.Read(0xD000, cc))
}

func TestBus_GDMA(t *testing.T) {
	b := newTestBus(types.CGBABC)
	b.Write(types.LCDC, 0, 0x11)
	for i := uint16(0); i < 32; i++ {
		b.Write(0xC000+i, 0, uint8(i)^0xA5)
	}

	b.Write(types.HDMA1, 0, 0xC0)
	b.Write(types.HDMA2, 0, 0x00)
	b.Write(types.HDMA3, 0, 0x01)
	b.Write(types.HDMA4, 0, 0x00)
	b.Write(types.HDMA5, 100, 0x01)

	cc, next := b.Event(100)
	assert.Equal(t, uint64(100+2*(hdmaSetup+blockLength*2)), cc, "the CPU is stalled for the copy")
	assert.Greater(t, next, cc)
	assert.Equal(t, uint8(0xFF), b.Read(types.HDMA5, cc))
	for i := uint16(0); i < 32; i++ {
		assert.Equal(t, uint8(i)^0xA5, b.Read(0x8100+i, cc))
	}
}

func TestBus_GDMAStopsAtVRAMEnd(t *testing.T) {
	b := newTestBus(types.CGBABC)
	b.Write(types.LCDC, 0, 0x11)
	b.Write(types.HDMA1, 0, 0xC0)
	b.Write(types.HDMA2, 0, 0x00)
	b.Write(types.HDMA3, 0, 0x1F)
	b.Write(types.HDMA4, 0, 0xF0)
	b.Write(types.HDMA5, 0, 0x7F)

	cc, _ := b.Event(0)
	assert.Equal(t, uint64(hdmaSetup+blockLength*2), cc, "only one block fits")
	assert.Equal(t, uint8(0xFF), b.Read(types.HDMA5, cc))
}

func TestBus_HDMA(t *testing.T) {
	b := newTestBus(types.CGBABC)
	for i := uint16(0); i < 32; i++ {
		b.Write(0xC000+i, 0, uint8(i)+1)
	}
	b.Write(types.HDMA1, 0, 0xC0)
	b.Write(types.HDMA2, 0, 0x00)
	b.Write(types.HDMA3, 0, 0x00)
	b.Write(types.HDMA4, 0, 0x00)
	b.Write(types.HDMA5, 10, 0x81)
	assert.Equal(t, uint8(0x01), b.Read(types.HDMA5, 10))
	assert.True(t, b.HDMAActive())

	// one block at the start of each mode 0
	cc := run(b, 10, 240)
	assert.Equal(t, uint8(0x01), b.Read(types.HDMA5, cc))
	cc = run(b, cc, 400)
	assert.Equal(t, uint8(0x00), b.Read(types.HDMA5, cc))
	assert.Equal(t, uint8(1), b.Read(0x8000, cc))
	assert.Equal(t, uint8(0), b.Read(0x8010, cc))

	cc = run(b, cc, 456+400)
	assert.Equal(t, uint8(0xFF), b.Read(types.HDMA5, cc))
	assert.False(t, b.HDMAActive())
	for i := uint16(0); i < 32; i++ {
		assert.Equal(t, uint8(i)+1, b.Read(0x8000+i, cc))
	}
}

func TestBus_HDMACancel(t *testing.T) {
	b := newTestBus(types.CGBABC)
	b.Write(types.HDMA5, 10, 0x85)
	b.Write(types.HDMA5, 20, 0x00)
	assert.False(t, b.HDMAActive())
	assert.Equal(t, uint8(0x85), b.Read(types.HDMA5, 20), "remaining length is kept")
	assert.False(t, b.Video().HDMAEnabled())
}

func TestBus_InterruptDispatch(t *testing.T) {
	b := newTestBus(types.DMGABC)
	rec := &recordingInterrupter{}
	b.AttachInterrupter(rec)

	b.Write(types.IF, 0, 0)
	b.Write(types.IE, 0, interrupts.TimerFlag|interrupts.SerialFlag)
	b.EI(0)
	b.Write(types.IF, 10, interrupts.TimerFlag|interrupts.SerialFlag)

	cc, _ := b.Event(10)
	require.Equal(t, []uint16{0x50}, rec.vectors, "only the highest priority is taken")
	assert.Equal(t, uint64(10+dispatchCycles), cc)
	assert.False(t, b.IME())
	assert.Equal(t, uint8(0xE0|interrupts.SerialFlag), b.Read(types.IF, cc))
	assert.True(t, b.Requester().Consistent())

	b.EI(cc)
	b.Event(cc + 1)
	assert.Equal(t, []uint16{0x50, 0x58}, rec.vectors)
}

func TestBus_HaltWake(t *testing.T) {
	b := newTestBus(types.DMGABC)
	rec := &recordingInterrupter{}
	b.AttachInterrupter(rec)
	b.Write(types.IF, 0, 0)
	b.Write(types.IE, 0, interrupts.TimerFlag)

	b.Halt(0)
	assert.True(t, b.Halted())
	b.Write(types.IF, 10, interrupts.TimerFlag)
	b.Event(10)
	assert.False(t, b.Halted())
	assert.Empty(t, rec.vectors, "IME is off")
	assert.Equal(t, uint8(0xE0|interrupts.TimerFlag), b.Read(types.IF, 10))
}

func TestBus_SpeedSwitch(t *testing.T) {
	b := newTestBus(types.CGBABC)
	assert.Equal(t, uint8(0x7E), b.Read(types.KEY1, 0))

	b.Write(types.KEY1, 0, 0x01)
	assert.Equal(t, uint8(0x7F), b.Read(types.KEY1, 0))

	b.Stop(100)
	assert.True(t, b.DoubleSpeed())
	assert.True(t, b.Halted())
	assert.Equal(t, uint8(0xFE), b.Read(types.KEY1, 100))

	cc := run(b, 100, 100+stopCycles)
	assert.False(t, b.Halted())

	// and back
	b.Write(types.KEY1, cc, 0x01)
	b.Stop(cc)
	assert.False(t, b.DoubleSpeed())
}

func TestBus_StopWithoutSwitch(t *testing.T) {
	for _, m := range []types.Model{types.DMGABC, types.CGBABC} {
		b := newTestBus(m)
		b.Stop(100)
		assert.False(t, b.DoubleSpeed(), m.String())
		assert.False(t, b.Halted(), m.String())
	}

	b := newTestBus(types.DMGABC)
	b.Write(types.KEY1, 0, 0x01)
	assert.Equal(t, uint8(0xFF), b.Read(types.KEY1, 0))
}

func TestBus_EventsAreMonotonic(t *testing.T) {
	b := newTestBus(types.CGBABC)
	b.Write(types.TAC, 0, 0x05)
	b.Write(types.IE, 0, 0x1F)
	b.EI(0)
	b.Write(types.SC, 0, 0x81)
	b.Write(types.STAT, 0, 0x78)

	var cc uint64
	frames := 0
	for i := 0; i < 20000; i++ {
		next := b.NextEventTime()
		require.NotEqual(t, scheduler.Disabled, next)
		if next > cc {
			cc = next
		}
		var after uint64
		cc, after = b.Event(cc)
		require.Greater(t, after, cc, "iteration %d", i)
		require.True(t, b.Requester().Consistent(), "iteration %d", i)
		if !b.IME() {
			b.EI(cc)
		}
		if b.FrameDone() {
			frames++
		}
	}
	assert.Greater(t, frames, 0)
}

func TestBus_FrameDone(t *testing.T) {
	b := newTestBus(types.DMGABC)
	assert.False(t, b.FrameDone())

	run(b, 0, 144*456)
	assert.True(t, b.FrameDone())
	assert.False(t, b.FrameDone(), "the flag is cleared once read")
}

func TestBus_Rebase(t *testing.T) {
	b := NewBus(types.DMGABC, nil)
	const base = RebaseThreshold + 0x1234
	b.Reset(base)
	b.Write(types.TAC, base, 0x05)

	cc := uint64(base + 1000)
	div, tima, ly := b.Read(types.DIV, cc), b.Read(types.TIMA, cc), b.Read(types.LY, cc)
	next := b.NextEventTime()

	rebased := b.Rebase(cc)
	dec := cc - rebased
	assert.Less(t, rebased, uint64(0x10000))
	assert.Zero(t, dec&0xFFFF)
	assert.Equal(t, div, b.Read(types.DIV, rebased))
	assert.Equal(t, tima, b.Read(types.TIMA, rebased))
	assert.Equal(t, ly, b.Read(types.LY, rebased))
	assert.Equal(t, next-dec, b.NextEventTime())
}

func TestBus_StateRoundTrip(t *testing.T) {
	b := newTestBus(types.CGBABC)
	b.Write(types.TAC, 0, 0x05)
	b.Write(0xC000, 0, 0x42)
	b.Write(types.HDMA5, 0, 0x83)
	b.Write(types.DMA, 0, 0xC0)
	cc := run(b, 0, 600)

	var st savestate.State
	st.CPU.CycleCounter = cc
	b.SaveState(&st)

	c := NewBus(types.CGBABC, nil)
	c.Reset(0)
	c.LoadState(&st)

	for _, addr := range []uint16{types.DIV, types.TIMA, types.LY, types.STAT, types.HDMA5, 0xC000, types.IF} {
		assert.Equal(t, b.Read(addr, cc), c.Read(addr, cc), "%#04x", addr)
	}
	assert.Equal(t, b.HDMAActive(), c.HDMAActive())
	assert.Equal(t, b.OAMDMAActive(), c.OAMDMAActive())

	for i := 0; i < 200; i++ {
		ccB, nextB := b.Event(max(cc, b.NextEventTime()))
		ccC, nextC := c.Event(max(cc, c.NextEventTime()))
		require.Equal(t, ccB, ccC, "step %d", i)
		require.Equal(t, nextB, nextC, "step %d", i)
		cc = ccB
	}
	assert.Equal(t, b.Read(types.HDMA5, cc), c.Read(types.HDMA5, cc))
}
