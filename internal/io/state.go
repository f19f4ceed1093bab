package io

import (
	"github.com/thelolagemann/gbcore/internal/savestate"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
)

// SaveState stores the bus and every component in st. st.CPU.CycleCounter
// must already hold the cycle the snapshot is taken at.
func (b *Bus) SaveState(st *savestate.State) {
	m := &st.Mem
	m.IOAMHRAM = b.ioamhram
	m.WRAM = b.wram
	m.SVBK = b.svbk
	m.Key1 = b.key1
	m.DoubleSpeed = b.ds != 0
	m.Stopped = b.stopped
	m.UnhaltTime = b.irq.EventTime(scheduler.Unhalt)

	m.OAMDMAPos = b.oamDMAPos
	m.OAMDMASource = b.oamDMASrc
	m.OAMDMALatch = b.oamDMALatch
	m.OAMDMAActive = b.oamDMAActive
	m.NextOAMDMATime = b.irq.EventTime(scheduler.OAM)

	m.DMATime = b.irq.EventTime(scheduler.DMA)
	m.DMASource = b.dmaSrc
	m.DMADest = b.dmaDst
	m.DMABlocks = b.dmaBlocks
	m.HDMAActive = b.hdmaActive
	m.GDMAActive = b.gdmaActive

	b.irq.SaveState(st)
	b.serial.SaveState(st)
	b.timer.SaveState(st)
	b.ppu.SaveState(st)
	b.apu.SaveState(st)
}

// LoadState restores the bus and every component from st, then
// republishes every event. The interrupt state goes first, as the other
// components schedule through it.
func (b *Bus) LoadState(st *savestate.State) {
	cc := st.CPU.CycleCounter
	m := &st.Mem

	b.irq.LoadState(st)

	b.ioamhram = m.IOAMHRAM
	b.wram = m.WRAM
	b.svbk = m.SVBK & 7
	if !b.cgb {
		b.svbk = 1
	}
	b.key1 = m.Key1 & 1
	b.ds = types.Bool(m.DoubleSpeed)
	if !b.cgb {
		b.ds = 0
	}
	b.stopped = m.Stopped
	b.frameDone = false

	b.oamDMASrc = m.OAMDMASource
	b.oamDMAPos = min(m.OAMDMAPos, oamSize)
	b.oamDMALatch = m.OAMDMALatch
	b.oamDMAActive = m.OAMDMAActive

	b.dmaSrc = m.DMASource
	b.dmaDst = m.DMADest & 0x1FF0
	b.dmaBlocks = m.DMABlocks
	b.hdmaActive = b.cgb && m.HDMAActive
	b.gdmaActive = b.cgb && m.GDMAActive

	b.timer.LoadState(st)
	b.serial.LoadState(st)
	b.ppu.LoadState(st)
	b.apu.LoadState(st)

	unhalt := scheduler.Disabled
	if b.stopped {
		unhalt = savestate.Clamp(m.UnhaltTime, cc)
		if unhalt == scheduler.Disabled {
			unhalt = cc
		}
	}
	b.irq.SetEventTime(scheduler.Unhalt, unhalt)

	oam := scheduler.Disabled
	if b.oamDMAActive || b.oamDMAPos < oamSize {
		oam = savestate.Clamp(m.NextOAMDMATime, cc)
	}
	b.irq.SetEventTime(scheduler.OAM, oam)

	dma := scheduler.Disabled
	if b.gdmaActive || b.hdmaActive {
		dma = savestate.Clamp(m.DMATime, cc)
	}
	b.irq.SetEventTime(scheduler.DMA, dma)

	b.irq.SetEventTime(scheduler.End, scheduler.Disabled)
	b.irq.SetEventTime(scheduler.Blit, b.ppu.NextBlit(cc))
}
