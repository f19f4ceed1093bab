package io

import (
	"github.com/thelolagemann/gbcore/internal/scheduler"
)

const (
	oamSize     = 0xA0
	oamDMAStep  = 4  // cycles per byte moved
	hdmaSetup   = 4  // cycles before the first byte of a block moves
	blockLength = 16 // bytes per VRAM DMA block
)

// startOAMDMA starts a transfer from v<<8 to OAM. The first byte moves
// one M-cycle after the write. A transfer already running is restarted.
func (b *Bus) startOAMDMA(v uint8, cc uint64) {
	src := uint16(v) << 8
	if src >= 0xE000 {
		src -= 0x2000
	}
	b.oamDMASrc = src
	b.oamDMAPos = 0
	b.irq.SetEventTime(scheduler.OAM, cc+oamDMAStep)
}

// oamDMAEvent moves one byte of an OAM DMA transfer, or ends the transfer
// once every byte has moved.
func (b *Bus) oamDMAEvent(t uint64) {
	if b.oamDMAPos >= oamSize {
		if b.oamDMAActive {
			b.ppu.OAMChange(t)
		}
		b.oamDMAActive = false
		b.irq.SetEventTime(scheduler.OAM, scheduler.Disabled)
		return
	}

	b.oamDMAActive = true
	b.ppu.OAMChange(t)
	v := b.peek(b.oamDMASrc+uint16(b.oamDMAPos), t)
	b.oamDMALatch = v
	b.ioamhram[b.oamDMAPos] = v
	b.oamDMAPos++
	b.irq.SetEventTime(scheduler.OAM, t+oamDMAStep)
}

// dmaConflicts reports whether a CPU access to addr contends with the bus
// an OAM DMA transfer is reading from.
func (b *Bus) dmaConflicts(addr uint16) bool {
	if addr >= 0xFE00 {
		return false
	}
	return busOf(addr, b.cgb) == busOf(b.oamDMASrc, b.cgb)
}

type memoryBus uint8

const (
	externalBus memoryBus = iota
	videoBus
	workBus
)

func busOf(addr uint16, cgb bool) memoryBus {
	switch {
	case addr >= 0x8000 && addr < 0xA000:
		return videoBus
	case cgb && addr >= 0xC000:
		return workBus
	}
	return externalBus
}

// OAMDMAActive reports whether an OAM DMA transfer holds the OAM bus.
func (b *Bus) OAMDMAActive() bool {
	return b.oamDMAActive
}

func (b *Bus) readHDMA5() uint8 {
	v := b.dmaBlocks & 0x7F
	if !b.hdmaActive {
		v |= 0x80
	}
	return v
}

// writeHDMA5 starts, or cancels, a VRAM DMA transfer.
func (b *Bus) writeHDMA5(v uint8, cc uint64) {
	if b.hdmaActive && v&0x80 == 0 {
		b.hdmaActive = false
		b.ppu.DisableHDMA(cc)
		b.irq.SetEventTime(scheduler.DMA, scheduler.Disabled)
		b.log.Debugf("bus: HDMA cancelled with %d blocks left", b.dmaBlocks+1)
		return
	}

	b.dmaBlocks = v & 0x7F
	if v&0x80 != 0 {
		b.hdmaActive = true
		b.ppu.EnableHDMA(cc)
		return
	}
	b.gdmaActive = true
	b.irq.SetEventTime(scheduler.DMA, cc)
}

// HDMAActive reports whether an H-Blank DMA transfer is running.
func (b *Bus) HDMAActive() bool {
	return b.hdmaActive
}

// dmaEvent performs the VRAM DMA due at t: every block of a general
// transfer, or the next block of an H-Blank one. The CPU is stalled for
// the duration, so the returned cycle counter is past the copy.
func (b *Bus) dmaEvent(t, cc uint64) uint64 {
	b.irq.SetEventTime(scheduler.DMA, scheduler.Disabled)
	if cc < t {
		cc = t
	}

	switch {
	case b.gdmaActive:
		b.gdmaActive = false
		for !b.copyBlock(&cc) {
		}
	case b.hdmaActive && b.ppu.TakeHDMARequest():
		if b.copyBlock(&cc) {
			b.hdmaActive = false
			b.ppu.DisableHDMA(cc)
		}
	}
	return cc
}

// copyBlock moves one 16 byte block at cc, advancing it by the cost of
// the copy. It reports whether the transfer is complete.
func (b *Bus) copyBlock(cc *uint64) bool {
	*cc += hdmaSetup
	step := uint64(2) << b.ds
	for i := 0; i < blockLength; i++ {
		v := b.peek(b.dmaSrc, *cc)
		b.ppu.WriteVRAM(0x8000|b.dmaDst, *cc, v)
		*cc += step
		b.dmaSrc++
		b.dmaDst = (b.dmaDst + 1) & 0x1FFF
		if b.dmaDst == 0 {
			b.dmaBlocks = 0xFF
			return true
		}
	}
	b.dmaBlocks--
	return b.dmaBlocks == 0xFF
}
