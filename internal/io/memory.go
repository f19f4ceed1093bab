package io

import (
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
)

// Read returns the byte the CPU sees at addr at cc. Accesses the hardware
// blocks read 0xFF.
func (b *Bus) Read(addr uint16, cc uint64) uint8 {
	if b.oamDMAActive && b.dmaConflicts(addr) {
		return b.oamDMALatch
	}

	switch {
	case addr < 0x8000:
		return b.cart.Read(addr, cc)
	case addr < 0xA000:
		if !b.ppu.VRAMReadable(cc) {
			return 0xFF
		}
		return b.ppu.ReadVRAM(addr, cc)
	case addr < 0xC000:
		return b.cart.Read(addr, cc)
	case addr < 0xFE00:
		return b.wram[b.wramOffset(addr)]
	case addr < 0xFEA0:
		if b.oamDMAActive || !b.ppu.OAMReadable(cc) {
			return 0xFF
		}
		return b.ioamhram[addr-0xFE00]
	case addr < 0xFF00:
		// unusable
		if b.oamDMAActive || !b.ppu.OAMReadable(cc) {
			return 0xFF
		}
		return 0x00
	case addr >= 0xFF80:
		return b.ioamhram[addr-0xFE00]
	}
	return b.readIO(addr, cc)
}

// Write writes v to addr at cc. Writes the hardware blocks are dropped.
func (b *Bus) Write(addr uint16, cc uint64, v uint8) {
	if b.oamDMAActive && b.dmaConflicts(addr) {
		return
	}

	switch {
	case addr < 0x8000:
		b.cart.Write(addr, cc, v)
	case addr < 0xA000:
		if b.ppu.VRAMWritable(cc) {
			b.ppu.WriteVRAM(addr, cc, v)
		}
	case addr < 0xC000:
		b.cart.Write(addr, cc, v)
	case addr < 0xFE00:
		b.wram[b.wramOffset(addr)] = v
	case addr < 0xFEA0:
		if !b.oamDMAActive && b.ppu.OAMWritable(cc) {
			b.ppu.OAMChange(cc)
			b.ioamhram[addr-0xFE00] = v
		}
	case addr < 0xFF00:
	case addr >= 0xFF80:
		if addr == types.IE {
			b.irq.SetIE(v)
		}
		b.ioamhram[addr-0xFE00] = v
	default:
		b.writeIO(addr, cc, v)
	}
}

// wramOffset maps a WRAM or echo RAM address to its offset in wram.
func (b *Bus) wramOffset(addr uint16) int {
	addr &= 0x1FFF
	if addr < 0x1000 {
		return int(addr)
	}
	return int(b.wramBank())*0x1000 + int(addr&0xFFF)
}

func (b *Bus) wramBank() uint8 {
	if !b.cgb || b.svbk == 0 {
		return 1
	}
	return b.svbk
}

// peek reads addr the way the DMA engines do, bypassing the PPU's access
// windows.
func (b *Bus) peek(addr uint16, cc uint64) uint8 {
	switch {
	case addr < 0x8000:
		return b.cart.Read(addr, cc)
	case addr < 0xA000:
		return b.ppu.ReadVRAM(addr, cc)
	case addr < 0xC000:
		return b.cart.Read(addr, cc)
	case addr < 0xFE00:
		return b.wram[b.wramOffset(addr)]
	}
	// the OAM DMA source wraps into echo RAM on DMG
	return b.wram[b.wramOffset(addr-0x2000)]
}

func (b *Bus) readIO(addr uint16, cc uint64) uint8 {
	switch {
	case addr == types.P1:
		// no buttons are ever pressed
		return 0xCF | b.ioamhram[0x100]&0x30
	case addr == types.SB || addr == types.SC:
		return b.serial.Read(addr)
	case addr >= types.DIV && addr <= types.TAC:
		return b.timer.Read(addr, cc)
	case addr == types.IF:
		b.ppu.Update(cc)
		return b.irq.IF() | 0xE0
	case addr >= types.NR10 && addr < types.LCDC:
		return b.apu.Read(addr, cc, b.ds)
	case addr == types.DMA:
		return b.ioamhram[0x146]
	case addr >= types.LCDC && addr <= types.WX,
		addr == types.VBK,
		addr >= types.BCPS && addr <= types.OCPD:
		return b.ppu.Read(addr, cc)
	}

	if !b.cgb {
		return 0xFF
	}
	switch addr {
	case types.KEY1:
		return 0x7E | b.ds<<7 | b.key1&1
	case types.HDMA5:
		return b.readHDMA5()
	case types.SVBK:
		return 0xF8 | b.svbk
	}
	return 0xFF
}

func (b *Bus) writeIO(addr uint16, cc uint64, v uint8) {
	switch {
	case addr == types.P1:
		b.ioamhram[0x100] = v & 0x30
	case addr == types.SB || addr == types.SC:
		b.serial.Write(addr, cc, v)
	case addr >= types.DIV && addr <= types.TAC:
		b.timer.Write(addr, cc, v)
	case addr == types.IF:
		b.ppu.Update(cc)
		b.irq.SetIF(v)
	case addr >= types.NR10 && addr < types.LCDC:
		b.apu.Write(addr, cc, b.ds, v)
	case addr == types.DMA:
		b.ioamhram[0x146] = v
		b.startOAMDMA(v, cc)
	case addr >= types.LCDC && addr <= types.WX,
		addr == types.VBK,
		addr >= types.BCPS && addr <= types.OCPD:
		b.writeVideo(addr, cc, v)
	}

	if !b.cgb {
		return
	}
	switch addr {
	case types.KEY1:
		b.key1 = v & 1
	case types.HDMA1:
		b.dmaSrc = uint16(v)<<8 | b.dmaSrc&0xFF
	case types.HDMA2:
		b.dmaSrc = b.dmaSrc&0xFF00 | uint16(v&0xF0)
	case types.HDMA3:
		b.dmaDst = uint16(v&0x1F)<<8 | b.dmaDst&0xFF
	case types.HDMA4:
		b.dmaDst = b.dmaDst&0xFF00 | uint16(v&0xF0)
	case types.HDMA5:
		b.writeHDMA5(v, cc)
	case types.SVBK:
		b.svbk = v & 7
	}
}

// writeVideo forwards a video register write, noting the side effects the
// bus cares about.
func (b *Bus) writeVideo(addr uint16, cc uint64, v uint8) {
	lcdOn := b.ppu.Read(types.LCDC, cc)&0x80 != 0
	b.ppu.Write(addr, cc, v)
	if addr != types.LCDC || lcdOn == (v&0x80 != 0) {
		return
	}

	if lcdOn {
		ly := b.ppu.Read(types.LY, cc)
		if ly < 144 {
			b.log.Debugf("bus: LCD disabled outside VBlank (LY=%d)", ly)
		}
	}
	b.irq.SetEventTime(scheduler.Blit, b.ppu.NextBlit(cc))
}
