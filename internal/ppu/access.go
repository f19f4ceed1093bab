package ppu

// Whether the CPU can reach OAM, VRAM and the CGB palettes depends on the
// mode the PPU is in. The memory bus asks before each access.

// free reports whether the PPU is not using any of its memories at cc:
// the LCD is off, or it is still in the first dots after enabling, where
// no OAM scan takes place.
func (p *PPU) free(cc uint64) bool {
	return !p.enabled() || (p.firstLine && p.ly.lineCycles(cc) < oamScanDots)
}

// lineM0Time returns the mode 0 start of the current line. Before mode 3
// has started it returns the earliest that mode 0 could start.
func (p *PPU) lineM0Time(cc uint64) uint64 {
	if p.ly.lineCycles(cc) < oamScanDots {
		return p.ly.lineStart() + (oamScanDots+172)<<p.ly.ds
	}
	return p.m0Time
}

// OAMReadable reports whether OAM reads at cc see memory.
func (p *PPU) OAMReadable(cc uint64) bool {
	p.Update(cc)
	if p.free(cc) {
		return true
	}
	if p.ly.time-cc <= 4 {
		return p.ly.ly >= ScreenHeight-1 && p.ly.ly != FrameLines-1
	}
	return p.ly.ly >= ScreenHeight || cc+2 >= p.lineM0Time(cc)
}

// OAMWritable reports whether OAM writes at cc reach memory.
func (p *PPU) OAMWritable(cc uint64) bool {
	p.Update(cc)
	if p.free(cc) {
		return true
	}
	if p.ly.time-cc <= 3+uint64(p.ly.ds) {
		return p.ly.ly >= ScreenHeight-1 && p.ly.ly != FrameLines-1
	}
	return p.ly.ly >= ScreenHeight || cc >= p.lineM0Time(cc)
}

// VRAMReadable reports whether VRAM reads at cc see memory.
func (p *PPU) VRAMReadable(cc uint64) bool {
	p.Update(cc)
	if p.free(cc) || p.ly.ly >= ScreenHeight {
		return true
	}
	return p.ly.lineCycles(cc) < oamScanDots || cc+2 >= p.lineM0Time(cc)
}

// VRAMWritable reports whether VRAM writes at cc reach memory.
func (p *PPU) VRAMWritable(cc uint64) bool {
	p.Update(cc)
	if p.free(cc) || p.ly.ly >= ScreenHeight {
		return true
	}
	return p.ly.lineCycles(cc) < oamScanDots-1 || cc >= p.lineM0Time(cc)
}

// CGBPaletteAccessible reports whether BCPD/OCPD can be accessed at cc.
func (p *PPU) CGBPaletteAccessible(cc uint64) bool {
	p.Update(cc)
	if p.free(cc) || p.ly.ly >= ScreenHeight {
		return true
	}
	return p.ly.lineCycles(cc) < oamScanDots || cc >= p.lineM0Time(cc)
}
