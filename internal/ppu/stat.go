package ppu

import (
	"github.com/thelolagemann/gbcore/internal/interrupts"
	"github.com/thelolagemann/gbcore/internal/scheduler"
)

// STAT interrupt sources.
const (
	statM0Irq  = 0x08
	statM1Irq  = 0x10
	statM2Irq  = 0x20
	statLycIrq = 0x40

	statWritable = 0x78
)

// lycIrq schedules the LY=LYC interrupt.
//
// Writes to LYC and STAT are announced at once (the src copies), but they
// only reach the copies the event decides with when the event is not
// imminent, so a write landing just before the compare does not change
// its outcome.
type lycIrq struct {
	time       uint64
	lycRegSrc  uint8
	statRegSrc uint8
	lycReg     uint8
	statReg    uint8
	cgb        bool
}

// schedule returns the time the compare for lyc happens at after cc: 2
// dots before the line starts, or 6 dots into line 153 for LYC=0.
func (l *lycIrq) schedule(stat, lyc uint8, ly *lyCounter, cc uint64) uint64 {
	if stat&statLycIrq == 0 || lyc >= FrameLines {
		return scheduler.Disabled
	}
	frameCycle := uint64(lyc)*LineDots - 2
	if lyc == 0 {
		frameCycle = (FrameLines-1)*LineDots + 6
	}
	return ly.nextFrameCycle(frameCycle, cc)
}

func (l *lycIrq) regChange(stat, lyc uint8, ly *lyCounter, cc uint64) {
	next := l.schedule(stat, lyc, ly, cc)
	l.statRegSrc, l.lycRegSrc = stat, lyc
	l.time = min64(l.time, next)

	margin := uint64(4)
	if l.cgb {
		margin = 4 - 4*uint64(ly.ds)
	}
	if l.time-cc > margin {
		l.statReg, l.lycReg = stat, lyc
	}
}

// doEvent performs the compare due at l.time and reports whether the
// interrupt fires. A line already holding the STAT line high through its
// mode source suppresses the edge.
func (l *lycIrq) doEvent(ly *lyCounter) bool {
	fire := false
	if (l.statReg|l.statRegSrc)&statLycIrq != 0 {
		cmp := ly.ly + 1
		if ly.ly == FrameLines-1 {
			cmp = 0
		}

		var held bool
		if l.lycReg-1 < ScreenHeight-1 {
			held = l.statReg&statM2Irq != 0
		} else {
			held = l.statReg&statM1Irq != 0
		}
		fire = l.lycReg == cmp && !held
	}

	l.statReg, l.lycReg = l.statRegSrc, l.lycRegSrc
	l.time = l.schedule(l.statReg, l.lycReg, ly, l.time)
	return fire
}

func (l *lycIrq) reset(stat, lyc uint8) {
	l.time = scheduler.Disabled
	l.statReg, l.statRegSrc = stat, stat
	l.lycReg, l.lycRegSrc = lyc, lyc
}

func (l *lycIrq) rebase(dec uint64) {
	l.time = scheduler.Rebase(l.time, dec)
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// mode returns the mode reported in STAT at cc.
func (p *PPU) mode(cc uint64) uint8 {
	if !p.enabled() {
		return ModeHBlank
	}

	ly := p.ly.ly
	if ly >= ScreenHeight {
		if ly == FrameLines-1 && p.ly.time-cc <= 4-4*uint64(p.ly.ds) {
			return ModeHBlank
		}
		return ModeVBlank
	}

	if p.ly.lineCycles(cc) < oamScanDots {
		if p.firstLine {
			return ModeHBlank
		}
		return ModeOAM
	}
	if cc < p.m0Time {
		return ModeVRAM
	}
	return ModeHBlank
}

// compareLy returns the line LYC is compared against at cc, and false
// while the comparison is briefly unavailable around a line change.
func (p *PPU) compareLy(cc uint64) (uint8, bool) {
	toNext := p.ly.time - cc
	if toNext <= 4-4*uint64(p.ly.ds) {
		return 0, false
	}
	ly := p.ly.ly
	if ly == FrameLines-1 && toNext <= 448<<p.ly.ds {
		ly = 0
	}
	return ly, true
}

func (p *PPU) coincidence(cc uint64) bool {
	if !p.enabled() {
		return false
	}
	ly, ok := p.compareLy(cc)
	return ok && ly == p.lyCompare
}

// lyReg returns the value read from LY at cc. LY leads the internal line
// counter by 4 cycles, and reads 0 for most of line 153.
func (p *PPU) lyReg(cc uint64) uint8 {
	if !p.enabled() {
		return 0
	}

	ly := p.ly.ly
	toNext := p.ly.time - cc
	if ly == FrameLines-1 {
		if p.ly.ds != 0 && toNext > LineDots*2-8 {
			return ly
		}
		return 0
	}
	if toNext <= 4 {
		return ly + 1
	}
	return ly
}

func (p *PPU) readStat(cc uint64) uint8 {
	v := 0x80 | p.stat | p.mode(cc)
	if p.coincidence(cc) {
		v |= 0x04
	}
	return v
}

// statLineHeld reports whether a mode source keeps the STAT line high at
// cc, which hides a new LY=LYC edge.
func (p *PPU) statLineHeld(cc uint64) bool {
	switch p.mode(cc) {
	case ModeHBlank:
		return p.stat&statM0Irq != 0 && p.ly.ly < ScreenHeight
	case ModeVBlank:
		return p.stat&statM1Irq != 0
	case ModeOAM:
		return p.stat&statM2Irq != 0
	}
	return false
}

// shadowMargin is how close to a mode interrupt a register write may land
// and still miss it.
func (p *PPU) shadowMargin() uint64 {
	if p.cgb {
		return 2
	}
	return 0
}

// statLine reports whether the sources enabled in stat drive the STAT line
// high at cc. The pseudo mode 0 of the first line after the LCD is enabled
// does not.
func (p *PPU) statLine(stat uint8, cc uint64) bool {
	if stat&statLycIrq != 0 && p.coincidence(cc) {
		return true
	}
	switch p.mode(cc) {
	case ModeHBlank:
		return stat&statM0Irq != 0 && p.ly.ly < ScreenHeight && p.ly.lineCycles(cc) >= oamScanDots
	case ModeVBlank:
		return stat&statM1Irq != 0
	case ModeOAM:
		return stat&statM2Irq != 0
	}
	return false
}

// statChange handles a STAT write. Enabling a source whose condition already
// holds raises the line, and fires through the one-shot event when nothing
// held it before. The DMG write quirk of briefly enabling every source is
// not modelled.
func (p *PPU) statChange(v uint8, cc uint64) {
	old := p.stat
	p.stat = v & statWritable
	if !p.enabled() {
		p.m0StatReg, p.m1StatReg, p.m2StatReg = p.stat, p.stat, p.stat
		p.lyc.reset(p.stat, p.lyCompare)
		return
	}

	margin := p.shadowMargin()
	if p.mem.Value(memM0Irq)-cc > margin {
		p.m0StatReg = p.stat
	}
	if p.mem.Value(memM1Irq)-cc > margin {
		p.m1StatReg = p.stat
	}
	if p.mem.Value(memM2Irq)-cc > margin {
		p.m2StatReg = p.stat
	}

	p.lyc.regChange(p.stat, p.lyCompare, &p.ly, cc)
	p.setMem(memLycIrq, p.lyc.time)

	if !p.statLine(old, cc) && p.statLine(p.stat, cc) {
		p.setMem(memOneshotStat, cc)
	}
}

func (p *PPU) lycChange(v uint8, cc uint64) {
	if v == p.lyCompare {
		return
	}
	p.lyCompare = v
	if !p.enabled() {
		p.m0LycReg = v
		p.lyc.reset(p.stat, v)
		return
	}

	if p.mem.Value(memM0Irq)-cc > p.shadowMargin() {
		p.m0LycReg = v
	}
	p.lyc.regChange(p.stat, v, &p.ly, cc)
	p.setMem(memLycIrq, p.lyc.time)

	// a write that makes the current line match raises the edge itself
	if p.stat&statLycIrq != 0 {
		if ly, ok := p.compareLy(cc); ok && ly == v && !p.statLineHeld(cc) {
			p.setMem(memOneshotStat, cc)
		}
	}
}

// m0IrqEvent handles the start of mode 0 on a visible line.
func (p *PPU) m0IrqEvent(t uint64) {
	stat := p.m0StatReg
	if stat&statM0Irq != 0 && (stat&statLycIrq == 0 || p.m0LycReg != p.ly.ly) {
		p.irq.FlagIrqAt(interrupts.LCDFlag, t)
	}
	p.m0StatReg, p.m0LycReg = p.stat, p.lyCompare
	p.setMem(memM0Irq, scheduler.Disabled)
}

// m1IrqEvent handles the start of VBlank.
func (p *PPU) m1IrqEvent(t uint64) {
	bits := uint8(interrupts.VBlankFlag)
	if p.m1StatReg&(statM1Irq|statM0Irq) == statM1Irq {
		bits |= interrupts.LCDFlag
	}
	p.irq.FlagIrqAt(bits, t)
	p.m1StatReg = p.stat
	p.setMem(memM1Irq, t+FrameDots<<p.ly.ds)
}

// m2IrqEvent handles the start of mode 2. It runs as the line counter
// moves on, so the line starting is the one after p.ly.
func (p *PPU) m2IrqEvent(t uint64) {
	line := p.ly.ly + 1
	if p.ly.ly == FrameLines-1 {
		line = 0
	}

	stat := p.m2StatReg
	var held bool
	if line == 0 {
		held = stat&statM1Irq != 0 || (stat&statLycIrq != 0 && p.lyCompare == 0)
	} else {
		held = stat&statM0Irq != 0
	}
	if stat&statM2Irq != 0 && !held {
		p.irq.FlagIrqAt(interrupts.LCDFlag, t)
	}
	p.m2StatReg = p.stat

	next := t + p.ly.lineTime
	if line+1 >= ScreenHeight {
		next = t + (FrameLines-uint64(line))*p.ly.lineTime
	}
	p.setMem(memM2Irq, next)
}

func (p *PPU) lycEvent(t uint64) {
	if p.lyc.doEvent(&p.ly) {
		p.irq.FlagIrqAt(interrupts.LCDFlag, t)
	}
	p.setMem(memLycIrq, p.lyc.time)
}
