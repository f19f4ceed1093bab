package ppu

import (
	"github.com/thelolagemann/gbcore/internal/interrupts"
	"github.com/thelolagemann/gbcore/internal/ppu/palette"
	"github.com/thelolagemann/gbcore/internal/savestate"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
)

const disabled = scheduler.Disabled

const (
	// ModeHBlank (Mode 0) - Horizontal Blanking Period
	//
	// 	Duration 87 - 204 dots (variable per line)
	//	- Allows CPU access to VRAM/OAM
	// 	- STAT interrupt available if enabled via STAT.3
	ModeHBlank = iota

	// ModeVBlank (Mode 1) - Vertical Blanking Period
	//
	//	Duration 4560 dots (10 lines)
	//	- Allows full CPU access to VRAM/OAM
	//	- VBlank interrupt requested at its start
	//	- STAT interrupt available if enabled via STAT.4
	//	- Active during LY 144-153
	ModeVBlank

	// ModeOAM (Mode 2) - OAM Scan
	//
	//	Duration: 80 dots (fixed)
	//	- Locks OAM bus
	//	- STAT interrupt available if enabled via STAT.5
	//	- Occurs at start of each visible line
	ModeOAM

	// ModeVRAM (Mode 3) - Pixel Transfer
	//
	//	Duration: 172-289 dots (variable depending on objects and window)
	//	- Locks both OAM and VRAM buses
	//	- No STAT interrupts available
	ModeVRAM
)

// memEvent tags the register driven events of the video core. The
// declaration order is the execution order of events due together.
type memEvent uint8

const (
	memOneshotStat memEvent = iota
	memOneshotWy2
	memM1Irq
	memLycIrq
	memSpriteMap
	memHDMA
	memM2Irq
	memM0Irq

	memEvents = int(iota)
)

// videoEvent tags the events of the video core as a whole: the earliest
// memEvent, the drawing of a line and the line counter.
type videoEvent uint8

const (
	memEventTag videoEvent = iota
	drawEvent
	lyEvent

	videoEvents = int(iota)
)

// PPU implements the video timing core of the Game Boy's (P)ixel
// (P)rocessing (U)nit.
//
// Nothing is stepped per dot. The PPU keeps the times of its next events
// and only runs when a register is accessed or when its earliest event,
// published to the requester as scheduler.Video, becomes due. Whatever a
// register read returns is derived from the current cycle and those
// times.
//
// References:
//   - [Pan Docs](https://gbdev.io/pandocs/Graphics.html)
//   - [Hacktix GBEDG](https://hacktix.github.io/GBEDG/ppu/)
//   - [Mooneye test suite](https://github.com/Gekkio/mooneye-test-suite)
type PPU struct {
	irq    *interrupts.Requester
	mem    *scheduler.Keeper[memEvent]
	events *scheduler.Keeper[videoEvent]
	log    log.Logger

	ly  lyCounter
	lyc lycIrq

	vram [0x4000]byte
	oam  []byte

	fb      []uint32
	pitch   int
	colours palette.Palette

	bgPalette  *palette.CGBPalette
	objPalette *palette.CGBPalette

	lcdc, stat      uint8
	scy, scx        uint8
	lyCompare       uint8
	wy, wy2, wx     uint8
	bgp, obp0, obp1 uint8
	vbk             uint8

	// shadow copies the mode interrupts decide with
	m0StatReg, m0LycReg uint8
	m1StatReg           uint8
	m2StatReg           uint8

	m0Time       uint64 // mode 0 start of the current line, once past dot 80
	windowLine   uint8  // internal window line counter
	winTriggered bool   // WY matched a line this frame
	firstLine    bool   // first line after enabling the LCD

	spriteCache [ScreenHeight][maxSpritesPerLine]uint8
	spriteCount [ScreenHeight]uint8
	oamDirty    bool
	partialMap  bool

	hdmaEnabled bool
	hdmaRequest bool

	cgb bool
}

// New returns a PPU with the LCD off. oam is the 160 bytes of object
// attribute memory, which are owned and written by the memory bus.
func New(irq *interrupts.Requester, oam []byte, cgb bool) *PPU {
	p := &PPU{
		irq:        irq,
		mem:        scheduler.NewKeeper[memEvent](memEvents),
		events:     scheduler.NewKeeper[videoEvent](videoEvents),
		log:        log.NewNullLogger(),
		oam:        oam[:oamEntries*4],
		colours:    palette.Palettes[palette.Greyscale],
		bgPalette:  palette.NewCGBPalette(),
		objPalette: palette.NewCGBPalette(),
		cgb:        cgb,
	}
	p.lyc.cgb = cgb
	p.Reset()
	return p
}

// SetLogger sets the logger the PPU reports oddities to.
func (p *PPU) SetLogger(l log.Logger) {
	p.log = l
}

// SetFramebuffer sets the buffer lines are drawn into, as 0xRRGGBB
// pixels with pitch pixels from one line to the next. A nil fb stops
// drawing.
func (p *PPU) SetFramebuffer(fb []uint32, pitch int) {
	if fb != nil && len(fb) < pitch*(ScreenHeight-1)+ScreenWidth {
		p.log.Warnf("ppu: framebuffer of %d pixels too small for pitch %d", len(fb), pitch)
		fb = nil
	}
	p.fb, p.pitch = fb, pitch
	if !p.enabled() {
		p.blank()
	}
}

// SetColours sets the host colours DMG shades are drawn with.
func (p *PPU) SetColours(c palette.Palette) {
	p.colours = c
}

// Reset returns the PPU to its power on state, with the LCD off.
func (p *PPU) Reset() {
	for i := 0; i < memEvents; i++ {
		p.mem.Set(memEvent(i), disabled)
	}
	for i := 0; i < videoEvents; i++ {
		p.events.Set(videoEvent(i), disabled)
	}
	p.vram = [0x4000]byte{}
	p.bgPalette.Reset()
	p.objPalette.Reset()

	p.lcdc, p.stat = 0, 0
	p.scy, p.scx = 0, 0
	p.lyCompare = 0
	p.wy, p.wy2, p.wx = 0, 0, 0
	p.bgp, p.obp0, p.obp1 = 0, 0, 0
	p.vbk = 0
	p.m0StatReg, p.m0LycReg, p.m1StatReg, p.m2StatReg = 0, 0, 0, 0

	p.ly = lyCounter{}
	p.ly.reset(0, 0, 0)
	p.lyc.reset(0, 0)
	p.m0Time = 0
	p.windowLine, p.winTriggered, p.firstLine = 0, false, false
	p.spriteCache = [ScreenHeight][maxSpritesPerLine]uint8{}
	p.spriteCount = [ScreenHeight]uint8{}
	p.oamDirty, p.partialMap = true, false
	p.hdmaEnabled, p.hdmaRequest = false, false

	p.blank()
	p.publish()
}

func (p *PPU) enabled() bool {
	return p.lcdc&lcdcEnable != 0
}

// setMem schedules sub event id at t and refreshes the outer keeper.
func (p *PPU) setMem(id memEvent, t uint64) {
	p.mem.Set(id, t)
	p.events.Set(memEventTag, p.mem.MinValue())
}

// publish hands the time of the earliest event to the requester.
func (p *PPU) publish() {
	p.irq.SetEventTime(scheduler.Video, p.events.MinValue())
}

// Update runs every event due at or before cc.
func (p *PPU) Update(cc uint64) {
	for p.events.MinValue() <= cc {
		t := p.events.MinValue()
		switch p.events.Min() {
		case memEventTag:
			p.memEvent(t)
		case drawEvent:
			p.drawLine()
		case lyEvent:
			p.lyEvent(t)
		}
	}
	p.publish()
}

func (p *PPU) memEvent(t uint64) {
	switch p.mem.Min() {
	case memOneshotStat:
		p.irq.FlagIrqAt(interrupts.LCDFlag, t)
		p.setMem(memOneshotStat, disabled)
	case memOneshotWy2:
		p.wy2 = p.wy
		p.setMem(memOneshotWy2, disabled)
		p.m0Change(t)
	case memM1Irq:
		p.m1IrqEvent(t)
	case memLycIrq:
		p.lycEvent(t)
	case memSpriteMap:
		p.spriteMapEvent(t)
	case memHDMA:
		p.hdmaEvent(t)
	case memM2Irq:
		p.m2IrqEvent(t)
	case memM0Irq:
		p.m0IrqEvent(t)
	}
}

// lyEvent moves the line counter on to the next line.
func (p *PPU) lyEvent(t uint64) {
	p.ly.increment()
	p.firstLine = false
	if p.ly.ly == 0 {
		p.windowLine = 0
		p.winTriggered = false
	}
	if p.ly.ly < ScreenHeight {
		dot80 := t + oamScanDots<<p.ly.ds
		p.setMem(memSpriteMap, dot80)
		p.events.Set(drawEvent, dot80)
	}
	p.events.Set(lyEvent, p.ly.time)
}

// spriteMapEvent runs at the end of the OAM scan of a visible line. It
// settles the sprites and window of the line, and with them the length
// of mode 3.
func (p *PPU) spriteMapEvent(t uint64) {
	p.setMem(memSpriteMap, disabled)
	if p.wy2 == p.ly.ly {
		p.winTriggered = true
	}
	p.mapSprites()
	p.m0Time = p.ly.lineStart() + p.m3EndDots()<<p.ly.ds
	p.setMem(memM0Irq, p.m0Time)
	if p.hdmaEnabled {
		p.setMem(memHDMA, p.m0Time)
	}
}

func (p *PPU) windowVisible() bool {
	return p.lcdc&lcdcWinEnable != 0 &&
		(p.cgb || p.lcdc&lcdcBGEnable != 0) &&
		p.winTriggered && p.wx <= 166
}

// m3EndDots returns the dot mode 0 of the current line starts at.
func (p *PPU) m3EndDots() uint64 {
	dots := uint64(oamScanDots+172) + uint64(p.scx&7) + p.spritePenalty()
	if p.windowVisible() {
		dots += 6
	}
	return dots
}

// m0Change moves the mode 0 start of a line in mode 3 after a register
// it depends on was written at cc.
func (p *PPU) m0Change(cc uint64) {
	if !p.enabled() || p.ly.ly >= ScreenHeight ||
		p.ly.lineCycles(cc) < oamScanDots || cc >= p.m0Time {
		return
	}

	t := p.ly.lineStart() + p.m3EndDots()<<p.ly.ds
	if t <= cc {
		t = cc + 1
	}
	p.m0Time = t
	if p.mem.Value(memM0Irq) != disabled {
		p.setMem(memM0Irq, t)
	}
	if p.mem.Value(memHDMA) != disabled {
		p.setMem(memHDMA, t)
	}
}

// enable turns the LCD on at cc. The first line starts at once, without
// an OAM scan.
func (p *PPU) enable(cc uint64) {
	p.ly.reset(0, cc, p.ly.ds)
	p.firstLine = true
	p.windowLine, p.winTriggered = 0, false
	p.wy2 = p.wy
	p.m0Time = cc + (oamScanDots+172)<<p.ly.ds
	p.oamDirty = true

	p.events.Set(lyEvent, p.ly.time)
	dot80 := cc + oamScanDots<<p.ly.ds
	p.events.Set(drawEvent, dot80)
	p.setMem(memSpriteMap, dot80)
	p.setMem(memM1Irq, p.ly.nextFrameCycle(ScreenHeight*LineDots, cc))
	p.setMem(memM2Irq, p.ly.time)

	p.m0StatReg, p.m0LycReg = p.stat, p.lyCompare
	p.m1StatReg, p.m2StatReg = p.stat, p.stat
	p.lyc.reset(p.stat, p.lyCompare)
	p.lyc.regChange(p.stat, p.lyCompare, &p.ly, cc)
	p.setMem(memLycIrq, p.lyc.time)

	if p.stat&statLycIrq != 0 && p.lyCompare == 0 {
		p.setMem(memOneshotStat, cc)
	}
}

// disable turns the LCD off, cancelling every event.
func (p *PPU) disable() {
	for i := 0; i < memEvents; i++ {
		p.mem.Set(memEvent(i), disabled)
	}
	for i := 0; i < videoEvents; i++ {
		p.events.Set(videoEvent(i), disabled)
	}
	p.ly.ly = 0
	p.lyc.reset(p.stat, p.lyCompare)
	p.firstLine = false
	p.hdmaRequest = false
	p.blank()
}

func (p *PPU) lcdcChange(v uint8, cc uint64) {
	old := p.lcdc
	p.lcdc = v
	if (old^v)&lcdcObjSize != 0 {
		p.oamDirty = true
	}

	switch {
	case old&lcdcEnable == 0 && v&lcdcEnable != 0:
		p.enable(cc)
	case old&lcdcEnable != 0 && v&lcdcEnable == 0:
		if p.ly.ly < ScreenHeight {
			p.log.Debugf("ppu: LCD disabled outside VBlank (LY=%d)", p.ly.ly)
		}
		p.disable()
	case (old^v)&(lcdcBGEnable|lcdcObjEnable|lcdcWinEnable) != 0:
		p.m0Change(cc)
	}
}

func (p *PPU) wyChange(v uint8, cc uint64) {
	p.wy = v
	if p.enabled() && p.cgb {
		p.setMem(memOneshotWy2, cc+5)
		return
	}
	p.wy2 = v
	p.m0Change(cc)
}

// Read returns the value of the video register at addr at cc.
func (p *PPU) Read(addr uint16, cc uint64) uint8 {
	p.Update(cc)
	switch addr {
	case types.LCDC:
		return p.lcdc
	case types.STAT:
		return p.readStat(cc)
	case types.SCY:
		return p.scy
	case types.SCX:
		return p.scx
	case types.LY:
		return p.lyReg(cc)
	case types.LYC:
		return p.lyCompare
	case types.BGP:
		return p.bgp
	case types.OBP0:
		return p.obp0
	case types.OBP1:
		return p.obp1
	case types.WY:
		return p.wy
	case types.WX:
		return p.wx
	}

	if !p.cgb {
		return 0xFF
	}
	switch addr {
	case types.VBK:
		return 0xFE | p.vbk
	case types.BCPS:
		return p.bgPalette.GetIndex() | 0x40
	case types.BCPD:
		if !p.CGBPaletteAccessible(cc) {
			return 0xFF
		}
		return p.bgPalette.Read()
	case types.OCPS:
		return p.objPalette.GetIndex() | 0x40
	case types.OCPD:
		if !p.CGBPaletteAccessible(cc) {
			return 0xFF
		}
		return p.objPalette.Read()
	}
	return 0xFF
}

// Write writes v to the video register at addr at cc.
func (p *PPU) Write(addr uint16, cc uint64, v uint8) {
	p.Update(cc)
	switch addr {
	case types.LCDC:
		p.lcdcChange(v, cc)
	case types.STAT:
		p.statChange(v, cc)
	case types.SCY:
		p.scy = v
	case types.SCX:
		p.scx = v
		p.m0Change(cc)
	case types.LYC:
		p.lycChange(v, cc)
	case types.BGP:
		p.bgp = v
	case types.OBP0:
		p.obp0 = v
	case types.OBP1:
		p.obp1 = v
	case types.WY:
		p.wyChange(v, cc)
	case types.WX:
		p.wx = v
		p.m0Change(cc)
	}

	if p.cgb {
		switch addr {
		case types.VBK:
			p.vbk = v & 1
		case types.BCPS:
			p.bgPalette.SetIndex(v)
		case types.BCPD:
			p.writePalette(p.bgPalette, v, cc)
		case types.OCPS:
			p.objPalette.SetIndex(v)
		case types.OCPD:
			p.writePalette(p.objPalette, v, cc)
		}
	}
	p.publish()
}

func (p *PPU) writePalette(pal *palette.CGBPalette, v uint8, cc uint64) {
	if p.CGBPaletteAccessible(cc) {
		pal.Write(v)
		return
	}
	pal.Increment()
}

// ReadVRAM returns the byte at addr (0x8000 - 0x9FFF) of the selected
// VRAM bank. Access restrictions are checked by the caller.
func (p *PPU) ReadVRAM(addr uint16, cc uint64) uint8 {
	p.Update(cc)
	return p.vram[uint16(p.vbk)*0x2000+addr&0x1FFF]
}

// WriteVRAM writes v to addr (0x8000 - 0x9FFF) of the selected VRAM bank.
func (p *PPU) WriteVRAM(addr uint16, cc uint64, v uint8) {
	p.Update(cc)
	p.vram[uint16(p.vbk)*0x2000+addr&0x1FFF] = v
	p.publish()
}

// NextBlit returns the time the frame after cc is complete: the start of
// the next VBlank, or a frame's worth of cycles while the LCD is off.
func (p *PPU) NextBlit(cc uint64) uint64 {
	if !p.enabled() {
		return cc + FrameDots<<p.ly.ds
	}
	return p.ly.nextFrameCycle(ScreenHeight*LineDots, cc)
}

// SetDoubleSpeed selects the dot length without rescaling event times.
// It is used when (re)initialising the machine.
func (p *PPU) SetDoubleSpeed(ds bool) {
	p.ly.setDoubleSpeed(types.Bool(ds))
}

// SpeedChange switches between normal and double speed at cc. Every
// pending time keeps its distance from cc in dots.
func (p *PPU) SpeedChange(cc uint64) {
	p.Update(cc)

	up := p.ly.ds == 0
	scale := func(t uint64) uint64 {
		if t == disabled {
			return t
		}
		if t >= cc {
			if up {
				return cc + (t-cc)<<1
			}
			return cc + (t-cc)>>1
		}
		d := cc - t
		if up {
			d <<= 1
		} else {
			d >>= 1
		}
		if d > cc {
			return 0
		}
		return cc - d
	}

	p.ly.time = scale(p.ly.time)
	p.ly.setDoubleSpeed(1 - p.ly.ds)
	p.m0Time = scale(p.m0Time)
	p.lyc.time = scale(p.lyc.time)
	for i := 0; i < memEvents; i++ {
		p.mem.Set(memEvent(i), scale(p.mem.Value(memEvent(i))))
	}
	p.events.Set(memEventTag, p.mem.MinValue())
	p.events.Set(drawEvent, scale(p.events.Value(drawEvent)))
	if p.enabled() {
		p.events.Set(lyEvent, p.ly.time)
	}
	p.publish()
}

// Rebase subtracts dec from every stored time.
func (p *PPU) Rebase(dec uint64) {
	if p.ly.time < dec+p.ly.lineTime {
		// only while the LCD is off
		p.ly.time = p.ly.lineTime
	} else {
		p.ly.time -= dec
	}
	if p.m0Time < dec {
		p.m0Time = 0
	} else {
		p.m0Time -= dec
	}
	p.lyc.rebase(dec)
	p.mem.Rebase(dec)
	p.events.Rebase(dec)
	p.publish()
}

// SaveState stores the video state in st.
func (p *PPU) SaveState(st *savestate.State) {
	s := &st.PPU
	s.VRAM = p.vram
	s.BGPData = p.bgPalette.RAM
	s.OBJPData = p.objPalette.RAM
	s.SpriteCache = p.spriteCache
	s.SpriteCount = p.spriteCount

	s.LCDC, s.STAT, s.SCY, s.SCX = p.lcdc, p.stat, p.scy, p.scx
	s.LYC, s.WY, s.WY2, s.WX = p.lyCompare, p.wy, p.wy2, p.wx
	s.BGP, s.OBP0, s.OBP1 = p.bgp, p.obp0, p.obp1
	s.BCPS, s.OCPS = p.bgPalette.GetIndex(), p.objPalette.GetIndex()
	s.VBK = p.vbk

	s.LycReg, s.LycRegSrc = p.lyc.lycReg, p.lyc.lycRegSrc
	s.StatReg, s.StatRegSrc = p.lyc.statReg, p.lyc.statRegSrc
	s.M0StatReg, s.M0LycReg = p.m0StatReg, p.m0LycReg
	s.M1StatReg, s.M2StatReg = p.m1StatReg, p.m2StatReg

	s.Ly = p.ly.ly
	s.WindowLine = p.windowLine
	s.WinTriggered = p.winTriggered
	s.FirstLine = p.firstLine
	s.OAMDirty, s.PartialMap = p.oamDirty, p.partialMap
	s.HDMAEnabled, s.HDMARequest = p.hdmaEnabled, p.hdmaRequest

	s.NextLyTime = p.ly.time
	s.M0Time = p.m0Time
	s.LycIrqTime = p.lyc.time
	s.M0IrqTime = p.mem.Value(memM0Irq)
	s.M1IrqTime = p.mem.Value(memM1Irq)
	s.M2IrqTime = p.mem.Value(memM2Irq)
	s.OneshotStat = p.mem.Value(memOneshotStat)
	s.OneshotWy2 = p.mem.Value(memOneshotWy2)
	s.SpriteMap = p.mem.Value(memSpriteMap)
	s.HDMATime = p.mem.Value(memHDMA)
	s.DrawTime = p.events.Value(drawEvent)
}

// LoadState restores the video state from st. Times that lie before the
// snapshot's cycle counter are moved up to it.
func (p *PPU) LoadState(st *savestate.State) {
	s := &st.PPU
	cc := st.CPU.CycleCounter
	clamp := func(t uint64) uint64 { return savestate.Clamp(t, cc) }

	p.vram = s.VRAM
	p.bgPalette.RAM = s.BGPData
	p.objPalette.RAM = s.OBJPData
	p.bgPalette.SetIndex(s.BCPS)
	p.objPalette.SetIndex(s.OCPS)
	p.spriteCache = s.SpriteCache
	for i, n := range s.SpriteCount {
		p.spriteCount[i] = min(n, maxSpritesPerLine)
	}

	p.lcdc, p.stat, p.scy, p.scx = s.LCDC, s.STAT&statWritable, s.SCY, s.SCX
	p.lyCompare, p.wy, p.wy2, p.wx = s.LYC, s.WY, s.WY2, s.WX
	p.bgp, p.obp0, p.obp1 = s.BGP, s.OBP0, s.OBP1
	p.vbk = s.VBK & 1
	if !p.cgb {
		p.vbk = 0
	}

	p.lyc.lycReg, p.lyc.lycRegSrc = s.LycReg, s.LycRegSrc
	p.lyc.statReg, p.lyc.statRegSrc = s.StatReg, s.StatRegSrc
	p.m0StatReg, p.m0LycReg = s.M0StatReg, s.M0LycReg
	p.m1StatReg, p.m2StatReg = s.M1StatReg, s.M2StatReg

	p.windowLine = s.WindowLine
	p.winTriggered = s.WinTriggered
	p.firstLine = s.FirstLine
	p.oamDirty, p.partialMap = s.OAMDirty, s.PartialMap
	p.hdmaEnabled, p.hdmaRequest = s.HDMAEnabled, s.HDMARequest

	p.ly.setDoubleSpeed(types.Bool(st.Mem.DoubleSpeed))
	p.ly.ly = s.Ly % FrameLines
	p.ly.time = clamp(s.NextLyTime)
	if p.ly.time < p.ly.lineTime {
		p.ly.time = p.ly.lineTime
	}
	p.m0Time = s.M0Time
	p.lyc.time = clamp(s.LycIrqTime)

	for i := 0; i < memEvents; i++ {
		p.mem.Set(memEvent(i), disabled)
	}
	for i := 0; i < videoEvents; i++ {
		p.events.Set(videoEvent(i), disabled)
	}
	if p.enabled() {
		p.mem.Set(memM0Irq, clamp(s.M0IrqTime))
		p.mem.Set(memM1Irq, clamp(s.M1IrqTime))
		p.mem.Set(memM2Irq, clamp(s.M2IrqTime))
		p.mem.Set(memOneshotStat, clamp(s.OneshotStat))
		p.mem.Set(memOneshotWy2, clamp(s.OneshotWy2))
		p.mem.Set(memSpriteMap, clamp(s.SpriteMap))
		p.mem.Set(memHDMA, clamp(s.HDMATime))
		p.mem.Set(memLycIrq, p.lyc.time)
		p.events.Set(memEventTag, p.mem.MinValue())
		p.events.Set(drawEvent, clamp(s.DrawTime))
		p.events.Set(lyEvent, p.ly.time)
	}
	p.publish()
}
