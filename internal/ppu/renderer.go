package ppu

import (
	"sort"

	"github.com/thelolagemann/gbcore/internal/ppu/palette"
)

// LCDC bits.
const (
	lcdcBGEnable   = 0x01 // BG display (DMG), BG master priority (CGB)
	lcdcObjEnable  = 0x02
	lcdcObjSize    = 0x04
	lcdcBGTileMap  = 0x08
	lcdcTileData   = 0x10
	lcdcWinEnable  = 0x20
	lcdcWinTileMap = 0x40
	lcdcEnable     = 0x80
)

// tile attribute bits (CGB map attributes and OAM attributes).
const (
	attrPalette  = 0x07
	attrBank     = 0x08
	attrDMGPal   = 0x10
	attrFlipX    = 0x20
	attrFlipY    = 0x40
	attrPriority = 0x80
)

// scanline is the working state of a line being drawn.
type scanline struct {
	colour [ScreenWidth]uint32
	bgIdx  [ScreenWidth]uint8 // BG/window colour number, 0-3
	bgPrio [ScreenWidth]bool  // CGB map attribute bit 7
}

// tileRow fetches the 2 bitplanes of row (0-7) of the tile at map entry
// (tx, ty) of the map at mapBase, along with the entry's CGB attributes.
// The bitplanes are returned with the X flip already applied.
func (p *PPU) tileRow(mapBase uint16, tx, ty, row uint8) (lo, hi, attr uint8) {
	mapAddr := mapBase + uint16(ty&31)*32 + uint16(tx&31)
	tileNo := p.vram[mapAddr]
	if p.cgb {
		attr = p.vram[0x2000+mapAddr]
	}
	if attr&attrFlipY != 0 {
		row = 7 - row
	}

	var addr uint16
	if p.lcdc&lcdcTileData != 0 {
		addr = uint16(tileNo) * 16
	} else {
		addr = uint16(0x1000 + int(int8(tileNo))*16)
	}
	addr += uint16(row) * 2
	if attr&attrBank != 0 {
		addr += 0x2000
	}

	lo, hi = p.vram[addr], p.vram[addr+1]
	if attr&attrFlipX != 0 {
		lo, hi = reverse(lo), reverse(hi)
	}
	return
}

// reverse mirrors the bits of b.
func reverse(b uint8) uint8 {
	b = b&0xF0>>4 | b&0x0F<<4
	b = b&0xCC>>2 | b&0x33<<2
	return b&0xAA>>1 | b&0x55<<1
}

func pixel(lo, hi uint8, bit uint) uint8 {
	return (hi>>bit&1)<<1 | lo>>bit&1
}

func (p *PPU) bgColour(attr, idx uint8) uint32 {
	if p.cgb {
		return p.bgPalette.GetColour(attr&attrPalette, idx)
	}
	return palette.ByteToPalette(p.bgp, p.colours)[idx]
}

func (p *PPU) drawBackground(l *scanline) {
	ly := p.ly.ly
	mapBase := uint16(0x1800)
	if p.lcdc&lcdcBGTileMap != 0 {
		mapBase = 0x1C00
	}

	y := ly + p.scy
	for x := 0; x < ScreenWidth; {
		sx := uint8(x) + p.scx
		lo, hi, attr := p.tileRow(mapBase, sx/8, y/8, y%8)
		for bit := int(7 - sx%8); bit >= 0 && x < ScreenWidth; bit-- {
			idx := pixel(lo, hi, uint(bit))
			l.bgIdx[x] = idx
			l.bgPrio[x] = attr&attrPriority != 0
			l.colour[x] = p.bgColour(attr, idx)
			x++
		}
	}
}

func (p *PPU) drawWindow(l *scanline) {
	mapBase := uint16(0x1800)
	if p.lcdc&lcdcWinTileMap != 0 {
		mapBase = 0x1C00
	}

	wx := int(p.wx) - 7
	y := p.windowLine
	for x := max(wx, 0); x < ScreenWidth; x++ {
		wpx := x - wx
		lo, hi, attr := p.tileRow(mapBase, uint8(wpx/8), y/8, y%8)
		idx := pixel(lo, hi, uint(7-wpx%8))
		l.bgIdx[x] = idx
		l.bgPrio[x] = attr&attrPriority != 0
		l.colour[x] = p.bgColour(attr, idx)
	}
}

// drawSprites draws the sprites selected for the current line. The first
// opaque pixel of the highest priority sprite claims each screen column,
// even when the background ends up drawn over it.
func (p *PPU) drawSprites(l *scanline) {
	ly := int(p.ly.ly)
	n := p.spriteCount[ly]
	sprites := make([]sprite, 0, maxSpritesPerLine)
	for _, i := range p.spriteCache[ly][:n] {
		sprites = append(sprites, p.sprite(i))
	}
	if !p.cgb {
		// DMG priority is by X, then OAM order
		sort.SliceStable(sprites, func(i, j int) bool {
			return sprites[i].x < sprites[j].x
		})
	}

	height := p.spriteHeight()
	var claimed [ScreenWidth]bool
	for _, s := range sprites {
		row := ly - s.y
		if row < 0 || row >= height {
			continue
		}
		if s.attributes&attrFlipY != 0 {
			row = height - 1 - row
		}
		tile := s.tileID
		if height == 16 {
			tile &= 0xFE
		}

		addr := uint16(tile)*16 + uint16(row)*2
		if p.cgb && s.attributes&attrBank != 0 {
			addr += 0x2000
		}
		lo, hi := p.vram[addr], p.vram[addr+1]
		if s.attributes&attrFlipX != 0 {
			lo, hi = reverse(lo), reverse(hi)
		}

		for px := 0; px < 8; px++ {
			x := s.x + px
			if x < 0 || x >= ScreenWidth || claimed[x] {
				continue
			}
			idx := pixel(lo, hi, uint(7-px))
			if idx == 0 {
				continue
			}
			claimed[x] = true
			if p.bgOverSprite(l, x, s.attributes) {
				continue
			}
			l.colour[x] = p.objColour(s.attributes, idx)
		}
	}
}

func (p *PPU) bgOverSprite(l *scanline, x int, attr uint8) bool {
	if l.bgIdx[x] == 0 {
		return false
	}
	if p.cgb {
		return p.lcdc&lcdcBGEnable != 0 && (attr&attrPriority != 0 || l.bgPrio[x])
	}
	return attr&attrPriority != 0
}

func (p *PPU) objColour(attr, idx uint8) uint32 {
	if p.cgb {
		return p.objPalette.GetColour(attr&attrPalette, idx)
	}
	obp := p.obp0
	if attr&attrDMGPal != 0 {
		obp = p.obp1
	}
	return palette.ByteToPalette(obp, p.colours)[idx]
}

// drawLine renders the current line into the framebuffer.
func (p *PPU) drawLine() {
	p.events.Set(drawEvent, disabled)

	window := p.windowVisible()
	if p.fb != nil {
		var l scanline
		if p.cgb || p.lcdc&lcdcBGEnable != 0 {
			p.drawBackground(&l)
			if window {
				p.drawWindow(&l)
			}
		} else {
			for x := range l.colour {
				l.colour[x] = p.colours[0]
			}
		}
		if p.lcdc&lcdcObjEnable != 0 {
			p.drawSprites(&l)
		}
		copy(p.fb[int(p.ly.ly)*p.pitch:], l.colour[:])
	}
	if window {
		p.windowLine++
	}
}

// blank fills the framebuffer with the colour of a disabled LCD.
func (p *PPU) blank() {
	if p.fb == nil {
		return
	}
	c := uint32(palette.White)
	if !p.cgb {
		c = p.colours[0]
	}
	for y := 0; y < ScreenHeight; y++ {
		line := p.fb[y*p.pitch : y*p.pitch+ScreenWidth]
		for x := range line {
			line[x] = c
		}
	}
}
