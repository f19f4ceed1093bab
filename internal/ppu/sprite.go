package ppu

const (
	// maxSpritesPerLine is the number of sprites the OAM scan selects
	// for a single line.
	maxSpritesPerLine = 10
	oamEntries        = 40
)

// sprite is a decoded OAM entry.
type sprite struct {
	index  uint8
	x, y   int // screen position of the top left pixel
	tileID uint8
	// Bit 7 - OBJ-to-BG priority (0=OBJ Above BG, 1=OBJ Behind BG color 1-3)
	// Bit 6 - Y flip
	// Bit 5 - X flip
	// Bit 4 - Palette number  **Non CGB mode Only** (0=OBP0, 1=OBP1)
	// Bit 3 - Tile VRAM-Bank  **CGB mode Only**
	// Bit 0-2 - Palette number  **CGB mode Only**
	attributes uint8
}

func (p *PPU) sprite(index uint8) sprite {
	e := p.oam[int(index)*4:]
	return sprite{
		index:      index,
		y:          int(e[0]) - 16,
		x:          int(e[1]) - 8,
		tileID:     e[2],
		attributes: e[3],
	}
}

func (p *PPU) spriteHeight() int {
	if p.lcdc&lcdcObjSize != 0 {
		return 16
	}
	return 8
}

// mapSprites refreshes the per line sprite selection from the current line
// to the end of the screen. Lines are only remapped when OAM or the sprite
// height changed since they were last mapped, and a map started mid frame
// is completed from the top on the next frame.
func (p *PPU) mapSprites() {
	ly := int(p.ly.ly)
	if !p.oamDirty && !(ly == 0 && p.partialMap) {
		return
	}

	height := p.spriteHeight()
	for line := ly; line < ScreenHeight; line++ {
		n := 0
		for i := 0; i < oamEntries && n < maxSpritesPerLine; i++ {
			y := int(p.oam[i*4]) - 16
			if line >= y && line < y+height {
				p.spriteCache[line][n] = uint8(i)
				n++
			}
		}
		p.spriteCount[line] = uint8(n)
	}

	p.oamDirty = false
	p.partialMap = ly != 0
}

// spritePenalty returns the dots the sprites selected for the current line
// add to mode 3.
func (p *PPU) spritePenalty() uint64 {
	if p.lcdc&lcdcObjEnable == 0 {
		return 0
	}

	var dots uint64
	line := p.ly.ly
	for _, i := range p.spriteCache[line][:p.spriteCount[line]] {
		x := uint64(p.oam[int(i)*4+1]) + uint64(p.scx)
		dots += 6 + 5 - min64(5, x&7)
	}
	return dots
}

// OAMChange notes that OAM was written at cc, so the sprite selection of
// the lines still to come must be rebuilt.
func (p *PPU) OAMChange(cc uint64) {
	p.Update(cc)
	p.oamDirty = true
	p.publish()
}
