package palette

import (
	"github.com/thelolagemann/gbcore/internal/types"
)

// CGBPalette is a palette used by the CGB to provide
// up to 32768 colors. It holds 8 palettes of 4 colours,
// each colour a little endian 15-bit BGR value, and is
// accessed one byte at a time through an index register
// (BCPS/OCPS) and a data register (BCPD/OCPD).
type CGBPalette struct {
	RAM          [64]byte
	Index        byte
	Incrementing bool
}

// NewCGBPalette returns a palette with every colour set to white.
func NewCGBPalette() *CGBPalette {
	p := &CGBPalette{}
	p.Reset()
	return p
}

// Reset sets every colour to white and clears the index.
func (p *CGBPalette) Reset() {
	for i := range p.RAM {
		p.RAM[i] = 0xFF
	}
	for i := 1; i < len(p.RAM); i += 2 {
		p.RAM[i] = 0x7F
	}
	p.Index = 0
	p.Incrementing = false
}

// SetIndex updates the index of the palette.
func (p *CGBPalette) SetIndex(value byte) {
	p.Index = value & 0x3F
	p.Incrementing = value&types.Bit7 != 0
}

// GetIndex returns the index of the palette.
func (p *CGBPalette) GetIndex() byte {
	if p.Incrementing {
		return p.Index | types.Bit7
	}
	return p.Index
}

// Read returns the byte at the current index.
func (p *CGBPalette) Read() byte {
	return p.RAM[p.Index]
}

// Write writes the byte at the current index, advancing the index
// if auto increment is set.
func (p *CGBPalette) Write(value byte) {
	p.RAM[p.Index] = value
	p.Increment()
}

// Increment advances the index if auto increment is set. Writes that
// land while the palette is locked still advance it.
func (p *CGBPalette) Increment() {
	if p.Incrementing {
		p.Index = (p.Index + 1) & 0x3F
	}
}

// GetColour returns the host colour (0xRRGGBB) for a given palette
// index, and colour index.
func (p *CGBPalette) GetColour(paletteIndex, colourIndex byte) uint32 {
	i := int(paletteIndex&7)*8 + int(colourIndex&3)*2
	return ToRGB(uint16(p.RAM[i]) | uint16(p.RAM[i+1])<<8)
}

// ToRGB converts a 15-bit BGR colour to 0xRRGGBB, widening each 5-bit
// component so that 0x1F maps to 0xFF.
func ToRGB(c uint16) uint32 {
	r := uint32(c & 0x1F)
	g := uint32(c >> 5 & 0x1F)
	b := uint32(c >> 10 & 0x1F)
	r = r<<3 | r>>2
	g = g<<3 | g>>2
	b = b<<3 | b>>2
	return r<<16 | g<<8 | b
}
