package palette

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByteToPalette(t *testing.T) {
	p := ByteToPalette(0xE4, Palettes[Greyscale])
	assert.Equal(t, Palettes[Greyscale], p)

	p = ByteToPalette(0x1B, Palettes[Greyscale])
	assert.Equal(t, Palette{Black, 0x777777, 0xCCCCCC, White}, p)
}

func TestCGBPalette_AutoIncrement(t *testing.T) {
	p := NewCGBPalette()
	assert.Equal(t, uint32(White), p.GetColour(3, 2))

	p.SetIndex(0x80 | 0x3E)
	assert.Equal(t, byte(0xBE), p.GetIndex())
	p.Write(0x1F)
	p.Write(0x00)
	assert.Equal(t, byte(0x80), p.GetIndex(), "index wraps at 0x3F")
	assert.Equal(t, uint32(0xFF0000), p.GetColour(7, 3))

	p.SetIndex(0x02)
	p.Write(0xE0)
	p.Write(0x03)
	assert.Equal(t, byte(0x03), p.Read(), "no auto increment")
	assert.Equal(t, uint32(0xFF0000), p.GetColour(7, 3))
}

func TestToRGB(t *testing.T) {
	assert.Equal(t, uint32(0x000000), ToRGB(0))
	assert.Equal(t, uint32(0xFFFFFF), ToRGB(0x7FFF))
	assert.Equal(t, uint32(0x00FF00), ToRGB(0x03E0))
	assert.Equal(t, uint32(0x0000FF), ToRGB(0x7C00))
	assert.Equal(t, uint32(0x840000), ToRGB(0x0010))
}
