package palette

const (
	// Greyscale is the default greyscale palette.
	Greyscale = iota
	// Green is the green palette which attempts to emulate
	// the original colour palette as it would have appeared
	// on the original Game Boy.
	Green
	// Red is a red palette.
	Red
	// Yellow is a yellow palette.
	Yellow
)

const (
	White = 0xFFFFFF
	Black = 0x000000
)

// Palette represents the 4 host colours (0xRRGGBB) that the shades
// of a DMG palette register are drawn with, lightest first.
type Palette [4]uint32

// Palettes is a list of all available palettes.
var Palettes = []Palette{
	Greyscale: {White, 0xCCCCCC, 0x777777, Black},
	Green:     {0x9BBC0F, 0x8BAC0F, 0x306230, 0x0F380F},
	Red:       {0xFF0000, 0xCC0000, 0x770000, Black},
	Yellow:    {0xFFFF00, 0xCCCC00, 0x777700, Black},
}

// ByteToPalette creates a new palette from a palette register
// (BGP, OBP0 or OBP1), using base for the 4 shades.
func ByteToPalette(b byte, base Palette) Palette {
	var p Palette
	p[0] = base[b&0x03]
	p[1] = base[(b>>2)&0x03]
	p[2] = base[(b>>4)&0x03]
	p[3] = base[(b>>6)&0x03]
	return p
}
