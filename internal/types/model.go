package types

import (
	"strings"
)

type Model int // The Model used in emulation.

const (
	Unset  Model = iota // Unset - Model hasn't been set - behaves as DMGABC
	DMG0                // DMG0 - early Game Boy, only released in Japan
	DMGABC              // DMGABC - Standard Game Boy
	MGB                 // MGB - Pocket Game Boy
	CGB0                // CGB0 - early Game Boy Colour, only released in Japan
	CGBABC              // CGBABC - Standard Game Boy Colour
	AGB                 // AGB - Game Boy Advance running in CGB mode
)

var ModelNames = map[Model]string{
	DMG0:   "DMG0",
	DMGABC: "DMG",
	MGB:    "MGB",
	CGB0:   "CGB0",
	CGBABC: "CGB",
	AGB:    "AGB",
	Unset:  "Unset",
}

// StringToModel converts a string to a Model.
func StringToModel(s string) Model {
	for m, n := range ModelNames {
		if n == strings.ToUpper(s) {
			return m
		}
	}

	return Unset
}

func (m Model) String() string {
	return ModelNames[m]
}

// IsCGB reports whether the model runs with the Game Boy Color hardware
// enabled (double speed, VRAM/WRAM banking, HDMA, colour palettes).
func (m Model) IsCGB() bool {
	return m == CGB0 || m == CGBABC || m == AGB
}

// ModelDIV - model specific value of the 16-bit divider when the boot ROM
// hands over to the cartridge.
var ModelDIV = map[Model]uint16{
	Unset:  0xABC9,
	DMG0:   0x182F,
	DMGABC: 0xABC9,
	MGB:    0xABC9,
	CGB0:   0x2881,
	CGBABC: 0x2675,
	AGB:    0x267B,
}

// RegisterValue is a hardware register and the value written to it.
type RegisterValue struct {
	Address HardwareAddress
	Value   uint8
}

// CommonIO - common starting IO registers, written in order after a reset.
// Sound power has to come first, as the sound registers ignore writes while
// powered off.
var CommonIO = []RegisterValue{
	{NR52, 0xF1},
	{NR10, 0x80},
	{NR11, 0xBF},
	{NR12, 0xF3},
	{NR21, 0x3F},
	{NR22, 0x00},
	{NR30, 0x7F},
	{NR31, 0xFF},
	{NR32, 0x9F},
	{NR41, 0xFF},
	{NR42, 0x00},
	{NR43, 0x00},
	{NR50, 0x77},
	{NR51, 0xF3},
	{TAC, 0xF8},
	{BGP, 0xFC},
	{OBP0, 0xFF},
	{OBP1, 0xFF},
	{IF, 0xE1},
	{LCDC, 0x91},
}
