package gameboy

import (
	"github.com/thelolagemann/gbcore/internal/types"
)

// DemoSteps returns a register program that sets up a background palette
// and fills tile 0 from WRAM through H-Blank DMA, while channel 2 plays a
// decaying tone. The palette and DMA writes only take effect on CGB
// models.
func DemoSteps() []Step {
	steps := []Step{{Delay: 10, Addr: types.BCPS, Value: 0x80}}
	for _, v := range []uint8{0xFF, 0x7F, 0x18, 0x63, 0xE0, 0x03, 0x00, 0x00} {
		steps = append(steps, Step{Delay: 4, Addr: types.BCPD, Value: v})
	}
	steps = append(steps, []Step{
		{Delay: 4, Addr: types.NR22, Value: 0xF1},
		{Delay: 4, Addr: types.NR21, Value: 0x80},
		{Delay: 4, Addr: types.NR23, Value: 0x00},
		{Delay: 4, Addr: types.NR24, Value: 0x87},
	}...)
	for i := uint16(0); i < 0x400; i++ {
		steps = append(steps, Step{Delay: 0, Addr: 0xC000 + i, Value: uint8(i * 7)})
	}
	return append(steps,
		Step{Delay: 4, Addr: types.HDMA1, Value: 0xC0},
		Step{Delay: 4, Addr: types.HDMA2, Value: 0x00},
		Step{Delay: 4, Addr: types.HDMA3, Value: 0x00},
		Step{Delay: 4, Addr: types.HDMA4, Value: 0x00},
		Step{Delay: 4, Addr: types.HDMA5, Value: 0xBF},
	)
}
