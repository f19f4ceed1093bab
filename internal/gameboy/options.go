package gameboy

import (
	"github.com/thelolagemann/gbcore/internal/io"
	"github.com/thelolagemann/gbcore/internal/ppu/palette"
	"github.com/thelolagemann/gbcore/internal/serial"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
)

// Opt is a function that modifies a GameBoy
// instance.
type Opt func(gb *GameBoy)

// AsModel selects the emulated model.
func AsModel(m types.Model) Opt {
	return func(gb *GameBoy) {
		gb.model = m
	}
}

func WithLogger(log log.Logger) Opt {
	return func(gb *GameBoy) {
		if log != nil {
			gb.Logger = log
		}
	}
}

// WithFramebuffer sets the buffer frames are drawn into, as 0xRRGGBB
// pixels with pitch pixels between the starts of two lines.
func WithFramebuffer(fb []uint32, pitch int) Opt {
	return func(gb *GameBoy) {
		gb.fb, gb.pitch = fb, pitch
	}
}

// WithSampleBuffer sets the buffer sound is generated into, as
// interleaved left/right samples at apu.SampleRate. It must hold every
// sample generated between two calls to FillSamples.
func WithSampleBuffer(buf []int32) Opt {
	return func(gb *GameBoy) {
		gb.samples = buf
	}
}

func WithCartridge(c io.Cartridge) Opt {
	return func(gb *GameBoy) {
		gb.cart = c
	}
}

// WithCPU attaches the instruction executor. Without one the machine
// idles from event to event.
func WithCPU(c CPU) Opt {
	return func(gb *GameBoy) {
		gb.cpu = c
	}
}

// WithInterrupter sets the collaborator that performs interrupt
// dispatches on the CPU.
func WithInterrupter(i io.Interrupter) Opt {
	return func(gb *GameBoy) {
		gb.interrupter = i
	}
}

// WithSerialDevice connects d to the serial port.
func WithSerialDevice(d serial.Device) Opt {
	return func(gb *GameBoy) {
		gb.device = d
	}
}

// WithDMGPalette sets the host colours of the 4 DMG shades.
func WithDMGPalette(p palette.Palette) Opt {
	return func(gb *GameBoy) {
		gb.colours = p
	}
}

// WithCompression brotli compresses saved states.
func WithCompression() Opt {
	return func(gb *GameBoy) {
		gb.compress = true
	}
}
