// Package io provides the memory bus of the Game Boy: the IO register
// decode, the internal memories, DMA, and the single event entry point the
// CPU driver calls into.
package io

import (
	"github.com/thelolagemann/gbcore/internal/apu"
	"github.com/thelolagemann/gbcore/internal/interrupts"
	"github.com/thelolagemann/gbcore/internal/ppu"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/serial"
	"github.com/thelolagemann/gbcore/internal/timer"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
)

const (
	// RebaseThreshold is the cycle counter value past which the machine
	// should call Bus.Rebase.
	RebaseThreshold = 1 << 30

	// stopCycles is how long the CPU stays stopped after a speed switch.
	stopCycles = 0x20000
)

// Cartridge is the cartridge slot: ROM at 0x0000 - 0x7FFF and external
// RAM at 0xA000 - 0xBFFF. Bank switching and battery saves are its own
// business.
type Cartridge interface {
	Read(addr uint16, cc uint64) uint8
	Write(addr uint16, cc uint64, v uint8)
}

// Interrupter performs the dispatch of an interrupt on the CPU: pushing
// PC and jumping to vector. It returns the cycle counter once done.
type Interrupter interface {
	Interrupt(vector uint16, cc uint64) uint64
}

type noCartridge struct{}

func (noCartridge) Read(uint16, uint64) uint8 { return 0xFF }

func (noCartridge) Write(uint16, uint64, uint8) {}

// dispatchCycles is the cost of an interrupt dispatch: 2 wait states,
// 2 pushes and the jump.
const dispatchCycles = 20

type defaultInterrupter struct{}

func (defaultInterrupter) Interrupt(_ uint16, cc uint64) uint64 {
	return cc + dispatchCycles
}

// Bus is the memory bus. It owns every component of the timing core and
// the memories that are not mapped by the cartridge.
//
// Components keep their next event time in the requester's coarse
// keeper. The CPU driver runs until the earliest of them, then calls
// Event, which services whatever is due.
type Bus struct {
	// ioamhram holds 0xFE00 - 0xFFFF: OAM, IO registers, HRAM and IE.
	ioamhram [0x200]byte
	wram     [0x8000]byte

	irq    *interrupts.Requester
	timer  *timer.Controller
	serial *serial.Controller
	apu    *apu.APU
	ppu    *ppu.PPU

	cart        Cartridge
	interrupter Interrupter
	log         log.Logger

	// OAM DMA
	oamDMASrc    uint16
	oamDMAPos    uint8
	oamDMALatch  uint8
	oamDMAActive bool

	// VRAM DMA
	dmaSrc, dmaDst uint16
	dmaBlocks      uint8
	hdmaActive     bool
	gdmaActive     bool

	svbk    uint8
	key1    uint8
	ds      uint8
	stopped bool

	frameDone bool

	model types.Model
	cgb   bool
}

// NewBus returns a bus for model m, wiring up every component. The bus
// still needs a Reset before use.
func NewBus(m types.Model, l log.Logger) *Bus {
	if l == nil {
		l = log.NewNullLogger()
	}
	cgb := m.IsCGB()
	b := &Bus{
		irq:         interrupts.NewRequester(),
		cart:        noCartridge{},
		interrupter: defaultInterrupter{},
		log:         l,
		model:       m,
		cgb:         cgb,
	}
	b.timer = timer.NewController(b.irq)
	b.serial = serial.NewController(b.irq, b.timer, cgb)
	b.apu = apu.New(cgb)
	b.ppu = ppu.New(b.irq, b.ioamhram[:0xA0], cgb)
	b.ppu.SetLogger(l)
	return b
}

// AttachCartridge inserts c into the cartridge slot. A nil c empties it.
func (b *Bus) AttachCartridge(c Cartridge) {
	if c == nil {
		c = noCartridge{}
	}
	b.cart = c
}

// AttachInterrupter sets the collaborator that dispatches interrupts on
// the CPU. A nil i restores the default, which only accounts the cycles.
func (b *Bus) AttachInterrupter(i Interrupter) {
	if i == nil {
		i = defaultInterrupter{}
	}
	b.interrupter = i
}

// Reset powers the machine up at cc, leaving the registers as the boot
// ROM would have.
func (b *Bus) Reset(cc uint64) {
	b.irq.Reset()
	b.ioamhram = [0x200]byte{}
	b.wram = [0x8000]byte{}

	b.oamDMASrc, b.oamDMAPos, b.oamDMALatch, b.oamDMAActive = 0, 0xA0, 0xFF, false
	b.dmaSrc, b.dmaDst, b.dmaBlocks = 0, 0, 0xFF
	b.hdmaActive, b.gdmaActive = false, false
	b.svbk, b.key1, b.ds, b.stopped = 1, 0, 0, false
	b.frameDone = false

	b.timer.Reset(types.ModelDIV[b.model], cc)
	b.serial.Reset()
	b.apu.Reset(cc)
	b.ppu.Reset()
	b.ppu.SetDoubleSpeed(false)

	for _, r := range types.CommonIO {
		b.Write(r.Address, cc, r.Value)
	}
	b.ioamhram[0x146] = 0xFF
	b.irq.SetEventTime(scheduler.Blit, b.ppu.NextBlit(cc))
	b.log.Debugf("bus: reset as %s", b.model)
}

// Requester returns the interrupt requester.
func (b *Bus) Requester() *interrupts.Requester { return b.irq }

// Sound returns the APU.
func (b *Bus) Sound() *apu.APU { return b.apu }

// Video returns the PPU.
func (b *Bus) Video() *ppu.PPU { return b.ppu }

// Timer returns the timer.
func (b *Bus) Timer() *timer.Controller { return b.timer }

// Serial returns the serial port.
func (b *Bus) Serial() *serial.Controller { return b.serial }

// Model returns the emulated model.
func (b *Bus) Model() types.Model { return b.model }

// DoubleSpeed reports whether the CGB runs in double speed.
func (b *Bus) DoubleSpeed() bool { return b.ds != 0 }

// IsCGB reports whether the CGB hardware is enabled.
func (b *Bus) IsCGB() bool { return b.cgb }
