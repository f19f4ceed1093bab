// Package gameboy assembles the timing core into a machine that can be
// run, sampled and snapshotted.
package gameboy

import (
	"errors"
	"fmt"

	"github.com/thelolagemann/gbcore/internal/io"
	"github.com/thelolagemann/gbcore/internal/ppu"
	"github.com/thelolagemann/gbcore/internal/ppu/palette"
	"github.com/thelolagemann/gbcore/internal/savestate"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/serial"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
)

const (
	// ClockSpeed is the clock speed of the Game Boy.
	ClockSpeed = 4194304 // 4.194304 MHz
	// CyclesPerFrame is the number of clock cycles per frame.
	CyclesPerFrame = ppu.FrameDots // 4194304 / 59.7
)

// ErrIncompatibleState is returned when loading a state saved by a
// different model.
var ErrIncompatibleState = errors.New("gameboy: state does not match the model")

// CPU executes instructions against the bus. Run executes from cycle cc
// until the counter reaches until, the CPU halts or stops, returning the
// counter reached. Accesses go through b, consulting its access
// predicates.
type CPU interface {
	Run(b *io.Bus, cc, until uint64) uint64
}

// StateSaver is implemented by CPUs that keep their registers in saved
// states.
type StateSaver interface {
	SaveState(st *savestate.State)
	LoadState(st *savestate.State)
}

// Rebaser is implemented by CPUs that keep cycle times of their own.
type Rebaser interface {
	Rebase(dec uint64)
}

// GameBoy is a Game Boy: the bus with every component of the timing core,
// the cycle counter and the collaborators attached to them.
type GameBoy struct {
	bus *io.Bus
	cc  uint64

	cpu         CPU
	cart        io.Cartridge
	interrupter io.Interrupter
	device      serial.Device

	fb      []uint32
	pitch   int
	samples []int32
	colours palette.Palette

	compress bool
	model    types.Model
	log.Logger
}

// New returns a Game Boy reset to the state the boot ROM leaves it in.
func New(opts ...Opt) *GameBoy {
	g := &GameBoy{
		model:   types.DMGABC,
		colours: palette.Palettes[palette.Greyscale],
		Logger:  log.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.model == types.Unset {
		g.model = types.DMGABC
	}

	g.bus = io.NewBus(g.model, g.Logger)
	g.bus.AttachCartridge(g.cart)
	g.bus.AttachInterrupter(g.interrupter)
	g.bus.Serial().Attach(g.device)
	g.bus.Video().SetColours(g.colours)
	if g.fb != nil {
		g.bus.Video().SetFramebuffer(g.fb, g.pitch)
	}
	g.bus.Sound().SetBuffer(g.samples)

	g.Reset()
	return g
}

// Reset powers the machine up again, with the cycle counter at 0.
func (g *GameBoy) Reset() {
	g.cc = 0
	g.bus.Reset(0)
	g.Debugf("gameboy: reset as %s", g.model)
}

// Bus returns the memory bus.
func (g *GameBoy) Bus() *io.Bus {
	return g.bus
}

// Cycle returns the cycle counter. It is moved back from time to time to
// keep it small, so only differences between readings are meaningful
// within a RunFor call.
func (g *GameBoy) Cycle() uint64 {
	return g.cc
}

// Model returns the emulated model.
func (g *GameBoy) Model() types.Model {
	return g.model
}

// RunFor runs the machine for up to cycles machine cycles, returning early
// once a frame is complete. It returns the cycles run and whether a frame
// was completed.
//
// Without a CPU, or while it is halted, time moves directly from one
// event to the next.
func (g *GameBoy) RunFor(cycles uint64) (uint64, bool) {
	start := g.cc
	end := g.cc + cycles
	g.bus.SetEndTime(end)

	frameDone := false
	for g.cc < end && !frameDone {
		next := g.bus.NextEventTime()
		switch {
		case next <= g.cc:
		case g.cpu != nil && !g.bus.Halted():
			g.cc = g.cpu.Run(g.bus, g.cc, next)
			if g.cc < next && g.bus.Halted() {
				g.cc = next
			}
		default:
			g.cc = next
		}
		if g.bus.NextEventTime() <= g.cc {
			g.cc, _ = g.bus.Event(g.cc)
		}
		frameDone = g.bus.FrameDone()
	}
	g.bus.SetEndTime(scheduler.Disabled)
	elapsed := g.cc - start

	if g.cc >= io.RebaseThreshold {
		old := g.cc
		g.cc = g.bus.Rebase(g.cc)
		if r, ok := g.cpu.(Rebaser); ok {
			r.Rebase(old - g.cc)
		}
	}
	return elapsed, frameDone
}

// RunFrame runs the machine until the next frame is complete, or for at
// most two frames' worth of cycles.
func (g *GameBoy) RunFrame() uint64 {
	var elapsed uint64
	for elapsed < 2*CyclesPerFrame {
		n, done := g.RunFor(2*CyclesPerFrame - elapsed)
		elapsed += n
		if done {
			break
		}
	}
	return elapsed
}

// FillSamples brings the sound output up to date and returns the sample
// buffer along with the number of stereo samples written to it since the
// last call.
func (g *GameBoy) FillSamples() ([]int32, int) {
	a := g.bus.Sound()
	a.GenerateSamples(g.cc, types.Bool(g.bus.DoubleSpeed()))
	return g.samples, a.FillBuffer()
}

// SaveState returns a snapshot of the machine.
func (g *GameBoy) SaveState() ([]byte, error) {
	st := new(savestate.State)
	st.CPU.CycleCounter = g.cc
	if s, ok := g.cpu.(StateSaver); ok {
		s.SaveState(st)
	}
	g.bus.SaveState(st)

	b, err := savestate.Marshal(st, savestate.Options{Compress: g.compress})
	if err != nil {
		return nil, err
	}
	g.Debugf("gameboy: saved state at cycle %d (%d bytes)", g.cc, len(b))
	return b, nil
}

// LoadState restores a snapshot taken by SaveState. On error the machine
// is left untouched. The framebuffer is not part of a snapshot: lines
// drawn before the saved cycle keep whatever the buffer holds.
func (g *GameBoy) LoadState(b []byte) error {
	st, err := savestate.Unmarshal(b)
	if err != nil {
		g.Errorf("gameboy: loading state: %v", err)
		return err
	}
	if st.Mem.DoubleSpeed && !g.model.IsCGB() {
		return fmt.Errorf("%w: double speed on %s", ErrIncompatibleState, g.model)
	}

	g.cc = st.CPU.CycleCounter
	if s, ok := g.cpu.(StateSaver); ok {
		s.LoadState(st)
	}
	g.bus.LoadState(st)
	g.Debugf("gameboy: loaded state at cycle %d", g.cc)
	return nil
}
