// Package timer provides an implementation of the Game Boy
// timer. It is used to generate interrupts at a specific
// frequency. The frequency can be configured using the
// types.TAC register.
package timer

import (
	"github.com/thelolagemann/gbcore/internal/interrupts"
	"github.com/thelolagemann/gbcore/internal/savestate"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
)

// periods holds the number of cycles between falling edges of the
// divider bit selected by TAC bits 1-0 (bits 9, 3, 5 and 7).
var periods = [4]uint64{1024, 16, 64, 256}

// Controller is a timer controller. It is used to generate
// interrupts at a specific frequency.
//
// The controller doesn't tick. The 16-bit divider is a function of the
// cycle counter (divider = cc + divOffset), and TIMA increments are
// counted from the falling edges of the selected divider bit since the
// last update whenever a register is accessed or the timer event fires.
// Because edges are derived from the divider, changing TAC keeps the
// phase of the count.
//
// When TIMA overflows at cycle T it reads 0 until T+4, at which point it
// is loaded from TMA and the timer interrupt is requested. Writes to TIMA
// in [T, T+8) are dropped, and writes to TMA in [T+4, T+8) are also copied
// into TIMA. A TMA write before T+4 is simply picked up by the reload.
type Controller struct {
	irq *interrupts.Requester

	divOffset  uint16
	lastUpdate uint64 // edges up to this cycle have been counted
	reloadTime uint64 // T+4 of a pending reload, or scheduler.Disabled
	reloadedAt uint64 // time of the last reload, or scheduler.Disabled

	tima uint8
	tma  uint8
	tac  uint8
}

// NewController returns a new timer controller.
func NewController(irq *interrupts.Requester) *Controller {
	c := &Controller{irq: irq}
	c.Reset(0, 0)
	return c
}

// Reset clears the timer registers and sets the divider to div at cycle cc.
func (c *Controller) Reset(div uint16, cc uint64) {
	c.divOffset = div - uint16(cc)
	c.lastUpdate = cc
	c.reloadTime = scheduler.Disabled
	c.reloadedAt = scheduler.Disabled
	c.tima, c.tma, c.tac = 0, 0, 0
	c.schedule()
}

func (c *Controller) enabled() bool {
	return c.tac&types.Bit2 != 0
}

func (c *Controller) period() uint64 {
	return periods[c.tac&3]
}

// Divider returns the 16-bit system divider at cycle cc.
func (c *Controller) Divider(cc uint64) uint16 {
	return uint16(cc) + c.divOffset
}

// full maps cc onto a counter whose low 16 bits are the divider. Every
// period divides 0x10000, so multiples of a period in this counter are
// falling edges.
func (c *Controller) full(cc uint64) uint64 {
	return cc + uint64(c.divOffset)
}

// edges returns the number of falling edges in (a, b].
func (c *Controller) edges(a, b uint64) uint64 {
	p := c.period()
	return c.full(b)/p - c.full(a)/p
}

// edgeTime returns the time of the k-th falling edge after a.
func (c *Controller) edgeTime(a, k uint64) uint64 {
	p := c.period()
	first := (c.full(a)/p + 1) * p
	return first + (k-1)*p - uint64(c.divOffset)
}

// bitHigh reports whether the selected divider bit is set at cc.
func (c *Controller) bitHigh(cc uint64) bool {
	p := c.period()
	return c.full(cc)%p >= p/2
}

// update brings TIMA up to date with cycle cc.
func (c *Controller) update(cc uint64) {
	for {
		if c.reloadTime != scheduler.Disabled {
			if cc < c.reloadTime {
				return
			}
			c.tima = c.tma
			c.irq.FlagIrqAt(interrupts.TimerFlag, c.reloadTime)
			c.lastUpdate = c.reloadTime
			c.reloadedAt = c.reloadTime
			c.reloadTime = scheduler.Disabled
		}

		if cc <= c.lastUpdate {
			return
		}
		if !c.enabled() {
			c.lastUpdate = cc
			return
		}

		n := c.edges(c.lastUpdate, cc)
		left := 0x100 - uint64(c.tima)
		if n < left {
			c.tima += uint8(n)
			c.lastUpdate = cc
			return
		}

		overflow := c.edgeTime(c.lastUpdate, left)
		c.tima = 0
		c.reloadTime = overflow + 4
		c.lastUpdate = overflow
	}
}

// increment bumps TIMA outside of a regular edge, as caused by the
// DIV and TAC write glitches.
func (c *Controller) increment(cc uint64) {
	if c.reloadTime != scheduler.Disabled {
		return
	}
	if c.tima == 0xFF {
		c.tima = 0
		c.reloadTime = cc + 4
		return
	}
	c.tima++
}

// schedule publishes the time of the next reload.
func (c *Controller) schedule() {
	switch {
	case c.reloadTime != scheduler.Disabled:
		c.irq.SetEventTime(scheduler.Timer, c.reloadTime)
	case c.enabled():
		overflow := c.edgeTime(c.lastUpdate, 0x100-uint64(c.tima))
		c.irq.SetEventTime(scheduler.Timer, overflow+4)
	default:
		c.irq.SetEventTime(scheduler.Timer, scheduler.Disabled)
	}
}

// Event handles the scheduler.Timer event.
func (c *Controller) Event(cc uint64) {
	c.update(cc)
	c.schedule()
}

// Read returns the value of the timer register at addr.
func (c *Controller) Read(addr uint16, cc uint64) uint8 {
	switch addr {
	case types.DIV:
		return uint8(c.Divider(cc) >> 8)
	case types.TIMA:
		c.update(cc)
		return c.tima
	case types.TMA:
		return c.tma
	case types.TAC:
		return c.tac | 0xF8
	}
	return 0xFF
}

// Write writes v to the timer register at addr.
func (c *Controller) Write(addr uint16, cc uint64, v uint8) {
	c.update(cc)

	switch addr {
	case types.DIV:
		if c.enabled() && c.bitHigh(cc) {
			c.increment(cc)
		}
		c.divOffset = -uint16(cc)
	case types.TIMA:
		if c.reloadTime != scheduler.Disabled {
			break
		}
		if c.reloadedAt != scheduler.Disabled && cc < c.reloadedAt+4 {
			break
		}
		c.tima = v
	case types.TMA:
		c.tma = v
		if c.reloadedAt != scheduler.Disabled && cc >= c.reloadedAt && cc < c.reloadedAt+4 {
			c.tima = v
		}
	case types.TAC:
		oldHigh := c.enabled() && c.bitHigh(cc)
		c.tac = v & 7
		if oldHigh && !(c.enabled() && c.bitHigh(cc)) {
			c.increment(cc)
		}
	}

	c.lastUpdate = cc
	c.schedule()
}

// Rebase subtracts dec from every stored time. dec must be a multiple of
// 0x10000 so the divider phase is untouched.
func (c *Controller) Rebase(dec uint64) {
	c.lastUpdate -= dec
	c.reloadTime = scheduler.Rebase(c.reloadTime, dec)
	if c.reloadedAt != scheduler.Disabled && c.reloadedAt < dec {
		c.reloadedAt = scheduler.Disabled
	} else {
		c.reloadedAt = scheduler.Rebase(c.reloadedAt, dec)
	}
	c.schedule()
}

// SaveState stores the timer state in st.
func (c *Controller) SaveState(st *savestate.State) {
	c.update(st.CPU.CycleCounter)
	st.Timer.DivOffset = c.divOffset
	st.Timer.LastUpdate = c.lastUpdate
	st.Timer.ReloadTime = c.reloadTime
	st.Timer.ReloadedAt = c.reloadedAt
	st.Timer.TIMA = c.tima
	st.Timer.TMA = c.tma
	st.Timer.TAC = c.tac
}

// LoadState restores the timer state from st and republishes its event.
func (c *Controller) LoadState(st *savestate.State) {
	cc := st.CPU.CycleCounter
	c.divOffset = st.Timer.DivOffset
	c.lastUpdate = scheduler.Clamp(st.Timer.LastUpdate, cc)
	c.reloadTime = scheduler.Clamp(st.Timer.ReloadTime, cc)
	c.reloadedAt = st.Timer.ReloadedAt
	c.tima = st.Timer.TIMA
	c.tma = st.Timer.TMA
	c.tac = st.Timer.TAC & 7
	c.schedule()
}
