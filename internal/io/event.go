package io

import (
	"github.com/thelolagemann/gbcore/internal/interrupts"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
)

// NextEventTime returns the time of the earliest scheduled event. The CPU
// driver may run freely until then.
func (b *Bus) NextEventTime() uint64 {
	return b.irq.MinEventTime()
}

// Event services every event due at or before cc, in time order, ties
// broken by scheduler.EventID order. It returns the cycle counter after
// any stalls the events caused, and the time of the next event, which is
// always later than the returned counter.
func (b *Bus) Event(cc uint64) (uint64, uint64) {
	for b.irq.MinEventTime() <= cc {
		id := b.irq.MinEventID()
		t := b.irq.MinEventTime()

		switch id {
		case scheduler.Unhalt:
			b.stopped = false
			b.irq.SetEventTime(scheduler.Unhalt, scheduler.Disabled)
		case scheduler.End:
			b.irq.SetEventTime(scheduler.End, scheduler.Disabled)
		case scheduler.Blit:
			b.ppu.Update(cc)
			b.frameDone = true
			b.irq.SetEventTime(scheduler.Blit, b.ppu.NextBlit(cc))
		case scheduler.Serial:
			b.serial.Event(t)
		case scheduler.OAM:
			b.oamDMAEvent(t)
		case scheduler.DMA:
			cc = b.dmaEvent(t, cc)
		case scheduler.Timer:
			b.timer.Event(t)
		case scheduler.Video:
			b.ppu.Update(cc)
		case scheduler.Interrupts:
			cc = b.interruptEvent(cc)
		}
	}
	return cc, b.irq.MinEventTime()
}

// interruptEvent wakes a halted CPU and, with IME set, dispatches the
// highest priority pending interrupt.
func (b *Bus) interruptEvent(cc uint64) uint64 {
	if b.stopped {
		b.irq.SetMinIntTime(b.irq.EventTime(scheduler.Unhalt))
		return cc
	}

	// IF is only settled once the video core is up to date
	b.ppu.Update(cc)
	pending := b.irq.PendingIrqs()
	if pending == 0 {
		b.irq.SetEventTime(scheduler.Interrupts, scheduler.Disabled)
		return cc
	}

	if b.irq.Halted() {
		b.irq.Unhalt()
		if b.cgb {
			cc += 4
		}
	}
	if b.irq.IME() {
		bit := interrupts.Lowest(pending)
		b.irq.AckIrq(bit)
		cc = b.interrupter.Interrupt(interrupts.Vector(bit), cc)
	}
	return cc
}

// FrameDone reports whether a frame completed since the last call, and
// clears the flag.
func (b *Bus) FrameDone() bool {
	d := b.frameDone
	b.frameDone = false
	return d
}

// SetEndTime schedules the end of the current run quantum.
func (b *Bus) SetEndTime(t uint64) {
	b.irq.SetEventTime(scheduler.End, t)
}

// SetBlitTime overrides when the next frame is reported complete.
func (b *Bus) SetBlitTime(t uint64) {
	b.irq.SetEventTime(scheduler.Blit, t)
}

// Halt halts the CPU at cc until an interrupt is pending.
func (b *Bus) Halt(cc uint64) {
	b.ppu.Update(cc)
	b.irq.Halt()
}

// EI enables interrupts after the instruction completing at cc.
func (b *Bus) EI(cc uint64) {
	b.irq.EI(cc)
}

// DI disables interrupts.
func (b *Bus) DI() {
	b.irq.DI()
}

// Halted reports whether the CPU is halted or stopped.
func (b *Bus) Halted() bool {
	return b.irq.Halted() || b.stopped
}

// IME reports whether the interrupt master enable is set.
func (b *Bus) IME() bool {
	return b.irq.IME()
}

// Stop executes the STOP instruction at cc. On a CGB with a speed switch
// armed in KEY1 it switches speed, stopping the CPU for a while. Otherwise
// it does nothing.
func (b *Bus) Stop(cc uint64) {
	if !b.cgb || b.key1&types.Bit0 == 0 {
		b.log.Debugf("bus: STOP at %d ignored", cc)
		return
	}

	b.apu.GenerateSamples(cc, b.ds)
	b.ppu.SpeedChange(cc)
	b.ds ^= 1
	b.key1 &^= types.Bit0
	b.stopped = true
	b.irq.SetEventTime(scheduler.Unhalt, cc+stopCycles)
	b.log.Debugf("bus: switched to %s speed at %d", speedName(b.ds), cc)
}

func speedName(ds uint8) string {
	if ds != 0 {
		return "double"
	}
	return "normal"
}

// Rebase brings every component up to cc, then moves every stored time
// back by a multiple of 0x10000, keeping the divider phase. It returns the
// rebased cycle counter.
func (b *Bus) Rebase(cc uint64) uint64 {
	b.timer.Read(types.TIMA, cc)
	b.apu.GenerateSamples(cc, b.ds)
	b.ppu.Update(cc)

	dec := cc &^ 0xFFFF
	if dec == 0 {
		return cc
	}
	b.irq.Rebase(dec)
	b.timer.Rebase(dec)
	b.apu.Rebase(dec)
	b.ppu.Rebase(dec)
	b.log.Debugf("bus: rebased by %#x", dec)
	return cc - dec
}

// VRAMReadable reports whether the CPU can read VRAM at cc.
func (b *Bus) VRAMReadable(cc uint64) bool { return b.ppu.VRAMReadable(cc) }

// OAMReadable reports whether the CPU can read OAM at cc.
func (b *Bus) OAMReadable(cc uint64) bool {
	return !b.oamDMAActive && b.ppu.OAMReadable(cc)
}
