package interrupts

import (
	"github.com/thelolagemann/gbcore/internal/savestate"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
)

const (
	// VBlankFlag is the VBlank interrupt flag (bit 0),
	// which is requested every time the PPU enters
	// VBlank mode.
	VBlankFlag = types.Bit0
	// LCDFlag is the LCD interrupt flag (bit 1), which
	// is requested by the LCD STAT register (types.STAT),
	// when certain conditions are met.
	LCDFlag = types.Bit1
	// TimerFlag is the Timer interrupt flag (bit 2),
	// which is requested when the timer overflows,
	// (types.TIMA > 0xFF).
	TimerFlag = types.Bit2
	// SerialFlag is the Serial interrupt flag (bit 3),
	// which is requested when a serial transfer is
	// completed.
	SerialFlag = types.Bit3
	// JoypadFlag is the Joypad interrupt Flag (bit 4),
	// which is requested when any of types.P1 bits 0-3
	// go from high to low.
	JoypadFlag = types.Bit4

	mask = 0x1F
)

// Requester holds the interrupt registers and the coarse event schedule
// of the machine.
//
// An interrupt is deliverable when it is both requested (IF) and enabled
// (IE), and the CPU either has IME set or is halted. Whenever that holds,
// the scheduler.Interrupts event sits at minIntTime, the first cycle an
// interrupt may be taken at; otherwise it is disabled. Every mutator below
// keeps that relationship, so the dispatcher never has to poll.
type Requester struct {
	events *scheduler.Keeper[scheduler.EventID]

	minIntTime uint64
	ifreg      uint8 // interrupt flag (types.IF)
	iereg      uint8 // interrupt enable (types.IE)
	ime        bool
	halted     bool
}

// NewRequester returns a new Requester with every event disabled.
func NewRequester() *Requester {
	return &Requester{
		events: scheduler.NewKeeper[scheduler.EventID](scheduler.EventIDs),
	}
}

// Reset clears the interrupt registers and every scheduled event.
func (r *Requester) Reset() {
	for i := 0; i < scheduler.EventIDs; i++ {
		r.events.Set(scheduler.EventID(i), scheduler.Disabled)
	}
	r.minIntTime = 0
	r.ifreg, r.iereg = 0, 0
	r.ime, r.halted = false, false
}

func (r *Requester) imeOrHalted() bool {
	return r.ime || r.halted
}

// PendingIrqs returns the requested and enabled interrupts.
func (r *Requester) PendingIrqs() uint8 {
	return r.ifreg & r.iereg
}

// IF returns the interrupt flag register.
func (r *Requester) IF() uint8 { return r.ifreg }

// IE returns the interrupt enable register.
func (r *Requester) IE() uint8 { return r.iereg }

// IME reports whether the interrupt master enable is set.
func (r *Requester) IME() bool { return r.ime }

// Halted reports whether the CPU is halted.
func (r *Requester) Halted() bool { return r.halted }

// MinIntTime returns the first cycle an interrupt may be taken at.
func (r *Requester) MinIntTime() uint64 { return r.minIntTime }

func (r *Requester) republish() {
	if r.imeOrHalted() && r.PendingIrqs() != 0 {
		r.events.Set(scheduler.Interrupts, r.minIntTime)
	} else {
		r.events.Set(scheduler.Interrupts, scheduler.Disabled)
	}
}

// FlagIrq requests the interrupts in bits.
func (r *Requester) FlagIrq(bits uint8) {
	r.ifreg |= bits & mask
	if r.imeOrHalted() && r.PendingIrqs() != 0 {
		r.events.Set(scheduler.Interrupts, r.minIntTime)
	}
}

// FlagIrqAt requests the interrupts in bits at cycle cc. If this request is
// what makes an interrupt pending, it cannot be delivered before cc.
func (r *Requester) FlagIrqAt(bits uint8, cc uint64) {
	prev := r.PendingIrqs()
	r.ifreg |= bits & mask
	if prev == 0 && r.PendingIrqs() != 0 && r.imeOrHalted() {
		if cc > r.minIntTime {
			r.minIntTime = cc
		}
		r.events.Set(scheduler.Interrupts, r.minIntTime)
	}
}

// AckIrq clears the request for bits and disables IME, as the CPU does
// when it dispatches an interrupt.
func (r *Requester) AckIrq(bits uint8) {
	r.ifreg &^= bits
	r.DI()
}

// EI sets IME. Interrupts become deliverable the cycle after cc.
func (r *Requester) EI(cc uint64) {
	r.ime = true
	r.minIntTime = cc + 1
	if r.PendingIrqs() != 0 {
		r.events.Set(scheduler.Interrupts, r.minIntTime)
	}
}

// DI clears IME.
func (r *Requester) DI() {
	r.ime = false
	if !r.imeOrHalted() {
		r.events.Set(scheduler.Interrupts, scheduler.Disabled)
	}
}

// Halt marks the CPU as halted, making pending interrupts deliverable
// regardless of IME.
func (r *Requester) Halt() {
	r.halted = true
	if r.PendingIrqs() != 0 {
		r.events.Set(scheduler.Interrupts, r.minIntTime)
	}
}

// Unhalt clears the halted state.
func (r *Requester) Unhalt() {
	r.halted = false
	if !r.imeOrHalted() {
		r.events.Set(scheduler.Interrupts, scheduler.Disabled)
	}
}

// SetIE writes the interrupt enable register.
func (r *Requester) SetIE(v uint8) {
	r.iereg = v & mask
	if r.imeOrHalted() {
		r.republish()
	}
}

// SetIF writes the interrupt flag register.
func (r *Requester) SetIF(v uint8) {
	r.ifreg = v & mask
	if r.imeOrHalted() {
		r.republish()
	}
}

// SetMinIntTime delays interrupt delivery until at least cc.
func (r *Requester) SetMinIntTime(cc uint64) {
	r.minIntTime = cc
	if r.events.Value(scheduler.Interrupts) < cc {
		r.events.Set(scheduler.Interrupts, cc)
	}
}

// SetEventTime schedules event id at time t.
func (r *Requester) SetEventTime(id scheduler.EventID, t uint64) {
	r.events.Set(id, t)
}

// EventTime returns the time event id is scheduled at.
func (r *Requester) EventTime(id scheduler.EventID) uint64 {
	return r.events.Value(id)
}

// MinEventID returns the earliest scheduled event.
func (r *Requester) MinEventID() scheduler.EventID {
	return r.events.Min()
}

// MinEventTime returns the time of the earliest scheduled event.
func (r *Requester) MinEventTime() uint64 {
	return r.events.MinValue()
}

// Rebase subtracts dec from every stored time.
func (r *Requester) Rebase(dec uint64) {
	if r.minIntTime < dec {
		r.minIntTime = 0
	} else {
		r.minIntTime -= dec
	}
	r.events.Rebase(dec)
	if r.events.Value(scheduler.Interrupts) != scheduler.Disabled {
		r.events.Set(scheduler.Interrupts, r.minIntTime)
	}
}

// Consistent reports whether the dispatch event agrees with the registers:
// a deliverable interrupt always has a scheduled dispatch time.
func (r *Requester) Consistent() bool {
	if r.PendingIrqs() != 0 && r.imeOrHalted() {
		return r.events.Value(scheduler.Interrupts) != scheduler.Disabled
	}
	return true
}

// Vector returns the handler address of the lowest interrupt in bits,
// or 0 if bits is empty.
func Vector(bits uint8) uint16 {
	for i := uint16(0); i < 5; i++ {
		if bits&(1<<i) != 0 {
			return 0x0040 + i*8
		}
	}
	return 0
}

// Lowest returns the highest priority (lowest) bit set in bits.
func Lowest(bits uint8) uint8 {
	return bits & -bits
}

// SaveState stores the interrupt state in st.
func (r *Requester) SaveState(st *savestate.State) {
	st.Mem.IF = r.ifreg
	st.Mem.IE = r.iereg
	st.Mem.MinIntTime = r.minIntTime
	st.CPU.IME = r.ime
	st.CPU.Halted = r.halted
}

// LoadState restores the interrupt state from st. Events other than
// scheduler.Interrupts are republished by their owners.
func (r *Requester) LoadState(st *savestate.State) {
	cc := st.CPU.CycleCounter
	r.minIntTime = scheduler.Clamp(st.Mem.MinIntTime, cc)
	r.ifreg = st.Mem.IF & mask
	r.iereg = st.Mem.IE & mask
	r.ime = st.CPU.IME
	r.halted = st.CPU.Halted
	r.republish()
}
