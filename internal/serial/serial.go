package serial

import (
	"github.com/thelolagemann/gbcore/internal/interrupts"
	"github.com/thelolagemann/gbcore/internal/savestate"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
)

const (
	ticksPerBit     = 512 // bit 8 of the divider, 8192Hz
	fastTicksPerBit = 16  // CGB fast clock (types.SC bit 1)
)

// Divider is the source of the 16-bit system divider the serial clock is
// derived from.
type Divider interface {
	Divider(cc uint64) uint16
}

// Controller is the serial controller. It is responsible for sending and
// receiving data to and from devices.
// Before a transfer, data holds the next byte to be sent. AKA types.SB
// During a transfer, it has a mix of the incoming data and the outgoing data.
// each bit, the leftmost bit of data is sent to the attached device, and
// shifted out of data, and the incoming bit is shifted into data.
//
// example:
//
//	Before : data = o7 o6 o5 o4 o3 o2 o1 o0
//	Bit 1  : data = o6 o5 o4 o3 o2 o1 o0 i0
//	Bit 2  : data = o5 o4 o3 o2 o1 o0 i0 i1
//	...
//	Bit 8  : data = i0 i1 i2 i3 i4 i5 i6 i7
//
// Where o0-o7 are the outgoing bits, and i0-i7 are the incoming bits.
//
// Only internally clocked transfers progress; with the external clock
// selected the transfer waits for a partner that never clocks it.
type Controller struct {
	irq *interrupts.Requester
	div Divider

	data  uint8 // types.SB
	ctrl  uint8 // types.SC
	count uint8 // the number of bits that have been transferred.
	cgb   bool

	AttachedDevice Device // the device that is attached to this controller.
}

// NewController creates a new Controller. By default, the Controller is
// attached to a nullDevice, which acts as if there is no device attached.
// If you want to attach a device, use the Controller.Attach method.
func NewController(irq *interrupts.Requester, div Divider, cgb bool) *Controller {
	return &Controller{
		irq:            irq,
		div:            div,
		cgb:            cgb,
		ctrl:           0x7E,
		AttachedDevice: nullDevice{},
	}
}

// Attach attaches a Device to the Controller.
func (c *Controller) Attach(d Device) {
	if d == nil {
		d = nullDevice{}
	}
	c.AttachedDevice = d
}

// Reset aborts any transfer and clears the registers.
func (c *Controller) Reset() {
	c.data, c.ctrl, c.count = 0, 0x7E, 0
	c.irq.SetEventTime(scheduler.Serial, scheduler.Disabled)
}

func (c *Controller) period() uint64 {
	if c.cgb && c.ctrl&types.Bit1 != 0 {
		return fastTicksPerBit
	}
	return ticksPerBit
}

// nextBit returns the time of the next falling edge of the serial clock
// after cc.
func (c *Controller) nextBit(cc uint64) uint64 {
	p := c.period()
	return cc + p - uint64(c.div.Divider(cc))&(p-1)
}

// Read returns the value of the serial register at addr.
func (c *Controller) Read(addr uint16) uint8 {
	switch addr {
	case types.SB:
		return c.data
	case types.SC:
		mask := uint8(0x7E)
		if c.cgb {
			mask = 0x7C
		}
		return c.ctrl | mask
	}
	return 0xFF
}

// Write writes v to the serial register at addr.
func (c *Controller) Write(addr uint16, cc uint64, v uint8) {
	switch addr {
	case types.SB:
		c.data = v
	case types.SC:
		c.ctrl = v & 0x83
		if !c.cgb {
			c.ctrl &^= types.Bit1
		}
		c.count = 0
		if c.ctrl&(types.Bit7|types.Bit0) == types.Bit7|types.Bit0 {
			c.irq.SetEventTime(scheduler.Serial, c.nextBit(cc))
		} else {
			c.irq.SetEventTime(scheduler.Serial, scheduler.Disabled)
		}
	}
}

// Event handles the scheduler.Serial event, shifting one bit.
func (c *Controller) Event(cc uint64) {
	bit := c.AttachedDevice.Send()
	c.AttachedDevice.Receive(c.data&types.Bit7 == types.Bit7)

	c.data <<= 1
	if bit {
		c.data |= 1
	}

	c.count++
	if c.count == 8 {
		c.count = 0
		c.ctrl &^= types.Bit7
		c.irq.FlagIrqAt(interrupts.SerialFlag, cc)
		c.irq.SetEventTime(scheduler.Serial, scheduler.Disabled)
		return
	}

	c.irq.SetEventTime(scheduler.Serial, cc+c.period())
}

// Transferring reports whether a transfer is in progress.
func (c *Controller) Transferring() bool {
	return c.ctrl&types.Bit7 != 0
}

// SaveState stores the serial state in st.
func (c *Controller) SaveState(st *savestate.State) {
	st.Mem.IOAMHRAM[0x101] = c.data
	st.Mem.IOAMHRAM[0x102] = c.ctrl
	st.Mem.SerialBits = c.count
	st.Mem.NextSerialTime = c.irq.EventTime(scheduler.Serial)
}

// LoadState restores the serial state from st and republishes its event.
func (c *Controller) LoadState(st *savestate.State) {
	c.data = st.Mem.IOAMHRAM[0x101]
	c.ctrl = st.Mem.IOAMHRAM[0x102] & 0x83
	c.count = st.Mem.SerialBits & 7
	next := scheduler.Disabled
	if c.ctrl&(types.Bit7|types.Bit0) == types.Bit7|types.Bit0 {
		next = scheduler.Clamp(st.Mem.NextSerialTime, st.CPU.CycleCounter)
	}
	c.irq.SetEventTime(scheduler.Serial, next)
}
