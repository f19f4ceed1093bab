package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thelolagemann/gbcore/internal/interrupts"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
)

type fixedDivider uint16

func (f fixedDivider) Divider(cc uint64) uint16 { return uint16(cc) + uint16(f) }

// run services serial events until the transfer ends.
func run(t *testing.T, c *Controller, irq *interrupts.Requester) uint64 {
	var last uint64
	for i := 0; i < 8; i++ {
		next := irq.EventTime(scheduler.Serial)
		require.NotEqual(t, scheduler.Disabled, next, "bit %d", i)
		c.Event(next)
		last = next
	}
	return last
}

func TestController_Transfer(t *testing.T) {
	irq := interrupts.NewRequester()
	c := NewController(irq, fixedDivider(0), false)
	dev := &Recorder{Reply: 0x3C}
	c.Attach(dev)

	c.Write(types.SB, 0, 0xA5)
	c.Write(types.SC, 0, 0x81)
	assert.Equal(t, uint64(512), irq.EventTime(scheduler.Serial))
	assert.True(t, c.Transferring())

	end := run(t, c, irq)
	assert.Equal(t, uint64(512*8), end)
	assert.Equal(t, []byte{0xA5}, dev.Bytes)
	assert.Equal(t, uint8(0x3C), c.Read(types.SB))
	assert.Equal(t, uint8(0x7F), c.Read(types.SC))
	assert.NotZero(t, irq.IF()&interrupts.SerialFlag)
	assert.Equal(t, scheduler.Disabled, irq.EventTime(scheduler.Serial))
}

func TestController_AlignsToDivider(t *testing.T) {
	irq := interrupts.NewRequester()
	c := NewController(irq, fixedDivider(0x1F0), false)
	c.Write(types.SC, 4, 0x81)
	// divider reads 0x1F4 at cycle 4, the next multiple of 512 is 12 cycles away
	assert.Equal(t, uint64(16), irq.EventTime(scheduler.Serial))
}

func TestController_ExternalClockWaits(t *testing.T) {
	irq := interrupts.NewRequester()
	c := NewController(irq, fixedDivider(0), false)
	c.Write(types.SC, 0, 0x80)
	assert.Equal(t, scheduler.Disabled, irq.EventTime(scheduler.Serial))
	assert.True(t, c.Transferring())
}

func TestController_CGBFastClock(t *testing.T) {
	irq := interrupts.NewRequester()
	c := NewController(irq, fixedDivider(0), true)
	c.Write(types.SC, 0, 0x83)
	end := run(t, c, irq)
	assert.Equal(t, uint64(16*8), end)
	// the null device always sends ones
	assert.Equal(t, uint8(0xFF), c.Read(types.SB))
}
