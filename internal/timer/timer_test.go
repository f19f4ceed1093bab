package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thelolagemann/gbcore/internal/interrupts"
	"github.com/thelolagemann/gbcore/internal/savestate"
	"github.com/thelolagemann/gbcore/internal/scheduler"
	"github.com/thelolagemann/gbcore/internal/types"
)

func newTimer() (*Controller, *interrupts.Requester) {
	irq := interrupts.NewRequester()
	return NewController(irq), irq
}

func TestController_Rates(t *testing.T) {
	tests := []struct {
		tac    uint8
		period uint64
	}{
		{0x04, 1024},
		{0x05, 16},
		{0x06, 64},
		{0x07, 256},
	}
	for _, tt := range tests {
		c, _ := newTimer()
		c.Write(types.TAC, 0, tt.tac)
		for n := uint64(1); n <= 10; n++ {
			assert.Equal(t, uint8(n-1), c.Read(types.TIMA, n*tt.period-1), "tac %02X before edge %d", tt.tac, n)
			assert.Equal(t, uint8(n), c.Read(types.TIMA, n*tt.period), "tac %02X at edge %d", tt.tac, n)
		}
	}
}

func TestController_OverflowReloadsNewTMA(t *testing.T) {
	c, irq := newTimer()
	c.Write(types.TAC, 0, 0x05)
	c.Write(types.TIMA, 0, 0xFF)
	c.Write(types.TMA, 0, 0x11)

	const overflow = 16
	require.Equal(t, uint64(overflow+4), irq.EventTime(scheduler.Timer))

	// TIMA holds 0 for one machine cycle after overflowing
	assert.Equal(t, uint8(0), c.Read(types.TIMA, overflow))
	c.Write(types.TMA, overflow, 0x42)
	assert.Zero(t, irq.IF()&interrupts.TimerFlag)

	assert.Equal(t, uint8(0x42), c.Read(types.TIMA, overflow+4))
	assert.NotZero(t, irq.IF()&interrupts.TimerFlag)
}

func TestController_WritesDuringReload(t *testing.T) {
	c, _ := newTimer()
	c.Write(types.TAC, 0, 0x05)
	c.Write(types.TIMA, 0, 0xFF)
	c.Write(types.TMA, 0, 0x20)

	// dropped while TIMA reads 0
	c.Write(types.TIMA, 17, 0x99)
	assert.Equal(t, uint8(0x20), c.Read(types.TIMA, 20))

	// dropped in the reload cycle, while TMA writes go through to TIMA
	c.Write(types.TIMA, 21, 0x77)
	assert.Equal(t, uint8(0x20), c.Read(types.TIMA, 21))
	c.Write(types.TMA, 22, 0x30)
	assert.Equal(t, uint8(0x30), c.Read(types.TIMA, 23))

	// afterwards both behave normally
	c.Write(types.TIMA, 24, 0x50)
	assert.Equal(t, uint8(0x50), c.Read(types.TIMA, 24))
}

func TestController_TACChangeKeepsPhase(t *testing.T) {
	c, _ := newTimer()
	c.Write(types.TAC, 0, 0x05)
	assert.Equal(t, uint8(2), c.Read(types.TIMA, 40))

	// same rate rewritten mid period: the next edge is still at 48
	c.Write(types.TAC, 40, 0x05)
	assert.Equal(t, uint8(2), c.Read(types.TIMA, 47))
	assert.Equal(t, uint8(3), c.Read(types.TIMA, 48))
}

func TestController_TACGlitch(t *testing.T) {
	c, _ := newTimer()
	c.Write(types.TAC, 0, 0x05)
	// divider bit 3 is high at cycle 8, bit 9 is low
	c.Write(types.TAC, 8, 0x04)
	assert.Equal(t, uint8(1), c.Read(types.TIMA, 8))

	c2, _ := newTimer()
	c2.Write(types.TAC, 0, 0x05)
	// disabling while the bit is high counts too
	c2.Write(types.TAC, 12, 0x01)
	assert.Equal(t, uint8(1), c2.Read(types.TIMA, 12))
	assert.Equal(t, uint8(1), c2.Read(types.TIMA, 1000))
}

func TestController_DIVReset(t *testing.T) {
	c, _ := newTimer()
	c.Reset(0xABC9, 0)
	assert.Equal(t, uint8(0xAB), c.Read(types.DIV, 0))

	c.Write(types.DIV, 100, 0x12)
	assert.Equal(t, uint8(0), c.Read(types.DIV, 100))
	assert.Equal(t, uint8(3), c.Read(types.DIV, 100+256*3))
}

func TestController_DIVWriteGlitch(t *testing.T) {
	c, _ := newTimer()
	c.Write(types.TAC, 0, 0x05)
	// bit 3 high at cycle 10: resetting the divider is a falling edge
	c.Write(types.DIV, 10, 0)
	assert.Equal(t, uint8(1), c.Read(types.TIMA, 10))
	// the phase restarts from the reset
	assert.Equal(t, uint8(1), c.Read(types.TIMA, 25))
	assert.Equal(t, uint8(2), c.Read(types.TIMA, 26))
}

func TestController_StateRoundTrip(t *testing.T) {
	c, _ := newTimer()
	c.Write(types.TAC, 0, 0x06)
	c.Write(types.TMA, 0, 0x80)

	var st savestate.State
	st.CPU.CycleCounter = 1000
	c.SaveState(&st)

	loaded, irq := newTimer()
	loaded.LoadState(&st)
	for _, cc := range []uint64{1000, 1100, 5000} {
		assert.Equal(t, c.Read(types.TIMA, cc), loaded.Read(types.TIMA, cc))
	}
	assert.Equal(t, c.Read(types.DIV, 6000), loaded.Read(types.DIV, 6000))
	assert.GreaterOrEqual(t, irq.EventTime(scheduler.Timer), uint64(1000))
}

func TestController_Rebase(t *testing.T) {
	c, irq := newTimer()
	c.Write(types.TAC, 0x30000, 0x05)
	c.Write(types.TIMA, 0x30000, 0xF0)
	c.Rebase(0x20000)

	assert.Equal(t, uint8(0xF1), c.Read(types.TIMA, 0x10010))
	assert.Equal(t, uint64(0x10000+16*16+4), irq.EventTime(scheduler.Timer))
}
