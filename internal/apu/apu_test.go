package apu

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thelolagemann/gbcore/internal/savestate"
	"github.com/thelolagemann/gbcore/internal/types"
)

func newPowered(cgb bool) *APU {
	a := New(cgb)
	a.Write(types.NR52, 0, 0, 0x80)
	return a
}

// at returns the machine cycle of sound cycle sc, for an APU powered on
// at machine cycle 0.
func at(sc uint64) uint64 {
	return (sc - 0x1000) * 2
}

func TestChannel2_TriggerReloadsExpiredLength(t *testing.T) {
	a := newPowered(false)
	require.Equal(t, uint16(0), a.ch2.length.lengthCounter)

	a.Write(types.NR22, 0, 0, 0xF0)
	a.Write(types.NR24, 0, 0, 0xC0)

	assert.True(t, a.ChannelActive(2))
	assert.Equal(t, uint16(64), a.ch2.length.lengthCounter)

	// 64 length clocks of 8192 sound cycles each
	expiry := uint64(64 << 13)
	assert.Equal(t, uint8(0xF2), a.Read(types.NR52, at(expiry)-2, 0))
	assert.Equal(t, uint8(0xF0), a.Read(types.NR52, at(expiry), 0))
}

func TestChannel2_LengthEnableExtraClock(t *testing.T) {
	a := newPowered(false)
	a.Write(types.NR22, 0, 0, 0xF0)
	a.Write(types.NR21, 0, 0, 0x3F) // length 1
	a.Write(types.NR24, 0, 0, 0x80)
	require.True(t, a.ChannelActive(2))

	// sc 0x1000 is in the second half of a length period: no extra clock
	a.Write(types.NR24, 0, 0, 0x40)
	assert.True(t, a.ChannelActive(2))

	// first half of the next period: enabling clocks the counter to 0
	b := newPowered(false)
	b.Write(types.NR22, 0, 0, 0xF0)
	b.Write(types.NR21, 0, 0, 0x3F)
	b.Write(types.NR24, 0, 0, 0x80)
	b.Write(types.NR24, at(0x2000), 0, 0x40)
	assert.False(t, b.ChannelActive(2))
}

func TestChannel_DACOffDisables(t *testing.T) {
	a := newPowered(false)
	a.Write(types.NR22, 0, 0, 0xF0)
	a.Write(types.NR24, 0, 0, 0x80)
	require.True(t, a.ChannelActive(2))

	a.Write(types.NR22, 4, 0, 0x00)
	assert.False(t, a.ChannelActive(2))

	// triggering with the DAC off does not start the channel
	a.Write(types.NR24, 8, 0, 0x80)
	assert.False(t, a.ChannelActive(2))
}

func TestEnvelope_Steps(t *testing.T) {
	a := newPowered(false)
	a.Write(types.NR22, 0, 0, 0xF1) // volume 15, decreasing, period 1
	a.Write(types.NR24, 0, 0, 0x80)

	a.GenerateSamples(at(0x9000)-2, 0)
	assert.Equal(t, uint8(15), a.ch2.env.volume)
	a.GenerateSamples(at(0x9000), 0)
	assert.Equal(t, uint8(14), a.ch2.env.volume)
	a.GenerateSamples(at(0x11000), 0)
	assert.Equal(t, uint8(13), a.ch2.env.volume)
}

func TestSweep_Overflow(t *testing.T) {
	a := newPowered(false)
	a.Write(types.NR10, 0, 0, 0x11) // period 1, increase, shift 1
	a.Write(types.NR12, 0, 0, 0xF0)
	a.Write(types.NR13, 0, 0, 0xFF)
	a.Write(types.NR14, 0, 0, 0x87)
	assert.False(t, a.ChannelActive(1))
}

func TestSweep_OverflowAtEvent(t *testing.T) {
	a := newPowered(false)
	a.Write(types.NR10, 0, 0, 0x11)
	a.Write(types.NR12, 0, 0, 0xF0)
	a.Write(types.NR13, 0, 0, 0x00)
	a.Write(types.NR14, 0, 0, 0x85) // freq 0x500, next 0x780 then 0xB40
	require.True(t, a.ChannelActive(1))

	next := a.ch1.sweep.counter
	done := make(chan struct{})
	go func() {
		a.GenerateSamples(at(next)+64, 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("GenerateSamples did not return, sweep counter %#x", a.ch1.sweep.counter)
	}

	assert.False(t, a.ChannelActive(1))
	assert.Equal(t, disabled, a.ch1.sweep.counter)
	assert.Equal(t, uint16(0x780), a.ch1.sweep.shadow)

	a.GenerateSamples(at(next)+1<<16, 0)
	assert.False(t, a.ChannelActive(1))
}

func TestSweep_NegateExit(t *testing.T) {
	a := newPowered(false)
	a.Write(types.NR10, 0, 0, 0x19) // period 1, decrease, shift 1
	a.Write(types.NR12, 0, 0, 0xF0)
	a.Write(types.NR13, 0, 0, 0x00)
	a.Write(types.NR14, 0, 0, 0x84)
	require.True(t, a.ChannelActive(1))
	require.True(t, a.ch1.sweep.negging)

	a.Write(types.NR10, 4, 0, 0x11)
	assert.False(t, a.ChannelActive(1))
}

func TestSweep_Shifts(t *testing.T) {
	a := newPowered(true)
	a.Write(types.NR10, 0, 0, 0x11)
	a.Write(types.NR12, 0, 0, 0xF0)
	a.Write(types.NR13, 0, 0, 0x00)
	a.Write(types.NR14, 0, 0, 0x81) // freq 0x100
	require.True(t, a.ChannelActive(1))

	next := a.ch1.sweep.counter
	a.GenerateSamples(at(next), 0)
	assert.Equal(t, uint16(0x180), a.ch1.duty.freq)
	assert.Equal(t, uint16(0x180), a.ch1.sweep.shadow)
}

func TestLFSR_BatchMatchesSingleStep(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, nr3 := range []uint8{0x00, 0x08} {
		for i := 0; i < 2000; i++ {
			reg := uint16(r.Intn(0x8000))
			n := uint64(r.Intn(64))

			batched := lfsr{reg: reg, nr3: nr3}
			stepped := batched
			batched.advance(n)
			for j := uint64(0); j < n; j++ {
				stepped.step()
			}
			require.Equal(t, stepped.reg, batched.reg, "nr3=%02x reg=%04x n=%d", nr3, reg, n)
		}
	}
}

func TestChannel4_SilentCatchUp(t *testing.T) {
	for _, nr43 := range []uint8{0x00, 0x08, 0x21, 0x5A} {
		heard, silent := newPowered(false), newPowered(false)
		heard.Write(types.NR51, 0, 0, 0x88)
		for _, a := range []*APU{heard, silent} {
			a.Write(types.NR50, 0, 0, 0x77)
			a.Write(types.NR42, 0, 0, 0xF0)
			a.Write(types.NR43, 0, 0, nr43)
			a.Write(types.NR44, 0, 0, 0x80)
		}
		require.NotEqual(t, disabled, heard.ch4.lfsr.counter)
		require.Equal(t, disabled, silent.ch4.lfsr.counter)

		cc := uint64(123457)
		heard.GenerateSamples(cc, 0)
		silent.GenerateSamples(cc, 0)
		silent.ch4.lfsr.updateBackupCounter(silent.sc)
		assert.Equal(t, heard.ch4.lfsr.reg, silent.ch4.lfsr.reg, "nr43=%02x", nr43)

		// routing the channel resumes events in phase
		silent.Write(types.NR51, cc, 0, 0x88)
		assert.Equal(t, heard.ch4.lfsr.counter, silent.ch4.lfsr.counter)
	}
}

func TestChannel4_ClockShiftStops(t *testing.T) {
	a := newPowered(false)
	a.Write(types.NR51, 0, 0, 0x88)
	a.Write(types.NR42, 0, 0, 0xF0)
	a.Write(types.NR43, 0, 0, 0xE0)
	a.Write(types.NR44, 0, 0, 0x80)
	a.GenerateSamples(200000, 0)
	assert.Equal(t, uint16(0x7FFF), a.ch4.lfsr.reg)
}

func TestChannel3_WaveRAM(t *testing.T) {
	a := newPowered(false)
	for i := uint16(0); i < 16; i++ {
		a.Write(types.WaveRAM+i, 0, 0, uint8(i*0x11))
	}
	assert.Equal(t, uint8(0x33), a.Read(types.WaveRAM+3, 0, 0))

	a.Write(types.NR30, 0, 0, 0x80)
	a.Write(types.NR32, 0, 0, 0x20)
	a.Write(types.NR33, 0, 0, 0xFF)
	a.Write(types.NR34, 0, 0, 0x87) // period 1
	require.True(t, a.ChannelActive(3))

	// between fetches the DMG sees 0xFF
	fetch := a.ch3.waveCounter
	assert.Equal(t, uint8(0xFF), a.Read(types.WaveRAM, at(fetch)-2, 0))
	// on the fetch cycle, the byte being played
	assert.Equal(t, uint8(0x00), a.Read(types.WaveRAM+5, at(fetch), 0))

	c := newPowered(true)
	for i := uint16(0); i < 16; i++ {
		c.Write(types.WaveRAM+i, 0, 0, uint8(i*0x11))
	}
	c.Write(types.NR30, 0, 0, 0x80)
	c.Write(types.NR33, 0, 0, 0x00)
	c.Write(types.NR34, 0, 0, 0x80) // period 2048
	c.Write(types.WaveRAM+9, 2, 0, 0xAB)
	assert.Equal(t, uint8(0xAB), c.ch3.waveRAM[0])
	assert.Equal(t, uint8(0x99), c.ch3.waveRAM[9])
}

func TestRegisters_ReadMasks(t *testing.T) {
	a := newPowered(false)
	assert.Equal(t, uint8(0x80), a.Read(types.NR10, 0, 0))
	assert.Equal(t, uint8(0xFF), a.Read(types.NR13, 0, 0))
	assert.Equal(t, uint8(0xFF), a.Read(0xFF15, 0, 0))
	assert.Equal(t, uint8(0xFF), a.Read(0xFF27, 0, 0))

	a.Write(types.NR11, 0, 0, 0x85)
	assert.Equal(t, uint8(0xBF), a.Read(types.NR11, 0, 0))
	a.Write(types.NR34, 0, 0, 0x47)
	assert.Equal(t, uint8(0xFF), a.Read(types.NR34, 0, 0))
	a.Write(types.NR32, 0, 0, 0x60)
	assert.Equal(t, uint8(0xFF), a.Read(types.NR32, 0, 0))
	a.Write(types.NR50, 0, 0, 0x35)
	assert.Equal(t, uint8(0x35), a.Read(types.NR50, 0, 0))
}

func TestPower(t *testing.T) {
	for _, cgb := range []bool{false, true} {
		a := newPowered(cgb)
		a.Write(types.NR50, 0, 0, 0x77)
		a.Write(types.NR22, 0, 0, 0xF0)
		a.Write(types.NR21, 0, 0, 0x80)
		a.Write(types.NR24, 0, 0, 0x80)
		require.Equal(t, uint8(0xF2), a.Read(types.NR52, 0, 0))

		a.Write(types.NR52, 8, 0, 0x00)
		assert.False(t, a.IsEnabled())
		assert.Equal(t, uint8(0x70), a.Read(types.NR52, 8, 0))
		assert.Equal(t, uint8(0x00), a.Read(types.NR50, 8, 0))
		assert.Equal(t, uint8(0x3F), a.Read(types.NR21, 8, 0))

		a.Write(types.NR50, 8, 0, 0x77)
		assert.Equal(t, uint8(0x00), a.Read(types.NR50, 8, 0))

		a.Write(types.NR41, 8, 0, 0x3F)
		if cgb {
			assert.Equal(t, uint16(0), a.ch4.length.lengthCounter)
		} else {
			assert.Equal(t, uint16(1), a.ch4.length.lengthCounter)
		}

		a.Write(types.NR52, 16, 0, 0x80)
		assert.Equal(t, uint8(0xF0), a.Read(types.NR52, 16, 0))
	}
}

func TestMixer_Levels(t *testing.T) {
	a := newPowered(false)
	a.Write(types.NR50, 0, 0, 0x77)
	a.Write(types.NR51, 0, 0, 0x22)
	a.Write(types.NR22, 0, 0, 0xF0)
	a.Write(types.NR21, 0, 0, 0x80) // 50% duty
	a.Write(types.NR23, 0, 0, 0xF0)
	a.Write(types.NR24, 0, 0, 0x87)

	buf := make([]int32, 2*256)
	a.SetBuffer(buf)
	a.GenerateSamples(512, 0)
	n := a.FillBuffer()
	require.Equal(t, 256, n)

	seen := map[int32]int{}
	for i := 0; i < n; i++ {
		require.Equal(t, buf[2*i], buf[2*i+1])
		seen[buf[2*i]]++
	}
	assert.Len(t, seen, 2)
	assert.NotZero(t, seen[8*15])
	assert.NotZero(t, seen[8*-15])
}

func TestMixer_DropsSamplesPastBuffer(t *testing.T) {
	play := func(a *APU) {
		a.Write(types.NR50, 0, 0, 0x77)
		a.Write(types.NR51, 0, 0, 0x22)
		a.Write(types.NR22, 0, 0, 0xF0)
		a.Write(types.NR21, 0, 0, 0x80)
		a.Write(types.NR23, 0, 0, 0xF8) // period 16
		a.Write(types.NR24, 0, 0, 0x87)
	}
	small, large := newPowered(false), newPowered(false)
	play(small)
	play(large)

	sbuf, lbuf := make([]int32, 2*16), make([]int32, 2*64)
	small.SetBuffer(sbuf)
	large.SetBuffer(lbuf)
	small.GenerateSamples(128, 0)
	large.GenerateSamples(128, 0)
	assert.Equal(t, 16, small.FillBuffer())
	assert.Equal(t, 64, large.FillBuffer())
	assert.Equal(t, lbuf[:32], sbuf)

	// the next window starts from the right level
	small.GenerateSamples(160, 0)
	large.GenerateSamples(160, 0)
	require.Equal(t, 16, small.FillBuffer())
	require.Equal(t, 16, large.FillBuffer())
	assert.Equal(t, lbuf[:32], sbuf)
}

func TestSoundRebase(t *testing.T) {
	a := newPowered(false)
	a.sc = rebaseThreshold - 0x1000
	a.resetChannels()
	a.Write(types.NR22, 0, 0, 0xF0)
	a.Write(types.NR24, 0, 0, 0x80)

	a.GenerateSamples(0x4000, 0)
	assert.Equal(t, uint64(rebaseThreshold+0x1000-rebaseAmount), a.sc)
	assert.True(t, a.ChannelActive(2))
	assert.Greater(t, a.ch2.duty.nextPosUpdate, a.sc)
	assert.Less(t, a.ch2.env.counter, uint64(rebaseAmount))
}

func TestStateRoundTrip(t *testing.T) {
	a := newPowered(true)
	a.Write(types.NR50, 0, 0, 0x35)
	a.Write(types.NR51, 0, 0, 0xFF)
	a.Write(types.NR22, 0, 0, 0xF3)
	a.Write(types.NR21, 0, 0, 0x40)
	a.Write(types.NR23, 0, 0, 0x83)
	a.Write(types.NR24, 0, 0, 0x86)
	a.Write(types.NR42, 0, 0, 0xA1)
	a.Write(types.NR43, 0, 0, 0x25)
	a.Write(types.NR44, 0, 0, 0x80)

	cc := uint64(300000)
	st := &savestate.State{}
	st.CPU.CycleCounter = cc
	a.SaveState(st)

	b := New(true)
	b.LoadState(st)

	abuf, bbuf := make([]int32, 2*4096), make([]int32, 2*4096)
	a.SetBuffer(abuf)
	b.SetBuffer(bbuf)
	for i := 0; i < 8; i++ {
		cc += 8192
		a.GenerateSamples(cc, 0)
		b.GenerateSamples(cc, 0)
		require.Equal(t, a.FillBuffer(), b.FillBuffer())
		require.Equal(t, abuf, bbuf)
	}
	assert.Equal(t, a.ch2.env.volume, b.ch2.env.volume)
	assert.Equal(t, a.ch4.lfsr.reg, b.ch4.lfsr.reg)
}

func BenchmarkAPU_GenerateSamples(b *testing.B) {
	a := newPowered(false)
	a.Write(types.NR50, 0, 0, 0x77)
	a.Write(types.NR51, 0, 0, 0xFF)
	a.Write(types.NR12, 0, 0, 0xF0)
	a.Write(types.NR14, 0, 0, 0x87)
	a.Write(types.NR22, 0, 0, 0xF0)
	a.Write(types.NR24, 0, 0, 0x86)
	a.Write(types.NR42, 0, 0, 0xF0)
	a.Write(types.NR44, 0, 0, 0x80)
	buf := make([]int32, 2*35112)

	a.SetBuffer(buf)
	cc := uint64(0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cc += 70224
		a.GenerateSamples(cc, 0)
		a.FillBuffer()
	}
}
