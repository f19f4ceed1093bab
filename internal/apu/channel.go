package apu

import (
	"github.com/thelolagemann/gbcore/internal/scheduler"
)

const disabled = scheduler.Disabled

// masterDisabler is implemented by every channel. Units that can silence
// their channel (length expiry, sweep overflow) hold one instead of the
// channel itself.
type masterDisabler interface {
	disableMaster()
}

// stereo is a pair of per side multipliers or levels.
type stereo struct {
	l, r int32
}

// output remembers the level a channel last contributed, so that only
// the change is written to the sample buffer.
type output struct {
	l, r int32
}

// sink is the window of the sample buffer being accumulated into. Samples
// are interleaved left/right. Deltas that fall past the end of the buffer
// are kept in carry so the running level stays correct.
type sink struct {
	buf    []int32
	base   uint64 // buffer position of the window's first sound cycle
	limit  uint64 // buffer capacity in samples
	carryL int32
	carryR int32
}

// emit records that o changes to (l, r) at buffer position pos.
func (s *sink) emit(o *output, pos uint64, l, r int32) {
	dl, dr := l-o.l, r-o.r
	if dl == 0 && dr == 0 {
		return
	}
	o.l, o.r = l, r
	if pos < s.limit {
		s.buf[2*pos] += dl
		s.buf[2*pos+1] += dr
		return
	}
	s.carryL += dl
	s.carryR += dr
}

// lengthCounter silences its channel once the programmed length elapses.
// It is clocked at 256Hz, on sound cycles that are multiples of 1<<13.
type lengthCounter struct {
	disabler      masterDisabler
	counter       uint64
	lengthCounter uint16
	mask          uint16
}

func newLengthCounter(d masterDisabler, mask uint16) lengthCounter {
	return lengthCounter{disabler: d, counter: disabled, mask: mask}
}

func (l *lengthCounter) event() {
	l.counter = disabled
	l.lengthCounter = 0
	l.disabler.disableMaster()
}

func (l *lengthCounter) nr1Change(nr1, nr4 uint8, sc uint64) {
	l.lengthCounter = (^uint16(nr1) & l.mask) + 1
	if nr4&0x40 != 0 {
		l.counter = ((sc >> 13) + uint64(l.lengthCounter)) << 13
	} else {
		l.counter = disabled
	}
}

// nr4Change applies a write to NRx4. Enabling the length counter in the
// first half of a length period clocks it once more, and a trigger with
// an expired counter reloads it to the maximum (less that extra clock).
func (l *lengthCounter) nr4Change(oldNr4, newNr4 uint8, sc uint64) {
	if l.counter != disabled {
		l.lengthCounter = uint16((l.counter >> 13) - (sc >> 13))
	}

	var dec uint16
	if newNr4&0x40 != 0 {
		dec = uint16(^sc >> 12 & 1)
		if oldNr4&0x40 == 0 && l.lengthCounter != 0 {
			l.lengthCounter -= dec
			if l.lengthCounter == 0 {
				l.disabler.disableMaster()
			}
		}
	}

	if newNr4&0x80 != 0 && l.lengthCounter == 0 {
		l.lengthCounter = l.mask + 1 - dec
	}

	if newNr4&0x40 != 0 && l.lengthCounter != 0 {
		l.counter = ((sc >> 13) + uint64(l.lengthCounter)) << 13
	} else {
		l.counter = disabled
	}
}

func (l *lengthCounter) rebase(dec uint64) {
	l.counter = scheduler.Rebase(l.counter, dec)
}

func (l *lengthCounter) reset() {
	l.counter = disabled
	l.lengthCounter = 0
}

// envelopeUnit steps a channel's volume every (NRx2 & 7) 64Hz ticks.
type envelopeUnit struct {
	counter uint64
	nr2     uint8
	volume  uint8
}

func (e *envelopeUnit) event() {
	period := uint64(e.nr2 & 7)
	if period == 0 {
		e.counter += 8 << 15
		return
	}

	v := int(e.volume)
	if e.nr2&8 != 0 {
		v++
	} else {
		v--
	}
	if v < 0 || v > 0xF {
		e.counter = disabled
		return
	}
	e.volume = uint8(v)
	e.counter += period << 15
}

// nr2Change applies a write to NRx2 on a playing channel ("zombie mode")
// and reports whether the DAC is now off.
func (e *envelopeUnit) nr2Change(v uint8) bool {
	if e.nr2&7 == 0 && e.counter != disabled {
		e.volume++
	} else if e.nr2&8 == 0 {
		e.volume += 2
	}
	if (e.nr2^v)&8 != 0 {
		e.volume = 0x10 - e.volume
	}
	e.volume &= 0xF
	e.nr2 = v
	return !e.dacOn()
}

// nr4Init restarts the envelope on a trigger and reports whether the DAC
// is off.
func (e *envelopeUnit) nr4Init(sc uint64) bool {
	period := uint64(e.nr2 & 7)
	if period == 0 {
		period = 8
	}
	if (sc+2)&0x7000 == 0 {
		period++
	}
	e.counter = sc - ((sc - 0x1000) & 0x7FFF) + period*0x8000
	e.volume = e.nr2 >> 4
	return !e.dacOn()
}

func (e *envelopeUnit) dacOn() bool {
	return e.nr2&0xF8 != 0
}

func (e *envelopeUnit) rebase(dec uint64) {
	e.counter = scheduler.Rebase(e.counter, dec)
}

func (e *envelopeUnit) reset() {
	e.counter = disabled
	e.nr2 = 0
	e.volume = 0
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
