package apu

import "github.com/thelolagemann/gbcore/internal/scheduler"

// dutyTable holds the 4 duty waveforms, 8 steps each, as bit duty*8+pos.
const dutyTable = 0x7EE18180

func dutyHigh(duty, pos uint8) bool {
	return dutyTable>>(duty*8+pos)&1 != 0
}

// dutyUnit walks the 8 step duty waveform of a square channel, one step
// every (2048-freq)*2 sound cycles.
//
// While its channel is silent the unit takes no events, but the position
// keeps running: updatePos catches it up before any change.
type dutyUnit struct {
	nextPosUpdate uint64
	period        uint64
	freq          uint16
	pos           uint8
	duty          uint8
	high          bool
	events        bool
}

func toPeriod(freq uint16) uint64 {
	return uint64(2048-freq) * 2
}

func (d *dutyUnit) counter() uint64 {
	if d.events {
		return d.nextPosUpdate
	}
	return disabled
}

func (d *dutyUnit) event() {
	d.pos = (d.pos + 1) & 7
	d.nextPosUpdate += d.period
	d.high = dutyHigh(d.duty, d.pos)
}

func (d *dutyUnit) updatePos(sc uint64) {
	if sc >= d.nextPosUpdate {
		inc := (sc-d.nextPosUpdate)/d.period + 1
		d.nextPosUpdate += d.period * inc
		d.pos = uint8((uint64(d.pos) + inc) & 7)
		d.high = dutyHigh(d.duty, d.pos)
	}
}

func (d *dutyUnit) setFreq(freq uint16, sc uint64) {
	d.updatePos(sc)
	d.freq = freq & 0x7FF
	d.period = toPeriod(d.freq)
}

func (d *dutyUnit) nr1Change(v uint8, sc uint64) {
	d.updatePos(sc)
	d.duty = v >> 6
	d.high = dutyHigh(d.duty, d.pos)
}

func (d *dutyUnit) nr3Change(v uint8, sc uint64) {
	d.setFreq(d.freq&0x700|uint16(v), sc)
}

func (d *dutyUnit) nr4Change(v uint8, sc uint64, master bool) {
	d.setFreq(uint16(v&7)<<8|d.freq&0xFF, sc)
	if v&0x80 != 0 {
		d.nextPosUpdate = (sc &^ 1) + d.period + 4
		if master {
			d.nextPosUpdate -= 2
		}
	}
}

func (d *dutyUnit) kill() {
	d.events = false
}

func (d *dutyUnit) revive(sc uint64) {
	d.updatePos(sc)
	d.events = true
}

func (d *dutyUnit) rebase(sc, dec uint64) {
	d.updatePos(sc)
	d.nextPosUpdate = scheduler.Rebase(d.nextPosUpdate, dec)
}

func (d *dutyUnit) reset(sc uint64) {
	d.freq = 0
	d.period = toPeriod(0)
	d.pos = 0
	d.duty = 0
	d.high = false
	d.events = false
	d.nextPosUpdate = (sc &^ 1) + d.period
}
