package ppu

import (
	"github.com/thelolagemann/gbcore/internal/scheduler"
)

// The PPU only decides when H-Blank DMA blocks are due: one at the start
// of mode 0 of every visible line while HDMA is enabled. The copying is
// done by the memory bus, which is told through the scheduler.DMA event.

// EnableHDMA starts requesting H-Blank blocks. If cc already lies past
// mode 3 of a visible line, the first block is requested at once.
func (p *PPU) EnableHDMA(cc uint64) {
	p.Update(cc)
	p.hdmaEnabled = true
	if p.enabled() && p.ly.ly < ScreenHeight && p.ly.lineCycles(cc) >= oamScanDots {
		t := p.m0Time
		if t < cc {
			t = cc
		}
		p.setMem(memHDMA, t)
	}
	p.publish()
}

// DisableHDMA stops requesting blocks and drops a pending request.
func (p *PPU) DisableHDMA(cc uint64) {
	p.Update(cc)
	p.hdmaEnabled = false
	p.hdmaRequest = false
	p.setMem(memHDMA, disabled)
	p.publish()
}

// HDMAEnabled reports whether H-Blank blocks are being requested.
func (p *PPU) HDMAEnabled() bool {
	return p.hdmaEnabled
}

// TakeHDMARequest reports whether a block is due, and clears the
// request.
func (p *PPU) TakeHDMARequest() bool {
	r := p.hdmaRequest
	p.hdmaRequest = false
	return r
}

func (p *PPU) hdmaEvent(t uint64) {
	p.hdmaRequest = true
	p.irq.SetEventTime(scheduler.DMA, t)
	p.setMem(memHDMA, disabled)
}
