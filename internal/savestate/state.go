// Package savestate defines the flat snapshot of the timing core and its
// binary framing. The field order of State is the serialization contract:
// every field is fixed size and encoded little endian in declaration order.
// Changing it requires bumping Version.
package savestate

import (
	"github.com/thelolagemann/gbcore/internal/scheduler"
)

// State is a snapshot of every component of the machine.
type State struct {
	CPU   CPU
	Mem   Mem
	Timer Timer
	PPU   PPU
	SPU   SPU
}

// CPU holds the processor registers handed to the attached CPU, plus the
// global cycle counter every other time is relative to.
type CPU struct {
	CycleCounter uint64
	PC, SP       uint16
	A, F         uint8
	B, C         uint8
	D, E         uint8
	H, L         uint8
	IME          bool
	Halted       bool
	Skip         bool // halt bug pending
}

// Mem holds the memory blocks and the bus side peripherals.
type Mem struct {
	// IOAMHRAM mirrors 0xFE00 - 0xFFFF: OAM, the IO registers, HRAM and IE.
	IOAMHRAM [0x200]byte
	WRAM     [0x8000]byte

	MinIntTime uint64
	UnhaltTime uint64
	IF, IE     uint8

	// serial
	NextSerialTime uint64
	SerialBits     uint8

	// OAM DMA
	OAMDMAPos      uint8 // next byte to copy, 160 once every byte moved
	OAMDMASource   uint16
	OAMDMALatch    uint8 // last byte moved, seen by conflicting reads
	OAMDMAActive   bool
	NextOAMDMATime uint64

	// HDMA / GDMA
	DMATime     uint64
	DMASource   uint16
	DMADest     uint16
	DMABlocks   uint8 // remaining 16 byte blocks - 1, 0xFF when idle
	HDMAActive  bool
	GDMAActive  bool
	SVBK        uint8
	DoubleSpeed bool
	Key1        uint8
	Stopped     bool
}

// Timer holds the divider and timer state.
type Timer struct {
	DivOffset  uint16
	TIMA       uint8
	TMA        uint8
	TAC        uint8
	LastUpdate uint64
	ReloadTime uint64
	ReloadedAt uint64
}

// PPU holds the video timing core. Event times are Disabled when the
// event is not scheduled.
type PPU struct {
	VRAM        [0x4000]byte
	BGPData     [64]byte
	OBJPData    [64]byte
	SpriteCache [144][10]byte
	SpriteCount [144]byte

	LCDC, STAT, SCY, SCX uint8
	LYC, WY, WY2, WX     uint8
	BGP, OBP0, OBP1      uint8
	BCPS, OCPS           uint8
	VBK                  uint8

	// effective and announced copies of LYC and STAT
	LycReg, LycRegSrc   uint8
	StatReg, StatRegSrc uint8
	M0StatReg, M0LycReg uint8
	M1StatReg           uint8
	M2StatReg           uint8

	Ly           uint8
	WindowLine   uint8
	WinTriggered bool
	FirstLine    bool
	OAMDirty     bool
	PartialMap   bool
	HDMAEnabled  bool
	HDMARequest  bool

	NextLyTime  uint64
	M0Time      uint64
	LycIrqTime  uint64
	M0IrqTime   uint64
	M1IrqTime   uint64
	M2IrqTime   uint64
	OneshotStat uint64
	OneshotWy2  uint64
	SpriteMap   uint64
	HDMATime    uint64
	DrawTime    uint64
}

// Square holds a duty, envelope and length driven channel.
type Square struct {
	NextPosUpdate uint64
	EnvCounter    uint64
	LenCounter    uint64
	LengthCounter uint16
	Freq          uint16
	Pos           uint8
	Volume        uint8
	Nr4           uint8
	Master        bool
	DutyEvents    bool
	PrevL, PrevR  int32
}

// Sweep holds the frequency sweep unit of channel 1.
type Sweep struct {
	Counter uint64
	Shadow  uint16
	Negging bool
}

// Wave holds channel 3.
type Wave struct {
	WaveCounter   uint64
	LastReadTime  uint64
	LenCounter    uint64
	LengthCounter uint16
	WavePos       uint8
	SampleBuf     uint8
	Nr4           uint8
	Master        bool
	PrevL, PrevR  int32
}

// Noise holds channel 4.
type Noise struct {
	Counter       uint64
	BackupCounter uint64
	EnvCounter    uint64
	LenCounter    uint64
	LengthCounter uint16
	Reg           uint16
	Volume        uint8
	Nr4           uint8
	Master        bool
	Events        bool
	PrevL, PrevR  int32
}

// SPU holds the sound unit.
type SPU struct {
	// Regs mirrors 0xFF10 - 0xFF3F, wave RAM included.
	Regs         [0x30]byte
	CycleCounter uint64 // sound cycles
	LastUpdate   uint64 // machine cycles
	SumL, SumR   int32
	Enabled      bool

	Ch1   Square
	Sweep Sweep
	Ch2   Square
	Ch3   Wave
	Ch4   Noise
}

// Clamp raises a restored time to at least cc, leaving disabled times alone.
func Clamp(t, cc uint64) uint64 {
	return scheduler.Clamp(t, cc)
}
