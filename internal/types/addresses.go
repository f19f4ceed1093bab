package types

// HardwareAddress is the address of a memory mapped hardware register.
// The registers occupy 0xFF00 - 0xFF7F, plus IE at 0xFFFF.
type HardwareAddress = uint16

// Joypad, serial and timer.
const (
	// P1 selects the joypad key group and reads its state.
	P1 HardwareAddress = 0xFF00
	// SB holds the byte being shifted through the serial port.
	SB HardwareAddress = 0xFF01
	// SC controls the serial port.
	//
	//  Bit 7: Transfer start (1=transferring)
	//  Bit 1: Clock speed (CGB only, 1=fast)
	//  Bit 0: Shift clock (1=internal)
	SC HardwareAddress = 0xFF02
	// DIV exposes bits 15-8 of the 16-bit system divider. Any write
	// resets the divider.
	DIV HardwareAddress = 0xFF04
	// TIMA is incremented on the falling edge of the divider bit
	// selected by TAC, and reloaded from TMA 4 cycles after it
	// overflows.
	TIMA HardwareAddress = 0xFF05
	// TMA is the value TIMA is reloaded with.
	TMA HardwareAddress = 0xFF06
	// TAC enables the timer and selects its rate.
	//
	//  Bit 2:   Enable
	//  Bit 1-0: 00=4096Hz 01=262144Hz 10=65536Hz 11=16384Hz
	TAC HardwareAddress = 0xFF07
	// IF holds the requested interrupts.
	//
	//  Bit 0: V-Blank (INT 40h)
	//  Bit 1: LCD STAT (INT 48h)
	//  Bit 2: Timer (INT 50h)
	//  Bit 3: Serial (INT 58h)
	//  Bit 4: Joypad (INT 60h)
	IF HardwareAddress = 0xFF0F
)

// Sound.
const (
	NR10 HardwareAddress = 0xFF10 // channel 1 sweep
	NR11 HardwareAddress = 0xFF11 // channel 1 duty and length
	NR12 HardwareAddress = 0xFF12 // channel 1 envelope
	NR13 HardwareAddress = 0xFF13 // channel 1 frequency low
	NR14 HardwareAddress = 0xFF14 // channel 1 trigger, length enable, frequency high
	NR21 HardwareAddress = 0xFF16 // channel 2 duty and length
	NR22 HardwareAddress = 0xFF17 // channel 2 envelope
	NR23 HardwareAddress = 0xFF18 // channel 2 frequency low
	NR24 HardwareAddress = 0xFF19 // channel 2 trigger, length enable, frequency high
	NR30 HardwareAddress = 0xFF1A // channel 3 DAC enable
	NR31 HardwareAddress = 0xFF1B // channel 3 length
	NR32 HardwareAddress = 0xFF1C // channel 3 output level
	NR33 HardwareAddress = 0xFF1D // channel 3 frequency low
	NR34 HardwareAddress = 0xFF1E // channel 3 trigger, length enable, frequency high
	NR41 HardwareAddress = 0xFF20 // channel 4 length
	NR42 HardwareAddress = 0xFF21 // channel 4 envelope
	NR43 HardwareAddress = 0xFF22 // channel 4 clock shift, width, divisor
	NR44 HardwareAddress = 0xFF23 // channel 4 trigger, length enable
	NR50 HardwareAddress = 0xFF24 // master volume per side
	NR51 HardwareAddress = 0xFF25 // channel panning
	NR52 HardwareAddress = 0xFF26 // sound power and channel status

	// WaveRAM is the first of the 16 bytes holding channel 3's samples.
	WaveRAM HardwareAddress = 0xFF30
)

// Video.
const (
	// LCDC controls the LCD.
	//
	//  Bit 7: LCD enable
	//  Bit 6: Window tile map (0=9800-9BFF, 1=9C00-9FFF)
	//  Bit 5: Window enable
	//  Bit 4: BG & window tile data (0=8800-97FF, 1=8000-8FFF)
	//  Bit 3: BG tile map (0=9800-9BFF, 1=9C00-9FFF)
	//  Bit 2: OBJ size (0=8x8, 1=8x16)
	//  Bit 1: OBJ enable
	//  Bit 0: BG enable (DMG) / BG & window master priority (CGB)
	LCDC HardwareAddress = 0xFF40
	// STAT reports the LCD mode and coincidence flag, and selects the
	// sources of the STAT interrupt.
	//
	//  Bit 6: LYC=LY interrupt source
	//  Bit 5: Mode 2 interrupt source
	//  Bit 4: Mode 1 interrupt source
	//  Bit 3: Mode 0 interrupt source
	//  Bit 2: LYC=LY flag (read only)
	//  Bit 1-0: Mode (read only)
	STAT HardwareAddress = 0xFF41
	SCY  HardwareAddress = 0xFF42 // background scroll Y
	SCX  HardwareAddress = 0xFF43 // background scroll X
	// LY is the line currently being processed, 0-153.
	LY HardwareAddress = 0xFF44
	// LYC is compared against LY to drive the coincidence flag.
	LYC HardwareAddress = 0xFF45
	// DMA starts an OAM DMA transfer from XX00 - XX9F.
	DMA  HardwareAddress = 0xFF46
	BGP  HardwareAddress = 0xFF47 // DMG background palette
	OBP0 HardwareAddress = 0xFF48 // DMG object palette 0
	OBP1 HardwareAddress = 0xFF49 // DMG object palette 1
	WY   HardwareAddress = 0xFF4A // window Y
	WX   HardwareAddress = 0xFF4B // window X + 7
)

// Game Boy Color.
const (
	// KEY1 prepares a speed switch (bit 0) and reports the current
	// speed (bit 7).
	KEY1 HardwareAddress = 0xFF4D
	// VBK selects the VRAM bank.
	VBK HardwareAddress = 0xFF4F
	// HDMA1 - HDMA5 drive VRAM DMA. HDMA1/2 hold the source, HDMA3/4
	// the destination and HDMA5 starts a transfer of (n+1)*16 bytes,
	// general purpose when bit 7 is clear, per H-Blank when set.
	HDMA1 HardwareAddress = 0xFF51
	HDMA2 HardwareAddress = 0xFF52
	HDMA3 HardwareAddress = 0xFF53
	HDMA4 HardwareAddress = 0xFF54
	HDMA5 HardwareAddress = 0xFF55
	// RP is the infrared port.
	RP   HardwareAddress = 0xFF56
	BCPS HardwareAddress = 0xFF68 // background palette index
	BCPD HardwareAddress = 0xFF69 // background palette data
	OCPS HardwareAddress = 0xFF6A // object palette index
	OCPD HardwareAddress = 0xFF6B // object palette data
	// SVBK selects the WRAM bank mapped at 0xD000.
	SVBK HardwareAddress = 0xFF70
)

// IE holds the enabled interrupts, using the same layout as IF.
const IE HardwareAddress = 0xFFFF
