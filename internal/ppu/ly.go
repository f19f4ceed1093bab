package ppu

const (
	// ScreenWidth is the width of the screen in pixels.
	ScreenWidth = 160
	// ScreenHeight is the height of the screen in pixels.
	ScreenHeight = 144

	// LineDots is the length of a scanline in dots.
	LineDots = 456
	// FrameLines is the number of scanlines in a frame, visible or not.
	FrameLines = 154
	// FrameDots is the length of a frame in dots.
	FrameDots = LineDots * FrameLines

	// oamScanDots is the length of mode 2.
	oamScanDots = 80
)

// lyCounter tracks the current scanline. A dot lasts 1 machine cycle in
// normal speed and 2 in double speed.
type lyCounter struct {
	time     uint64 // cycle the next line starts at
	lineTime uint64
	ly       uint8
	ds       uint8
}

func (l *lyCounter) reset(ly uint8, lineStart uint64, ds uint8) {
	l.ds = ds
	l.lineTime = LineDots << ds
	l.ly = ly
	l.time = lineStart + l.lineTime
}

func (l *lyCounter) setDoubleSpeed(ds uint8) {
	l.ds = ds
	l.lineTime = LineDots << ds
}

// lineStart returns the cycle the current line started at.
func (l *lyCounter) lineStart() uint64 {
	return l.time - l.lineTime
}

// lineCycles returns the number of dots elapsed on the current line.
func (l *lyCounter) lineCycles(cc uint64) uint64 {
	return (cc - l.lineStart()) >> l.ds
}

// nextFrameCycle returns the first cycle after cc at frame position
// frameCycle (in dots), and at most a frame after cc.
func (l *lyCounter) nextFrameCycle(frameCycle, cc uint64) uint64 {
	t := l.time + ((uint64(FrameLines-1-l.ly)*LineDots + frameCycle) << l.ds)
	frame := uint64(FrameDots) << l.ds
	if t-cc > frame {
		t -= frame
	}
	return t
}

// increment moves to the next line.
func (l *lyCounter) increment() {
	l.time += l.lineTime
	l.ly++
	if l.ly == FrameLines {
		l.ly = 0
	}
}
