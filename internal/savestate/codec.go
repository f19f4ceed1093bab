package savestate

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/cespare/xxhash"
	"github.com/hashicorp/go-multierror"
	"github.com/thelolagemann/gbcore/internal/types"
)

const (
	// Magic opens every encoded state.
	Magic = "GBCS"
	// Version is the version of the State layout.
	Version = 1

	flagCompressed = 1 << 0

	// magic, version, flags, payload size, checksum
	headerSize = 4 + 2 + 2 + 4 + 8
)

var (
	ErrMagic    = errors.New("not a saved state")
	ErrVersion  = errors.New("unsupported state version")
	ErrSize     = errors.New("state has the wrong size")
	ErrChecksum = errors.New("state checksum mismatch")
)

// Size is the length of an encoded State payload, before compression.
var Size = binary.Size(State{})

// Options controls the encoding of a State.
type Options struct {
	// Compress compresses the payload with brotli.
	Compress bool
	// Quality is the brotli quality, 0 - 11. 0 selects a default of 6.
	Quality int
}

// Marshal encodes st with a header carrying its version, size and the
// xxhash64 of the uncompressed payload.
func Marshal(st *State, opts Options) ([]byte, error) {
	var payload bytes.Buffer
	payload.Grow(Size)
	if err := binary.Write(&payload, binary.LittleEndian, st); err != nil {
		return nil, fmt.Errorf("savestate: encoding: %w", err)
	}
	raw := payload.Bytes()

	var flags uint16
	body := raw
	if opts.Compress {
		flags |= flagCompressed
		quality := opts.Quality
		if quality == 0 {
			quality = 6
		}
		var compressed bytes.Buffer
		w := brotli.NewWriterLevel(&compressed, quality)
		if _, err := w.Write(raw); err != nil {
			return nil, fmt.Errorf("savestate: compressing: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("savestate: compressing: %w", err)
		}
		body = compressed.Bytes()
	}

	out := types.NewState()
	out.WriteData([]byte(Magic))
	out.Write16(Version)
	out.Write16(flags)
	out.Write32(uint32(len(raw)))
	out.Write64(xxhash.Sum64(raw))
	out.WriteData(body)
	return out.Bytes(), nil
}

// Unmarshal decodes and validates a State encoded by Marshal. The returned
// errors wrap ErrMagic, ErrVersion, ErrSize or ErrChecksum for framing
// problems, or list every field Validate rejected.
func Unmarshal(b []byte) (*State, error) {
	if len(b) < headerSize {
		return nil, fmt.Errorf("savestate: %d byte header: %w", len(b), ErrSize)
	}
	in := types.StateFromBytes(b)
	if string(in.ReadData(len(Magic))) != Magic {
		return nil, fmt.Errorf("savestate: %w", ErrMagic)
	}
	if v := in.Read16(); v != Version {
		return nil, fmt.Errorf("savestate: version %d: %w", v, ErrVersion)
	}
	flags := in.Read16()
	size := int(in.Read32())
	sum := in.Read64()
	if size != Size {
		return nil, fmt.Errorf("savestate: payload of %d bytes, want %d: %w", size, Size, ErrSize)
	}

	raw := in.Remaining()
	if flags&flagCompressed != 0 {
		r := brotli.NewReader(bytes.NewReader(raw))
		decoded, err := io.ReadAll(io.LimitReader(r, int64(Size)+1))
		if err != nil {
			return nil, fmt.Errorf("savestate: decompressing: %w", err)
		}
		raw = decoded
	}
	if len(raw) != Size {
		return nil, fmt.Errorf("savestate: payload of %d bytes, want %d: %w", len(raw), Size, ErrSize)
	}
	if xxhash.Sum64(raw) != sum {
		return nil, fmt.Errorf("savestate: %w", ErrChecksum)
	}

	st := new(State)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, st); err != nil {
		return nil, fmt.Errorf("savestate: decoding: %w", err)
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return st, nil
}

// Validate reports every field of st that is out of range.
func (st *State) Validate() error {
	var result *multierror.Error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			result = multierror.Append(result, fmt.Errorf(format, args...))
		}
	}

	m := &st.Mem
	check(m.SVBK <= 7, "mem: SVBK %d out of range", m.SVBK)
	check(m.OAMDMAPos <= 0xA0, "mem: OAM DMA position %d out of range", m.OAMDMAPos)
	check(m.DMADest <= 0x1FF0 && m.DMADest&0xF == 0, "mem: HDMA destination %#04x misaligned", m.DMADest)
	check(m.DMABlocks <= 0x7F || m.DMABlocks == 0xFF, "mem: HDMA length %#02x out of range", m.DMABlocks)
	check(!(m.HDMAActive && m.GDMAActive), "mem: HDMA and GDMA both active")

	check(st.Timer.TAC <= 7, "timer: TAC %#02x out of range", st.Timer.TAC)

	p := &st.PPU
	check(p.Ly < 154, "ppu: LY %d out of range", p.Ly)
	check(p.VBK <= 1, "ppu: VBK %d out of range", p.VBK)
	check(p.BCPS&0x40 == 0, "ppu: BCPS %#02x out of range", p.BCPS)
	check(p.OCPS&0x40 == 0, "ppu: OCPS %#02x out of range", p.OCPS)
	for ly, n := range p.SpriteCount {
		check(n <= 10, "ppu: %d sprites on line %d", n, ly)
	}

	s := &st.SPU
	check(s.Ch1.Pos < 8, "spu: channel 1 duty position %d out of range", s.Ch1.Pos)
	check(s.Ch2.Pos < 8, "spu: channel 2 duty position %d out of range", s.Ch2.Pos)
	check(s.Ch1.Volume <= 15, "spu: channel 1 volume %d out of range", s.Ch1.Volume)
	check(s.Ch2.Volume <= 15, "spu: channel 2 volume %d out of range", s.Ch2.Volume)
	check(s.Ch3.WavePos < 32, "spu: wave position %d out of range", s.Ch3.WavePos)
	check(s.Ch4.Volume <= 15, "spu: channel 4 volume %d out of range", s.Ch4.Volume)
	check(s.Ch4.Reg <= 0x7FFF, "spu: LFSR %#04x out of range", s.Ch4.Reg)
	for i, n := range []uint16{s.Ch1.LengthCounter, s.Ch2.LengthCounter, s.Ch4.LengthCounter} {
		check(n <= 64, "spu: square/noise length %d of channel %d out of range", n, []int{1, 2, 4}[i])
	}
	check(s.Ch3.LengthCounter <= 256, "spu: wave length %d out of range", s.Ch3.LengthCounter)

	if result == nil {
		return nil
	}
	return fmt.Errorf("savestate: invalid state: %w", result)
}
