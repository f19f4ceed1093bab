package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState(t *testing.T) {
	s := NewState()
	s.Write8(0x12)
	s.Write16(0x3456)
	s.Write32(0x789ABCDE)
	s.Write64(0x0102030405060708)
	s.WriteData([]byte("GB"))
	assert.Equal(t, []byte{0x12, 0x56, 0x34, 0xDE, 0xBC, 0x9A, 0x78, 8, 7, 6, 5, 4, 3, 2, 1, 'G', 'B'}, s.Bytes())

	r := StateFromBytes(s.Bytes())
	assert.Equal(t, uint8(0x12), r.Read8())
	assert.Equal(t, uint16(0x3456), r.Read16())
	assert.Equal(t, uint32(0x789ABCDE), r.Read32())
	assert.Equal(t, uint64(0x0102030405060708), r.Read64())
	assert.Equal(t, []byte("G"), r.ReadData(1))
	assert.Equal(t, []byte("B"), r.Remaining())
	assert.NoError(t, r.Err())

	r.ReadData(1)
	assert.Equal(t, uint32(0), r.Read32())
	assert.ErrorIs(t, r.Err(), ErrShortState)
	assert.Nil(t, r.Remaining())
}

func TestModel(t *testing.T) {
	tests := []struct {
		name string
		want Model
		cgb  bool
	}{
		{"dmg", DMGABC, false},
		{"CGB", CGBABC, true},
		{"agb", AGB, true},
		{"mgb", MGB, false},
		{"nes", Unset, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := StringToModel(tt.name)
			assert.Equal(t, tt.want, m)
			assert.Equal(t, tt.cgb, m.IsCGB())
		})
	}
	assert.Equal(t, "CGB0", CGB0.String())
}

func TestBool(t *testing.T) {
	assert.Equal(t, uint8(1), Bool(true))
	assert.Equal(t, uint8(0), Bool(false))
}
