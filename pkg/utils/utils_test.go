package utils

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func TestDecompress(t *testing.T) {
	payload := []byte("GBCS snapshot payload")

	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var zb bytes.Buffer
	zw := zip.NewWriter(&zb)
	f, err := zw.Create("state.gbcs")
	require.NoError(t, err)
	_, err = f.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tests := []struct {
		ext  string
		data []byte
	}{
		{".gbcs", payload},
		{".gz", gz.Bytes()},
		{".ZIP", zb.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			got, err := Decompress(tt.ext, tt.data)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}

	_, err = Decompress(".zip", payload)
	assert.Error(t, err)
	_, err = Decompress(".7z", payload)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "state.gbcs")
	require.NoError(t, os.WriteFile(name, []byte{1, 2, 3}, 0o644))

	got, err := LoadFile(name)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestSaveBMP(t *testing.T) {
	fb := make([]uint32, 8*4)
	fb[8+3] = 0x123456
	img := FramebufferImage(fb, 8, 6, 4)
	assert.Equal(t, 6, img.Bounds().Dx())

	name := filepath.Join(t.TempDir(), "frame.bmp")
	require.NoError(t, SaveBMP(name, img))

	f, err := os.Open(name)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := bmp.Decode(f)
	require.NoError(t, err)
	r, g, b, _ := decoded.At(3, 1).RGBA()
	assert.Equal(t, []uint32{0x12, 0x34, 0x56}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestDownsample(t *testing.T) {
	in := []int32{1, 10, 3, 20, 5, 30, 7, 40, 9, 50}
	assert.Equal(t, []int32{2, 15, 6, 35}, Downsample(in, 2))
	assert.Equal(t, in, Downsample(in, 1))
}

func TestSaveWAV(t *testing.T) {
	samples := []int32{0, 0, 480, -480, 1000, -1000, 10, 20}
	name := filepath.Join(t.TempDir(), "out.wav")
	require.NoError(t, SaveWAV(name, samples, 44100))

	f, err := os.Open(name)
	require.NoError(t, err)
	defer f.Close()
	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, 2, buf.Format.NumChannels)
	assert.Equal(t, 44100, buf.Format.SampleRate)
	assert.Equal(t, []int{0, 0, 480 * sampleScale, -480 * sampleScale, 0x7FFF, -0x8000, 640, 1280}, buf.Data)
}

func TestPlotSamples(t *testing.T) {
	samples := make([]int32, 2*64)
	for i := range samples {
		samples[i] = int32(i % 16)
	}
	name := filepath.Join(t.TempDir(), "levels.png")
	require.NoError(t, PlotSamples(name, samples, 2097152))

	info, err := os.Stat(name)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
