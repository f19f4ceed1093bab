package utils

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// sampleScale maps the summed channel levels (at most 4 channels of 15 at
// master volume 8) onto 16 bit samples.
const sampleScale = 64

// Downsample averages every factor consecutive stereo pairs of the
// interleaved samples into one pair.
func Downsample(samples []int32, factor int) []int32 {
	if factor <= 1 {
		return append([]int32(nil), samples...)
	}
	n := len(samples) / 2 / factor
	out := make([]int32, 2*n)
	for i := 0; i < n; i++ {
		var l, r int64
		for j := 0; j < factor; j++ {
			l += int64(samples[2*(i*factor+j)])
			r += int64(samples[2*(i*factor+j)+1])
		}
		out[2*i] = int32(l / int64(factor))
		out[2*i+1] = int32(r / int64(factor))
	}
	return out
}

// SaveWAV writes interleaved stereo samples to filename as 16 bit PCM.
func SaveWAV(filename string, samples []int32, rate int) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: rate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = clamp16(int(s) * sampleScale)
	}

	enc := wav.NewEncoder(f, rate, 16, 2, 1)
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("utils: encoding %s: %w", filename, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("utils: encoding %s: %w", filename, err)
	}

	return f.Close()
}

func clamp16(v int) int {
	return max(-0x8000, min(0x7FFF, v))
}
