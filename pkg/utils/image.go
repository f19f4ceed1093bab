package utils

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"golang.org/x/image/bmp"
)

// FramebufferImage converts a 0xRRGGBB framebuffer with the given pitch
// (in pixels) into an image.RGBA of width x height.
func FramebufferImage(fb []uint32, pitch, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := fb[y*pitch+x]
			img.SetRGBA(x, y, color.RGBA{R: uint8(p >> 16), G: uint8(p >> 8), B: uint8(p), A: 0xFF})
		}
	}
	return img
}

// SaveBMP writes img to filename as a bitmap.
func SaveBMP(filename string, img image.Image) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}

	if err := bmp.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("utils: encoding %s: %w", filename, err)
	}

	return f.Close()
}
