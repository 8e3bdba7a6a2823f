package image_test

import (
	diffimage "change-detector/internal/diff/image"
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"testing"
)

// grid builds an NRGBA image whose pixels are the packed colors in rows.
func grid(rows [][]uint32) *image.NRGBA {
	height := len(rows)
	width := 0
	if height > 0 {
		width = len(rows[0])
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y, row := range rows {
		for x, v := range row {
			img.SetNRGBA(x, y, diffimage.ColorFromPacked(v).NRGBA())
		}
	}
	return img
}

func uniform(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// noisyPair returns a random baseline and a copy with changed patches and
// small sub-tolerance jitter.
func noisyPair(r *rand.Rand, width, height int) (*image.NRGBA, *image.NRGBA) {
	baseline := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := range baseline.Pix {
		baseline.Pix[i] = uint8(r.Intn(256))
	}

	target := image.NewNRGBA(baseline.Rect)
	copy(target.Pix, baseline.Pix)

	for i := 0; i < width*height/50; i++ {
		offset := r.Intn(len(target.Pix))
		target.Pix[offset] ^= 1
	}

	patches := 1 + r.Intn(6)
	for i := 0; i < patches; i++ {
		x0, y0 := r.Intn(width), r.Intn(height)
		x1, y1 := min(width, x0+1+r.Intn(12)), min(height, y0+1+r.Intn(6))
		c := color.NRGBA{R: uint8(r.Intn(256)), G: uint8(r.Intn(256)), B: uint8(r.Intn(256)), A: 255}
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				target.SetNRGBA(x, y, c)
			}
		}
	}

	return baseline, target
}

var factories = map[string]diffimage.SourceFactory{
	"matrix":  diffimage.MatrixFactory{},
	"pointer": diffimage.PointerFactory{},
	"image":   diffimage.ImageFactory{},
}

func acquire(t testing.TB, factory diffimage.SourceFactory, img image.Image) diffimage.ReleasableSource {
	t.Helper()
	source, err := factory.Acquire(img)
	if err != nil {
		t.Fatalf("failed to acquire source: %v", err)
	}
	t.Cleanup(func() {
		_ = source.Close()
	})
	return source
}
