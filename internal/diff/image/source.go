package image

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"golang.org/x/xerrors"
)

// BlockSize is the number of pixels compared at once by the block-skip scan.
// Eight 32-bit lanes fill one 256-bit vector register.
const BlockSize = 8

// Block is a packed run of BlockSize horizontally adjacent pixels.
type Block [BlockSize]uint32

// PixelSource is a read-only view over an image's pixel grid.
//
// PixelAt panics when (x, y) lies outside [0, Width) x [0, Height).
type PixelSource interface {
	Width() int
	Height() int
	PixelAt(x int, y int) Color
}

// BlockSource is implemented by sources that can hand out BlockSize pixels
// in one read. BlockAt is only defined for x+BlockSize <= Width.
type BlockSource interface {
	PixelSource
	BlockAt(x int, y int) Block
}

// ReleasableSource is a PixelSource holding on to a pixel buffer until it is
// closed.
type ReleasableSource interface {
	PixelSource
	io.Closer
}

// SourceFactory turns a decoded image into a pixel source. Callers must
// Close the returned source once the comparison is done.
type SourceFactory interface {
	Acquire(img image.Image) (ReleasableSource, error)
}

func FactoryByName(name string) (SourceFactory, error) {
	switch name {
	case "matrix":
		return MatrixFactory{}, nil
	case "pointer":
		return PointerFactory{}, nil
	case "image":
		return ImageFactory{}, nil
	default:
		return nil, xerrors.Errorf("unknown accessor %q: %w", name, ErrInvalidConfiguration)
	}
}

func checkPixel(x int, y int, width int, height int) {
	if x < 0 || y < 0 || x >= width || y >= height {
		panic(fmt.Sprintf("pixel (%d, %d) is out of range for a %dx%d source", x, y, width, height))
	}
}

func checkBlock(x int, y int, width int, height int) {
	if x < 0 || y < 0 || x+BlockSize > width || y >= height {
		panic(fmt.Sprintf("block at (%d, %d) is out of range for a %dx%d source", x, y, width, height))
	}
}

// toNRGBA returns img as straight-alpha 8-bit pixels, converting each pixel
// through color.NRGBAModel unless img already is an *image.NRGBA.
func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}

	bounds := img.Bounds()
	result := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			result.SetNRGBA(x, y, color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA))
		}
	}
	return result
}
