package image

import (
	"fmt"
	"image"
	"runtime"
	"unsafe"

	"golang.org/x/xerrors"
)

// PointerSource reads 4-byte R, G, B, A pixels straight from memory it does
// not own. The memory must stay valid until Close is called.
type PointerSource struct {
	base   unsafe.Pointer
	width  int
	height int
	stride int

	buffer *image.NRGBA
	pinner runtime.Pinner
}

// NewPointerSource wraps externally locked pixel memory. stride is the
// distance in bytes between the starts of two rows.
func NewPointerSource(base unsafe.Pointer, width int, height int, stride int) *PointerSource {
	if width < 0 || height < 0 || stride < width*4 {
		panic(fmt.Sprintf("invalid pointer source geometry %dx%d with stride %d", width, height, stride))
	}
	if base == nil && width*height > 0 {
		panic("nil base pointer for a non-empty pointer source")
	}

	return &PointerSource{
		base:   base,
		width:  width,
		height: height,
		stride: stride,
	}
}

func (p *PointerSource) Width() int {
	return p.width
}

func (p *PointerSource) Height() int {
	return p.height
}

func (p *PointerSource) PixelAt(x int, y int) Color {
	checkPixel(x, y, p.width, p.height)
	px := (*[4]uint8)(unsafe.Add(p.base, y*p.stride+x*4))
	return Color{R: px[0], G: px[1], B: px[2], A: px[3]}
}

func (p *PointerSource) BlockAt(x int, y int) Block {
	checkBlock(x, y, p.width, p.height)
	return *(*Block)(unsafe.Add(p.base, y*p.stride+x*4))
}

// Close unpins the decode buffer acquired by PointerFactory. It is a no-op
// for sources created with NewPointerSource.
func (p *PointerSource) Close() error {
	p.pinner.Unpin()
	p.buffer = nil
	return nil
}

// PointerFactory pins the image's NRGBA pixel buffer, converting other
// formats into a private buffer first, and reads it through a raw pointer.
type PointerFactory struct{}

func (PointerFactory) Acquire(img image.Image) (ReleasableSource, error) {
	if img == nil {
		return nil, xerrors.Errorf("nil image: %w", ErrResourceAcquisition)
	}

	nrgba := toNRGBA(img)
	bounds := nrgba.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width == 0 || height == 0 {
		return NewPointerSource(nil, width, height, width*4), nil
	}

	first := &nrgba.Pix[nrgba.PixOffset(bounds.Min.X, bounds.Min.Y)]
	source := NewPointerSource(unsafe.Pointer(first), width, height, nrgba.Stride)
	source.buffer = nrgba
	source.pinner.Pin(first)

	return source, nil
}
