package image

import (
	"fmt"
	"image"

	"golang.org/x/xerrors"
)

// MatrixSource reads pixels from a caller-owned, row-major grid of packed
// colors (see ColorFromPacked).
type MatrixSource struct {
	pix    []uint32
	width  int
	height int
}

func NewMatrixSource(pix []uint32, width int, height int) *MatrixSource {
	if width < 0 || height < 0 || len(pix) != width*height {
		panic(fmt.Sprintf("matrix of %d pixels does not hold a %dx%d grid", len(pix), width, height))
	}

	return &MatrixSource{
		pix:    pix,
		width:  width,
		height: height,
	}
}

// NewMatrixSourceFromRows copies rows into a flat grid. All rows must have
// the same length.
func NewMatrixSourceFromRows(rows [][]uint32) *MatrixSource {
	height := len(rows)
	width := 0
	if height > 0 {
		width = len(rows[0])
	}

	pix := make([]uint32, 0, width*height)
	for y, row := range rows {
		if len(row) != width {
			panic(fmt.Sprintf("row %d has %d pixels, want %d", y, len(row), width))
		}
		pix = append(pix, row...)
	}

	return NewMatrixSource(pix, width, height)
}

func (m *MatrixSource) Width() int {
	return m.width
}

func (m *MatrixSource) Height() int {
	return m.height
}

func (m *MatrixSource) PixelAt(x int, y int) Color {
	checkPixel(x, y, m.width, m.height)
	return ColorFromPacked(m.pix[y*m.width+x])
}

func (m *MatrixSource) BlockAt(x int, y int) Block {
	checkBlock(x, y, m.width, m.height)
	offset := y*m.width + x
	return Block(m.pix[offset : offset+BlockSize])
}

func (m *MatrixSource) Close() error {
	return nil
}

// MatrixFactory decodes the whole image into a packed grid up front.
type MatrixFactory struct{}

func (MatrixFactory) Acquire(img image.Image) (ReleasableSource, error) {
	if img == nil {
		return nil, xerrors.Errorf("nil image: %w", ErrResourceAcquisition)
	}

	nrgba := toNRGBA(img)
	bounds := nrgba.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	pix := make([]uint32, width*height)
	for y := 0; y < height; y++ {
		rowStart := nrgba.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		for x := 0; x < width; x++ {
			offset := rowStart + x*4
			pix[y*width+x] = Color{
				R: nrgba.Pix[offset],
				G: nrgba.Pix[offset+1],
				B: nrgba.Pix[offset+2],
				A: nrgba.Pix[offset+3],
			}.Packed()
		}
	}

	return NewMatrixSource(pix, width, height), nil
}
