package image

import (
	"image"
	"image/color"

	"golang.org/x/xerrors"
)

// ImageSource converts pixels of an arbitrary image.Image on every lookup.
// It has no block access and is the slowest of the three strategies.
type ImageSource struct {
	img    image.Image
	bounds image.Rectangle
}

func NewImageSource(img image.Image) *ImageSource {
	return &ImageSource{
		img:    img,
		bounds: img.Bounds(),
	}
}

func (s *ImageSource) Width() int {
	return s.bounds.Dx()
}

func (s *ImageSource) Height() int {
	return s.bounds.Dy()
}

func (s *ImageSource) PixelAt(x int, y int) Color {
	checkPixel(x, y, s.bounds.Dx(), s.bounds.Dy())
	return colorFromNRGBA(color.NRGBAModel.Convert(s.img.At(s.bounds.Min.X+x, s.bounds.Min.Y+y)).(color.NRGBA))
}

func (s *ImageSource) Close() error {
	return nil
}

type ImageFactory struct{}

func (ImageFactory) Acquire(img image.Image) (ReleasableSource, error) {
	if img == nil {
		return nil, xerrors.Errorf("nil image: %w", ErrResourceAcquisition)
	}
	return NewImageSource(img), nil
}
