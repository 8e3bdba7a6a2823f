package image

import (
	"image"

	"golang.org/x/xerrors"
)

var (
	// ErrInvalidConfiguration is returned when a comparison is configured with
	// values outside their domain, such as a tolerance outside [0, 1].
	ErrInvalidConfiguration = xerrors.New("invalid configuration")
	// ErrResourceAcquisition is returned when the pixel buffer behind a source
	// could not be obtained.
	ErrResourceAcquisition = xerrors.New("resource acquisition failure")
)

// Rectangle describes the pixel block [Left, Left+Width) x [Top, Top+Height).
type Rectangle struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rectangle) Bounds() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height)
}

func (r Rectangle) Area() int {
	return r.Width * r.Height
}

func (r Rectangle) Overlaps(o Rectangle) bool {
	return !(r.Left+r.Width <= o.Left || o.Left+o.Width <= r.Left ||
		r.Top+r.Height <= o.Top || o.Top+o.Height <= r.Top)
}

type DiffResult struct {
	Image      image.Image
	DiffAmount float64
	Rectangles []Rectangle
}

type Differ interface {
	Calculate(baseline image.Image, target image.Image) (*DiffResult, error)
}
