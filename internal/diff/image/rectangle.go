package image

import (
	"image"
	"image/color"
	"image/draw"
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// RectangleDiff outlines every changed region on a copy of the target image.
type RectangleDiff struct {
	detector    *Detector
	factory     SourceFactory
	strokeColor color.Color
	strokeWidth int
	vectorized  bool
}

type RectangleDiffOption func(*RectangleDiff)

func WithStrokeColor(c color.Color) RectangleDiffOption {
	return func(r *RectangleDiff) {
		r.strokeColor = c
	}
}

func WithStrokeWidth(width int) RectangleDiffOption {
	return func(r *RectangleDiff) {
		r.strokeWidth = width
	}
}

func WithSourceFactory(factory SourceFactory) RectangleDiffOption {
	return func(r *RectangleDiff) {
		r.factory = factory
	}
}

func WithVectorized(vectorized bool) RectangleDiffOption {
	return func(r *RectangleDiff) {
		r.vectorized = vectorized
	}
}

func NewRectangleDiff(tolerance float64, opts ...RectangleDiffOption) (*RectangleDiff, error) {
	r := &RectangleDiff{
		factory:     MatrixFactory{},
		strokeColor: color.RGBA{R: 255, A: 255}, // Red color for rectangles
		strokeWidth: 1,
		vectorized:  true,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.strokeWidth < 1 {
		return nil, xerrors.Errorf("stroke width must be positive, got %d: %w", r.strokeWidth, ErrInvalidConfiguration)
	}
	if r.factory == nil || r.strokeColor == nil {
		return nil, xerrors.Errorf("source factory and stroke color are required: %w", ErrInvalidConfiguration)
	}

	comparator, err := NewToleranceComparator(tolerance)
	if err != nil {
		return nil, err
	}
	r.detector = NewDetector(comparator, r.vectorized)

	return r, nil
}

func (r *RectangleDiff) Calculate(baseline image.Image, target image.Image) (*DiffResult, error) {
	if baseline == nil || target == nil {
		return nil, xerrors.Errorf("nil image: %w", ErrResourceAcquisition)
	}

	if sameImage(baseline, target) {
		return &DiffResult{
			Image:      target,
			DiffAmount: 0.0,
			Rectangles: []Rectangle{},
		}, nil
	}

	rectangles, err := CompareImages(baseline, target, r.factory, r.detector)
	if err != nil {
		return nil, err
	}

	bounds := target.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Bounds(), target, bounds.Min, draw.Src)

	for _, rect := range rectangles {
		r.drawOutline(result, rect)
	}

	return &DiffResult{
		Image:      result,
		DiffAmount: r.calculateDiffAmount(baseline.Bounds(), bounds, rectangles),
		Rectangles: rectangles,
	}, nil
}

// sameImage reports whether a and b are the same image value. Images of
// non-comparable types are never treated as the same.
func sameImage(a image.Image, b image.Image) bool {
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}
	return a == b
}

// drawOutline strokes the border of rect like a one pixel pen would: on the
// first row and column of rect and just past its last row and column. Wider
// strokes grow outwards. Pixels outside img are dropped by Set.
func (r *RectangleDiff) drawOutline(img *image.RGBA, rect Rectangle) {
	for thickness := 0; thickness < r.strokeWidth; thickness++ {
		left := rect.Left - thickness
		top := rect.Top - thickness
		right := rect.Left + rect.Width + thickness
		bottom := rect.Top + rect.Height + thickness

		for x := left; x <= right; x++ {
			img.Set(x, top, r.strokeColor)
			img.Set(x, bottom, r.strokeColor)
		}

		for y := top; y <= bottom; y++ {
			img.Set(left, y, r.strokeColor)
			img.Set(right, y, r.strokeColor)
		}
	}
}

func (r *RectangleDiff) calculateDiffAmount(baseline image.Rectangle, target image.Rectangle, rectangles []Rectangle) float64 {
	totalDiffArea := 0
	for _, rect := range rectangles {
		totalDiffArea += rect.Area()
	}

	totalArea := max(baseline.Dx(), target.Dx()) * max(baseline.Dy(), target.Dy())
	if totalArea == 0 {
		return 0.0
	}

	return float64(totalDiffArea) / float64(totalArea)
}

// ParseHexColor parses "#rrggbb" or "#rrggbbaa"; the leading '#' is optional.
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, xerrors.Errorf("invalid color %q: %w", s, ErrInvalidConfiguration)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, xerrors.Errorf("invalid color %q: %w", s, ErrInvalidConfiguration)
	}

	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}
