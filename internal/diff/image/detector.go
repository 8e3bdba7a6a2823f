package image

import (
	"fmt"
	"image"

	"golang.org/x/xerrors"
)

// Detector finds the rectangles covering the pixels that differ between two
// sources. A Detector holds no per-comparison state and may be shared.
type Detector struct {
	comparator Comparator
	vectorized bool
}

// NewDetector returns a Detector using comparator. With vectorized set, rows
// are first compared BlockSize pixels at a time and blocks that are
// bit-identical are skipped; the result is the same either way.
func NewDetector(comparator Comparator, vectorized bool) *Detector {
	return &Detector{
		comparator: comparator,
		vectorized: vectorized,
	}
}

// Compare reports the regions in which target differs from baseline by more
// than tolerance, a fraction of the largest possible RGBA distance.
func Compare(baseline PixelSource, target PixelSource, tolerance float64) ([]Rectangle, error) {
	comparator, err := NewToleranceComparator(tolerance)
	if err != nil {
		return nil, err
	}

	return NewDetector(comparator, true).DetectChanges(baseline, target), nil
}

// DetectChanges returns the strips only target has, followed by the
// rectangles found in the overlap in row-major discovery order.
func (d *Detector) DetectChanges(baseline PixelSource, target PixelSource) []Rectangle {
	if baseline.Width() < 0 || baseline.Height() < 0 || target.Width() < 0 || target.Height() < 0 {
		panic(fmt.Sprintf("negative source size %dx%d vs %dx%d", baseline.Width(), baseline.Height(), target.Width(), target.Height()))
	}

	rectangles := boundaryStrips(baseline.Width(), baseline.Height(), target.Width(), target.Height())

	switch b := baseline.(type) {
	case *MatrixSource:
		if t, ok := target.(*MatrixSource); ok {
			return detect(b, t, d.comparator, d.blockEqual(bulkBlockEqual(b, t)), rectangles)
		}
	case *PointerSource:
		if t, ok := target.(*PointerSource); ok {
			return detect(b, t, d.comparator, d.blockEqual(bulkBlockEqual(b, t)), rectangles)
		}
	}

	return detect(baseline, target, d.comparator, d.blockEqual(naiveBlockEqual(baseline, target)), rectangles)
}

func (d *Detector) blockEqual(f blockEqualFunc) blockEqualFunc {
	if !d.vectorized {
		return nil
	}
	return f
}

func detect[S PixelSource](baseline S, target S, comparator Comparator, blockEqual blockEqualFunc, rectangles []Rectangle) []Rectangle {
	return newScanner(baseline, target, comparator, blockEqual, rectangles).scan()
}

// CompareImages acquires a source for each image from factory, runs detector
// over them and releases both sources before returning.
func CompareImages(baseline image.Image, target image.Image, factory SourceFactory, detector *Detector) ([]Rectangle, error) {
	baselineSource, err := factory.Acquire(baseline)
	if err != nil {
		return nil, xerrors.Errorf("failed to acquire baseline pixels: %w", err)
	}
	defer baselineSource.Close()

	targetSource, err := factory.Acquire(target)
	if err != nil {
		return nil, xerrors.Errorf("failed to acquire target pixels: %w", err)
	}
	defer targetSource.Close()

	return detector.DetectChanges(baselineSource, targetSource), nil
}
