package image_test

import (
	diffimage "change-detector/internal/diff/image"
	"errors"
	"fmt"
	"image"
	"math"
	"math/rand"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDetectChanges(t *testing.T) {
	base := [][]uint32{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}

	type in struct {
		baseline [][]uint32
		target   [][]uint32
	}

	type want struct {
		first []diffimage.Rectangle
	}

	tests := []struct {
		name string
		in   in
		want want
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				base,
				[][]uint32{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}},
			},
			want{
				[]diffimage.Rectangle{},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				base,
				[][]uint32{{0, 0, 0}, {0, 1, 0}, {0, 0, 0}},
			},
			want{
				[]diffimage.Rectangle{{Left: 1, Top: 1, Width: 1, Height: 1}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				base,
				[][]uint32{{0, 0, 0}, {0, 1, 1}, {0, 0, 0}},
			},
			want{
				[]diffimage.Rectangle{{Left: 1, Top: 1, Width: 2, Height: 1}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				base,
				[][]uint32{{0, 0, 0}, {0, 1, 1}, {0, 1, 1}},
			},
			want{
				[]diffimage.Rectangle{{Left: 1, Top: 1, Width: 2, Height: 2}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				base,
				[][]uint32{{1, 0, 1}, {0, 0, 0}, {0, 0, 0}},
			},
			want{
				[]diffimage.Rectangle{
					{Left: 0, Top: 0, Width: 1, Height: 1},
					{Left: 2, Top: 0, Width: 1, Height: 1},
				},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				base,
				[][]uint32{{0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
			},
			want{
				[]diffimage.Rectangle{
					{Left: 0, Top: 3, Width: 4, Height: 1},
					{Left: 3, Top: 0, Width: 1, Height: 3},
				},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				[][]uint32{{0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
				base,
			},
			want{
				[]diffimage.Rectangle{},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				base,
				[][]uint32{{0, 0, 0, 0, 0}, {0, 1, 0, 0, 0}, {0, 0, 0, 0, 0}},
			},
			want{
				[]diffimage.Rectangle{
					{Left: 3, Top: 0, Width: 2, Height: 3},
					{Left: 1, Top: 1, Width: 1, Height: 1},
				},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				[][]uint32{{0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
				[][]uint32{{0, 1, 1, 0}, {1, 1, 1, 1}, {0, 0, 0, 0}},
			},
			want{
				[]diffimage.Rectangle{
					{Left: 1, Top: 0, Width: 2, Height: 2},
					{Left: 0, Top: 1, Width: 1, Height: 1},
					{Left: 3, Top: 1, Width: 1, Height: 1},
				},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				[][]uint32{{0, 0}, {0, 0}, {0, 0}, {0, 0}},
				[][]uint32{{0, 0, 0, 0}, {0, 0, 0, 0}},
			},
			want{
				// The width strip spans the baseline height, not the target's.
				[]diffimage.Rectangle{{Left: 2, Top: 0, Width: 2, Height: 4}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				[][]uint32{},
				[][]uint32{},
			},
			want{
				[]diffimage.Rectangle{},
			},
		},
	}

	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		for _, vectorized := range []bool{false, true} {
			vectorized := vectorized
			t.Run(fmt.Sprintf("%s/vectorized=%t", name, vectorized), func(t *testing.T) {
				t.Parallel()
				detector := diffimage.NewDetector(diffimage.ExactComparator{}, vectorized)
				got := detector.DetectChanges(diffimage.NewMatrixSourceFromRows(in.baseline), diffimage.NewMatrixSourceFromRows(in.target))
				if diff := cmp.Diff(want.first, got); diff != "" {
					t.Errorf("(-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestDetectChangesAgreesAcrossStrategies(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	comparator, err := diffimage.NewToleranceComparator(0.01)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, size := range [][2]int{{1, 1}, {7, 3}, {8, 8}, {9, 5}, {16, 4}, {33, 17}, {64, 48}, {101, 37}} {
		baseline, target := noisyPair(r, size[0], size[1])

		var reference []diffimage.Rectangle
		for _, name := range []string{"matrix", "pointer", "image"} {
			for _, vectorized := range []bool{false, true} {
				got := diffimage.NewDetector(comparator, vectorized).DetectChanges(
					acquire(t, factories[name], baseline),
					acquire(t, factories[name], target),
				)

				if reference == nil {
					reference = got
					assertValidCover(t, comparator, baseline, target, got)
					continue
				}
				if diff := cmp.Diff(reference, got); diff != "" {
					t.Errorf("case %d %s vectorized=%t (-want +got):\n%s", i, name, vectorized, diff)
				}
			}
		}
	}
}

func TestDetectChangesMixedSources(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	baseline, target := noisyPair(r, 40, 20)
	detector := diffimage.NewDetector(diffimage.ExactComparator{}, true)

	want := detector.DetectChanges(acquire(t, factories["matrix"], baseline), acquire(t, factories["matrix"], target))
	got := detector.DetectChanges(acquire(t, factories["pointer"], baseline), acquire(t, factories["image"], target))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestDetectChangesIsDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	baseline, target := noisyPair(r, 50, 30)
	detector := diffimage.NewDetector(diffimage.ExactComparator{}, true)

	first := detector.DetectChanges(acquire(t, factories["matrix"], baseline), acquire(t, factories["matrix"], target))
	for i := 0; i < 5; i++ {
		got := detector.DetectChanges(acquire(t, factories["matrix"], baseline), acquire(t, factories["matrix"], target))
		if diff := cmp.Diff(first, got); diff != "" {
			t.Fatalf("run %d (-want +got):\n%s", i, diff)
		}
	}
}

func TestDetectChangesSingleDifferingPixel(t *testing.T) {
	const width, height = 21, 13
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			baseline := make([]uint32, width*height)
			target := make([]uint32, width*height)
			target[y*width+x] = 0xff000000

			got := diffimage.NewDetector(diffimage.ExactComparator{}, true).DetectChanges(
				diffimage.NewMatrixSource(baseline, width, height),
				diffimage.NewMatrixSource(target, width, height),
			)
			want := []diffimage.Rectangle{{Left: x, Top: y, Width: 1, Height: 1}}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("pixel (%d, %d) (-want +got):\n%s", x, y, diff)
			}
		}
	}
}

func TestCompare(t *testing.T) {
	baseline := diffimage.NewMatrixSourceFromRows([][]uint32{{0xff000000, 0xff000000}})
	target := diffimage.NewMatrixSourceFromRows([][]uint32{{0xff000000, 0xffff0000}})

	got, err := diffimage.Compare(baseline, target, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]diffimage.Rectangle{}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	got, err = diffimage.Compare(baseline, target, 0.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]diffimage.Rectangle{{Left: 1, Top: 0, Width: 1, Height: 1}}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	for _, tolerance := range []float64{-0.1, 1.1, math.NaN()} {
		if _, err := diffimage.Compare(baseline, target, tolerance); !errors.Is(err, diffimage.ErrInvalidConfiguration) {
			t.Errorf("tolerance %v: expected ErrInvalidConfiguration, got %v", tolerance, err)
		}
	}
}

func TestCompareImagesReportsAcquisitionFailure(t *testing.T) {
	detector := diffimage.NewDetector(diffimage.ExactComparator{}, true)
	for name, factory := range factories {
		if _, err := diffimage.CompareImages(nil, grid([][]uint32{{0}}), factory, detector); !errors.Is(err, diffimage.ErrResourceAcquisition) {
			t.Errorf("%s: expected ErrResourceAcquisition, got %v", name, err)
		}
		if _, err := diffimage.CompareImages(grid([][]uint32{{0}}), nil, factory, detector); !errors.Is(err, diffimage.ErrResourceAcquisition) {
			t.Errorf("%s: expected ErrResourceAcquisition, got %v", name, err)
		}
	}
}

// assertValidCover checks that rectangles are disjoint, lie inside the
// overlap and cover every pixel the comparator reports as changed.
func assertValidCover(t *testing.T, comparator diffimage.Comparator, baseline *image.NRGBA, target *image.NRGBA, rectangles []diffimage.Rectangle) {
	t.Helper()

	width := min(baseline.Bounds().Dx(), target.Bounds().Dx())
	height := min(baseline.Bounds().Dy(), target.Bounds().Dy())

	for i, a := range rectangles {
		if a.Left < 0 || a.Top < 0 || a.Left+a.Width > width || a.Top+a.Height > height {
			t.Errorf("rectangle %+v exceeds %dx%d", a, width, height)
		}
		for _, b := range rectangles[i+1:] {
			if a.Overlaps(b) {
				t.Errorf("rectangles %+v and %+v overlap", a, b)
			}
		}
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			b, c := baseline.NRGBAAt(x, y), target.NRGBAAt(x, y)
			if comparator.Equal(diffimage.Color{R: b.R, G: b.G, B: b.B, A: b.A}, diffimage.Color{R: c.R, G: c.G, B: c.B, A: c.A}) {
				continue
			}
			covered := false
			for _, r := range rectangles {
				if image.Pt(x, y).In(r.Bounds()) {
					covered = true
					break
				}
			}
			if !covered {
				t.Errorf("changed pixel (%d, %d) is not covered", x, y)
			}
		}
	}
}

type trackedSource struct {
	diffimage.PixelSource
	closed *int
}

func (s trackedSource) Close() error {
	*s.closed++
	return nil
}

// countingFactory counts releases of the sources it hands out. The failAt-th
// Acquire fails; with negative set every source reports a negative width.
type countingFactory struct {
	failAt   int
	negative bool
	acquired int
	closed   int
}

func (f *countingFactory) Acquire(img image.Image) (diffimage.ReleasableSource, error) {
	f.acquired++
	if f.acquired == f.failAt {
		return nil, fmt.Errorf("acquire %d: %w", f.acquired, diffimage.ErrResourceAcquisition)
	}
	if f.negative {
		return trackedSource{negativeSource{}, &f.closed}, nil
	}
	source, err := diffimage.MatrixFactory{}.Acquire(img)
	if err != nil {
		return nil, err
	}
	return trackedSource{source, &f.closed}, nil
}

func TestCompareImagesReleasesSources(t *testing.T) {
	detector := diffimage.NewDetector(diffimage.ExactComparator{}, true)
	img := grid([][]uint32{{0, 1}, {1, 0}})

	type counts struct {
		acquired int
		closed   int
		err      bool
	}

	tests := []struct {
		name    string
		factory *countingFactory
		want    counts
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			&countingFactory{},
			counts{2, 2, false},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			&countingFactory{failAt: 1},
			counts{1, 0, true},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			&countingFactory{failAt: 2},
			counts{2, 1, true},
		},
	}

	for _, tt := range tests {
		name := tt.name
		factory := tt.factory
		want := tt.want
		t.Run(name, func(t *testing.T) {
			_, err := diffimage.CompareImages(img, img, factory, detector)
			if want.err && !errors.Is(err, diffimage.ErrResourceAcquisition) {
				t.Errorf("expected ErrResourceAcquisition, got %v", err)
			}
			got := counts{factory.acquired, factory.closed, err != nil}
			if diff := cmp.Diff(want, got, cmp.AllowUnexported(counts{})); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompareImagesReleasesSourcesOnPanic(t *testing.T) {
	factory := &countingFactory{negative: true}
	detector := diffimage.NewDetector(diffimage.ExactComparator{}, false)
	img := grid([][]uint32{{0}})

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected a panic for a negative source size")
			}
		}()
		_, _ = diffimage.CompareImages(img, img, factory, detector)
	}()

	if diff := cmp.Diff(2, factory.closed); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
