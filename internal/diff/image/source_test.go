package image_test

import (
	diffimage "change-detector/internal/diff/image"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
)

func TestSourcesAgree(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	nrgba, _ := noisyPair(r, 19, 11)

	rgba := image.NewRGBA(nrgba.Bounds())
	for y := 0; y < 11; y++ {
		for x := 0; x < 19; x++ {
			c := nrgba.NRGBAAt(x, y)
			c.A = 255
			nrgba.SetNRGBA(x, y, c)
			rgba.Set(x, y, c)
		}
	}

	for _, img := range []image.Image{nrgba, rgba} {
		want := acquire(t, factories["image"], img)
		for _, name := range []string{"matrix", "pointer"} {
			got := acquire(t, factories[name], img)
			if got.Width() != want.Width() || got.Height() != want.Height() {
				t.Fatalf("%s: size %dx%d, want %dx%d", name, got.Width(), got.Height(), want.Width(), want.Height())
			}
			for y := 0; y < want.Height(); y++ {
				for x := 0; x < want.Width(); x++ {
					if diff := cmp.Diff(want.PixelAt(x, y), got.PixelAt(x, y)); diff != "" {
						t.Fatalf("%s: pixel (%d, %d) (-want +got):\n%s", name, x, y, diff)
					}
				}
			}
		}
	}
}

func TestSourcesHonorSubImageOrigin(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	img.SetNRGBA(5, 6, color.NRGBA{R: 1, G: 2, B: 3, A: 4})
	sub := img.SubImage(image.Rect(4, 4, 10, 10))

	for name, factory := range factories {
		source := acquire(t, factory, sub)
		if source.Width() != 6 || source.Height() != 6 {
			t.Errorf("%s: size %dx%d, want 6x6", name, source.Width(), source.Height())
		}
		if diff := cmp.Diff(diffimage.Color{R: 1, G: 2, B: 3, A: 4}, source.PixelAt(1, 2)); diff != "" {
			t.Errorf("%s (-want +got):\n%s", name, diff)
		}
	}
}

func TestMatrixSourceBlockAt(t *testing.T) {
	pix := make([]uint32, 10*2)
	for i := range pix {
		pix[i] = uint32(i)
	}
	source := diffimage.NewMatrixSource(pix, 10, 2)

	want := diffimage.Block{12, 13, 14, 15, 16, 17, 18, 19}
	if diff := cmp.Diff(want, source.BlockAt(2, 1)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestPointerSourceReadsStride(t *testing.T) {
	const width, height, stride = 9, 2, 40
	buf := make([]byte, stride*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			copy(buf[y*stride+x*4:], []byte{uint8(x), uint8(y), 7, 255})
		}
	}
	source := diffimage.NewPointerSource(unsafe.Pointer(&buf[0]), width, height, stride)

	if diff := cmp.Diff(diffimage.Color{R: 8, G: 1, B: 7, A: 255}, source.PixelAt(8, 1)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	other := make([]byte, len(buf))
	copy(other, buf)
	if source.BlockAt(1, 1) != diffimage.NewPointerSource(unsafe.Pointer(&other[0]), width, height, stride).BlockAt(1, 1) {
		t.Errorf("identical memory produced different blocks")
	}
	other[stride+4*5] ^= 1
	if source.BlockAt(1, 1) == diffimage.NewPointerSource(unsafe.Pointer(&other[0]), width, height, stride).BlockAt(1, 1) {
		t.Errorf("changed memory produced equal blocks")
	}
}

func TestSourcesPanicOutOfRange(t *testing.T) {
	img := uniform(4, 3, color.Black)
	for name, factory := range factories {
		source := acquire(t, factory, img)
		for _, p := range []image.Point{{-1, 0}, {0, -1}, {4, 0}, {0, 3}} {
			func() {
				defer func() {
					if recover() == nil {
						t.Errorf("%s: expected panic reading %v", name, p)
					}
				}()
				source.PixelAt(p.X, p.Y)
			}()
		}
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic reading a block past the row end")
			}
		}()
		diffimage.NewMatrixSource(make([]uint32, 12), 4, 3).BlockAt(0, 0)
	}()
}

func TestNewMatrixSourceRejectsRaggedRows(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic")
		}
	}()
	diffimage.NewMatrixSourceFromRows([][]uint32{{0, 0}, {0}})
}

func TestDetectChangesPanicsOnNegativeSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic")
		}
	}()
	diffimage.NewDetector(diffimage.ExactComparator{}, false).DetectChanges(negativeSource{}, negativeSource{})
}

type negativeSource struct{}

func (negativeSource) Width() int {
	return -1
}

func (negativeSource) Height() int {
	return 1
}

func (negativeSource) PixelAt(x int, y int) diffimage.Color {
	return diffimage.Color{}
}

func TestFactoryByName(t *testing.T) {
	for _, name := range []string{"matrix", "pointer", "image"} {
		factory, err := diffimage.FactoryByName(name)
		if err != nil {
			t.Errorf("%s: unexpected error %v", name, err)
		}
		if diff := cmp.Diff(factories[name], factory); diff != "" {
			t.Errorf("%s (-want +got):\n%s", name, diff)
		}
	}

	if _, err := diffimage.FactoryByName("bitmap"); !errors.Is(err, diffimage.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestAcquireEmptyImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 0, 2))
	detector := diffimage.NewDetector(diffimage.ExactComparator{}, true)
	for name, factory := range factories {
		got, err := diffimage.CompareImages(img, uniform(2, 2, color.White), factory, detector)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		want := []diffimage.Rectangle{{Left: 0, Top: 0, Width: 2, Height: 2}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s (-want +got):\n%s", name, diff)
		}
	}
}
