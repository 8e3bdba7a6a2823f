package loader

import (
	"bytes"
	diffimage "change-detector/internal/diff/image"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/xerrors"
)

var extensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
	".webp": {},
}

// IsImage reports whether path has the extension of a decodable format.
func IsImage(path string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Decode reads one image from r and returns it with its format name.
// Failures wrap diffimage.ErrResourceAcquisition.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", xerrors.Errorf("failed to decode image: %v: %w", err, diffimage.ErrResourceAcquisition)
	}
	return img, format, nil
}

func DecodeBytes(data []byte) (image.Image, error) {
	img, _, err := Decode(bytes.NewReader(data))
	return img, err
}

func Load(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open %s: %v: %w", path, err, diffimage.ErrResourceAcquisition)
	}
	defer file.Close()

	img, _, err := Decode(file)
	if err != nil {
		return nil, xerrors.Errorf("failed to load %s: %w", path, err)
	}
	return img, nil
}
