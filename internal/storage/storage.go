package storage

import (
	"context"
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

var ErrNotFound = xerrors.New("object not found")

type Storage interface {
	// Put stores data with the given key and returns the storage URL
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Get retrieves data from the given storage URL
	Get(ctx context.Context, url string) ([]byte, error)
}

// Config selects and configures a backend. Backend is "file" or "s3".
type Config struct {
	Backend   string
	Directory string
	Bucket    string
}

func New(ctx context.Context, c Config) (Storage, error) {
	switch c.Backend {
	case "", "file":
		return NewFileStorage(ctx, FileConfig{Directory: c.Directory})
	case "s3":
		return NewS3Storage(ctx, S3Config{Bucket: c.Bucket})
	default:
		return nil, xerrors.Errorf("unknown storage backend: %s", c.Backend)
	}
}

// DiffKey names the artifact rendered for a baseline/target pair. Keys of
// the same pair share a prefix and sort by time.
func DiffKey(baseline string, target string, at time.Time, ext string) string {
	h := sha256.New()
	h.Write([]byte(baseline + target))
	hash := fmt.Sprintf("%x", h.Sum(nil))[:16]

	name := strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))
	return fmt.Sprintf("ChangeDetector/diff/%s/%s-%s.%s", hash, name, at.Format("20060102150405"), ext)
}
