// Package blob stores uploaded files (images, PDFs, spreadsheets) in per-entity buckets.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"campushub/internal/metrics"
)

// Object is a stored file: the public URL saved in a row and the path used to delete it.
type Object struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// Store is implemented by every storage backend.
type Store interface {
	Upload(ctx context.Context, bucket, filename, contentType string, r io.Reader) (Object, error)
	Delete(ctx context.Context, bucket, path string) error
	PublicURL(ctx context.Context, bucket, path string) (string, error)
}

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrEmptyPath       = errors.New("empty object path")
)

// xlsx files are zip containers and sniff as such when the extension is missing.
var allowedTypes = map[string]bool{
	"image/jpeg":               true,
	"image/png":                true,
	"image/webp":               true,
	"image/gif":                true,
	"application/pdf":          true,
	"text/csv":                 true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// Sniff detects the content type of data and reports whether it may be stored.
func Sniff(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		base, _, _ := strings.Cut(m.String(), ";")
		if allowedTypes[base] {
			return base, nil
		}
	}
	return mt.String(), fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
}

// IsImage reports whether the content type is an image.
func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

// ObjectName builds a collision-free object name keeping the original extension.
func ObjectName(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 10 {
		ext = ""
	}
	return uuid.NewString() + ext
}

// Instrumented records storage metrics around another Store.
type Instrumented struct {
	Store Store
}

func (s Instrumented) Upload(ctx context.Context, bucket, filename, contentType string, r io.Reader) (Object, error) {
	obj, err := s.Store.Upload(ctx, bucket, filename, contentType, r)
	metrics.StorageOps.WithLabelValues(bucket, "upload", metrics.Outcome(err)).Inc()
	return obj, err
}

func (s Instrumented) Delete(ctx context.Context, bucket, path string) error {
	err := s.Store.Delete(ctx, bucket, path)
	metrics.StorageOps.WithLabelValues(bucket, "delete", metrics.Outcome(err)).Inc()
	return err
}

func (s Instrumented) PublicURL(ctx context.Context, bucket, path string) (string, error) {
	return s.Store.PublicURL(ctx, bucket, path)
}
