package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Local keeps objects on disk under root/<bucket>/<path> and serves them from baseURL/files.
type Local struct {
	root    string
	baseURL string
}

// NewLocal creates the root directory if needed.
func NewLocal(root, baseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Resolve maps bucket/path onto a file under root, rejecting traversal.
func (l *Local) Resolve(bucket, p string) (string, error) {
	if p == "" {
		return "", ErrEmptyPath
	}
	clean := filepath.Clean("/" + filepath.FromSlash(p))
	if bucket == "" || strings.ContainsAny(bucket, `/\.`) {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	return filepath.Join(l.root, bucket, clean), nil
}

func (l *Local) Upload(ctx context.Context, bucket, filename, _ string, r io.Reader) (Object, error) {
	name := ObjectName(filename)
	dst, err := l.Resolve(bucket, name)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Object{}, err
	}
	f, err := os.Create(dst)
	if err != nil {
		return Object{}, fmt.Errorf("local upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(dst)
		return Object{}, fmt.Errorf("local upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return Object{}, err
	}
	u, _ := l.PublicURL(ctx, bucket, name)
	return Object{URL: u, Path: name}, nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (l *Local) Delete(_ context.Context, bucket, p string) error {
	dst, err := l.Resolve(bucket, p)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("local delete: %w", err)
	}
	return nil
}

func (l *Local) PublicURL(_ context.Context, bucket, p string) (string, error) {
	if p == "" {
		return "", ErrEmptyPath
	}
	return l.baseURL + "/files/" + url.PathEscape(bucket) + "/" + strings.TrimLeft(p, "/"), nil
}
