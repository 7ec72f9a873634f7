// Package blobtest provides an in-memory blob.Store with failure injection for tests.
package blobtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"campushub/internal/blob"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("injected storage failure")

// Memory records every call in order.
type Memory struct {
	mu         sync.Mutex
	Objects    map[string][]byte
	Calls      []string
	FailUpload bool
	FailDelete bool
	seq        int
}

func New() *Memory {
	return &Memory{Objects: map[string][]byte{}}
}

func key(bucket, path string) string { return bucket + "/" + path }

func (m *Memory) Upload(_ context.Context, bucket, filename, _ string, r io.Reader) (blob.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "upload:"+bucket+"/"+filename)
	if m.FailUpload {
		return blob.Object{}, ErrInjected
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return blob.Object{}, err
	}
	m.seq++
	path := fmt.Sprintf("%d-%s", m.seq, filename)
	m.Objects[key(bucket, path)] = data
	return blob.Object{URL: "https://cdn.test/" + key(bucket, path), Path: path}, nil
}

func (m *Memory) Delete(_ context.Context, bucket, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "delete:"+key(bucket, path))
	if m.FailDelete {
		return ErrInjected
	}
	delete(m.Objects, key(bucket, path))
	return nil
}

func (m *Memory) PublicURL(_ context.Context, bucket, path string) (string, error) {
	if path == "" {
		return "", blob.ErrEmptyPath
	}
	return "https://cdn.test/" + key(bucket, path), nil
}

// Has reports whether the object exists.
func (m *Memory) Has(bucket, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Objects[key(bucket, path)]
	return ok
}

// CallLog returns a copy of the recorded calls.
func (m *Memory) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}
