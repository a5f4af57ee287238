// Package blob stores attachment files and hands out time-limited links to
// them.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"livrocaixa/internal/core"
)

// Store is the attachment blob store.
type Store interface {
	Put(ctx context.Context, path, contentType string, r io.Reader) error
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// Object is a stored blob held by Memory.
type Object struct {
	ContentType string
	Data        []byte
}

// Memory keeps blobs in process memory; its signed URLs use the memory://
// scheme and carry the expiry as a query parameter.
type Memory struct {
	mu      sync.Mutex
	objects map[string]Object
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object), now: time.Now}
}

func (m *Memory) Put(ctx context.Context, path, contentType string, r io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("read blob %s: %w", path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = Object{ContentType: contentType, Data: buf.Bytes()}
	return nil
}

func (m *Memory) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return "", fmt.Errorf("blob %s: %w", path, core.ErrNotFound)
	}
	u := url.URL{Scheme: "memory", Path: "/" + path}
	u.RawQuery = url.Values{"expires": {fmt.Sprint(m.now().Add(ttl).Unix())}}.Encode()
	return u.String(), nil
}

// Get returns a stored blob.
func (m *Memory) Get(path string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[path]
	return o, ok
}
