// Package uploadcache implements the content-addressed function
// upload cache: a fingerprint-to-functionId map that guarantees
// at-most-one upload per fingerprint, even under concurrent callers,
// by coalescing concurrent requests for the same fingerprint onto a
// single in-flight upload.
package uploadcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/faas"
)

// Uploader performs the actual remote upload (POST /daas/upload in
// the Cognit Frontend contract). It is implemented by the Cognit
// Frontend Adapter; the cache does not know about HTTP.
type Uploader interface {
	UploadFunction(ctx context.Context, c faas.Callable, fingerprint string) (int, error)
}

type inflight struct {
	done chan struct{}
	id   int
	err  error
}

// Cache maps fingerprints to fabric-assigned function IDs. Entries are
// never evicted during a process's lifetime, per spec.
type Cache struct {
	mu      sync.Mutex
	entries map[string]int
	pending map[string]*inflight
}

// New creates an empty upload cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]int),
		pending: make(map[string]*inflight),
	}
}

// Fingerprint computes the content hash used as the cache key: the
// hex SHA-256 digest of the serialized function payload (Design Note
// (b): hash of the serialized bytes, not of a host code object).
func Fingerprint(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached function ID for fingerprint, if present.
func (c *Cache) Lookup(fingerprint string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[fingerprint]
	return id, ok
}

// LookupOrUpload returns the cached function ID for fn, uploading it
// via uploader if this is the fingerprint's first appearance. Callers
// racing on the same fingerprint are coalesced onto one upload; only
// the winner calls uploader.UploadFunction.
func (c *Cache) LookupOrUpload(ctx context.Context, uploader Uploader, fn faas.Callable) (int, error) {
	fingerprint := Fingerprint(fn.Payload)

	c.mu.Lock()
	if id, ok := c.entries[fingerprint]; ok {
		c.mu.Unlock()
		return id, nil
	}
	if p, ok := c.pending[fingerprint]; ok {
		c.mu.Unlock()
		<-p.done
		return p.id, p.err
	}

	p := &inflight{done: make(chan struct{})}
	c.pending[fingerprint] = p
	c.mu.Unlock()

	id, err := uploader.UploadFunction(ctx, fn, fingerprint)

	c.mu.Lock()
	if err == nil {
		c.entries[fingerprint] = id
	}
	delete(c.pending, fingerprint)
	p.id, p.err = id, err
	close(p.done)
	c.mu.Unlock()

	return id, err
}
