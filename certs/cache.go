package certs

import (
	"context"
	"sync"

	"github.com/goliatone/go-sns-webhook/core"
)

// MemoryCache is a process-local core.CertificateCache. Entries never expire;
// use ServiceCachedSource when TTL semantics matter.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

var _ core.CertificateCache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string][]byte{}}
}

func (c *MemoryCache) Get(_ context.Context, certURL string) ([]byte, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	stored, ok := c.entries[certURL]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(stored))
	copy(out, stored)
	return out, true, nil
}

func (c *MemoryCache) Set(_ context.Context, certURL string, pemBytes []byte) error {
	if c == nil {
		return nil
	}
	stored := make([]byte, len(pemBytes))
	copy(stored, pemBytes)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string][]byte{}
	}
	c.entries[certURL] = stored
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, certURL string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, certURL)
}
