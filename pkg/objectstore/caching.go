// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package objectstore

import (
	"context"
	"sync"
)

// CachingJSONStorage fronts a remote JsonStorage with a local one: manifests
// are read far more often than written, so the coordinator
// keeps a local copy and only falls back to remote on a cache miss. Once an
// upload has written through to both, the cache is authoritative for
// download, while listing always goes to remote; delete invalidates both. Concurrent cache misses may both
// fetch the same name from remote before either populates the cache -- that
// is harmless here because documents are immutable once named, so the two
// writes race to store identical bytes.
type CachingJSONStorage struct {
	local  JsonStorage
	remote JsonStorage

	mu sync.Mutex
}

// NewCachingJSONStorage builds a CachingJSONStorage fronting remote with local.
func NewCachingJSONStorage(local, remote JsonStorage) *CachingJSONStorage {
	return &CachingJSONStorage{local: local, remote: remote}
}

// UploadJSON writes through to both local and remote, remote first so a
// crash between the two leaves the cache cold rather than claiming a
// document exists that was never durably stored.
func (c *CachingJSONStorage) UploadJSON(ctx context.Context, name string, data []byte) error {
	if err := c.remote.UploadJSON(ctx, name, data); err != nil {
		return err
	}
	return c.local.UploadJSON(ctx, name, data)
}

// DownloadJSON serves from local if present, otherwise fetches from remote
// and populates local for next time.
func (c *CachingJSONStorage) DownloadJSON(ctx context.Context, name string) ([]byte, error) {
	if data, err := c.local.DownloadJSON(ctx, name); err == nil {
		return data, nil
	}

	data, err := c.remote.DownloadJSON(ctx, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	_ = c.local.UploadJSON(ctx, name, data)
	c.mu.Unlock()

	return data, nil
}

// ListJSON lists from remote, the source of truth for what names exist;
// the local cache may be a strict subset (not yet fetched) and must never
// be treated as authoritative for listing.
func (c *CachingJSONStorage) ListJSON(ctx context.Context) ([]string, error) {
	return c.remote.ListJSON(ctx)
}

// DeleteJSON invalidates both copies. A missing local entry is not an error;
// the point is to ensure nothing stale remains cached.
func (c *CachingJSONStorage) DeleteJSON(ctx context.Context, name string) error {
	if err := c.remote.DeleteJSON(ctx, name); err != nil {
		return err
	}
	_ = c.local.DeleteJSON(ctx, name)
	return nil
}
