// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package objectstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/content/memory"
)

// MemoryBackend is an in-process Backend built on oras-go's content/memory
// store, used by unit tests and by the local half of CachingJSONStorage.
// oras-go's content.Storage interface has no delete or enumerate
// operations (registries are normally append-only), so MemoryBackend keeps
// its own index alongside the underlying store to support ListHexdigests,
// ListJSON, and Delete*.
type MemoryBackend struct {
	store *memory.Store

	mu       sync.Mutex
	blobs    map[string]int64 // hexdigest -> size
	docNames map[string]bool
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		store:    memory.New(),
		blobs:    make(map[string]int64),
		docNames: make(map[string]bool),
	}
}

func (m *MemoryBackend) UploadHexdigest(ctx context.Context, hexdigest string, size int64, data io.Reader) error {
	m.mu.Lock()
	_, known := m.blobs[hexdigest]
	m.mu.Unlock()
	if known {
		return nil // idempotent
	}

	desc := BlobDescriptor(hexdigest, size)
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	exists, err := m.store.Exists(ctx, desc)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.store.Push(ctx, desc, bytes.NewReader(buf)); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.blobs[hexdigest] = size
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) DownloadHexdigest(ctx context.Context, hexdigest string) (io.ReadCloser, error) {
	m.mu.Lock()
	size, ok := m.blobs[hexdigest]
	m.mu.Unlock()
	if !ok {
		return nil, NotFound("blob", hexdigest)
	}
	return m.store.Fetch(ctx, BlobDescriptor(hexdigest, size))
}

func (m *MemoryBackend) ListHexdigests(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.blobs))
	for h := range m.blobs {
		out = append(out, h)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryBackend) DeleteHexdigest(ctx context.Context, hexdigest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[hexdigest]; !ok {
		return NotFound("blob", hexdigest)
	}
	delete(m.blobs, hexdigest)
	return nil
}

func (m *MemoryBackend) UploadJSON(ctx context.Context, name string, data []byte) error {
	desc := jsonDescriptor(name, data)
	exists, err := m.store.Exists(ctx, desc)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.store.Push(ctx, desc, bytes.NewReader(data)); err != nil {
			return err
		}
	}
	if err := m.store.Tag(ctx, desc, name); err != nil {
		return err
	}
	m.mu.Lock()
	m.docNames[name] = true
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) DownloadJSON(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	_, ok := m.docNames[name]
	m.mu.Unlock()
	if !ok {
		return nil, NotFound("document", name)
	}
	desc, err := m.store.Resolve(ctx, name)
	if err != nil {
		return nil, NotFound("document", name)
	}
	rc, err := m.store.Fetch(ctx, desc)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (m *MemoryBackend) ListJSON(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.docNames))
	for name := range m.docNames {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryBackend) DeleteJSON(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docNames[name]; !ok {
		return NotFound("document", name)
	}
	delete(m.docNames, name)
	return nil
}

func jsonDescriptor(name string, data []byte) ocispec.Descriptor {
	return ocispec.Descriptor{
		MediaType: DocumentMediaType,
		Digest:    digestOfBytes(data),
		Size:      int64(len(data)),
		Annotations: map[string]string{
			"org.opencontainers.image.ref.name": name,
		},
	}
}
