// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package objectstore

import "sync"

// HandlePool hands out Backend handles to worker goroutines without
// sharing a single handle across them. The object-store client is not safe
// to share across concurrent workers; unlike an OS
// thread, a goroutine has no stable identity to key a thread-local slot
// on, so instead of simulating thread-local storage this pool hands a
// handle to whichever goroutine calls Get and expects it back via Put,
// the same pattern sync.Pool itself is built for.
type HandlePool struct {
	pool sync.Pool
}

// NewHandlePool builds a HandlePool that lazily constructs handles with
// newHandle the first time demand exceeds the pool's idle supply.
func NewHandlePool(newHandle func() Backend) *HandlePool {
	return &HandlePool{
		pool: sync.Pool{
			New: func() any { return newHandle() },
		},
	}
}

// Get returns a Backend handle for exclusive use by the calling goroutine
// until it is returned with Put.
func (p *HandlePool) Get() Backend {
	return p.pool.Get().(Backend)
}

// Put returns a handle to the pool for reuse by a later Get.
func (p *HandlePool) Put(b Backend) {
	p.pool.Put(b)
}

// WithHandle checks out a handle, passes it to fn, and returns it to the
// pool regardless of fn's outcome.
func (p *HandlePool) WithHandle(fn func(Backend) error) error {
	b := p.Get()
	defer p.Put(b)
	return fn(b)
}
