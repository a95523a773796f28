// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

// Package node implements the per-host node service: the lease a
// coordinator holds while driving an op, the node-local Op runtime, and
// the HTTP surface (lock/relock/unlock/snapshot/upload/download/clear)
// that exposes both.
package node

import (
	"sync"
	"time"

	"github.com/aiven/astacus/pkg/errors"
)

// Lease is the node-local lock a coordinator holds for the duration of one
// cluster-wide op. Mutations are serialized by mu; a lease whose ttl has
// elapsed since the last successful lock/relock is treated as unlocked,
// so a node never holds a lease longer than ttl past its last renewal.
type Lease struct {
	mu       sync.Mutex
	locker   string
	deadline time.Time
}

// locked reports (while mu is held) whether the lease is currently held,
// clearing it first if its deadline has passed.
func (l *Lease) locked() bool {
	if l.locker == "" {
		return false
	}
	if time.Now().After(l.deadline) {
		l.locker = ""
		return false
	}
	return true
}

// IsLocked reports whether the lease is currently held by anyone.
func (l *Lease) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked()
}

// Holder returns the current locker, or "" if unlocked.
func (l *Lease) Holder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.locked() {
		return ""
	}
	return l.locker
}

// Lock acquires the lease for locker, failing with ErrCodeLockConflict if
// it is already held by anyone (including locker itself).
func (l *Lease) Lock(locker string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked() {
		return errors.New(errors.ErrCodeLockConflict, "already locked")
	}
	l.locker = locker
	l.deadline = time.Now().Add(ttl)
	return nil
}

// Relock refreshes locker's lease, failing with ErrCodeLockConflict if
// unlocked or ErrCodeLockOwnerMismatch if held by someone else.
func (l *Lease) Relock(locker string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.locked() {
		return errors.New(errors.ErrCodeLockConflict, "not locked")
	}
	if l.locker != locker {
		return errors.New(errors.ErrCodeLockOwnerMismatch, "locked by someone else")
	}
	l.deadline = time.Now().Add(ttl)
	return nil
}

// Unlock releases locker's lease, failing with ErrCodeLockConflict if
// already unlocked or ErrCodeLockOwnerMismatch if held by someone else.
func (l *Lease) Unlock(locker string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.locked() {
		return errors.New(errors.ErrCodeLockConflict, "already unlocked")
	}
	if l.locker != locker {
		return errors.New(errors.ErrCodeLockOwnerMismatch, "locked by someone else")
	}
	l.locker = ""
	return nil
}
