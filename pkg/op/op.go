// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

// Package op implements the long-running operation lifecycle shared by the
// node and coordinator services: a monotonically increasing op id, a
// compare-and-swap status machine, and a check that lets an in-flight
// operation notice it has been superseded.
//
// This generalizes the source's op.py class hierarchy (a base Op class
// subclassed per op kind, each instance carrying its own id/status) into a
// single Info value embedded by whatever operation-specific state a node or
// coordinator op needs, per the design note on replacing inheritance with
// a shared step-runner over tagged variants.
package op

import (
	"sync"
	"sync/atomic"

	"github.com/aiven/astacus/pkg/errors"
)

// Status is an operation's lifecycle state.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusDone     Status = "done"
	StatusFail     Status = "fail"
)

// Info is the process-wide current-operation state. Only one Info is ever
// "current" per process; starting a new operation replaces the prior one's
// slot in the owning service once it has reached a terminal state.
type Info struct {
	OpID   int64
	OpName string

	mu     sync.Mutex
	status Status
}

// NewInfo returns an Info in StatusStarting for the given id and name.
func NewInfo(id int64, name string) *Info {
	return &Info{OpID: id, OpName: name, status: StatusStarting}
}

// Status returns the current status.
func (i *Info) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// SetStatus performs a compare-and-swap: it sets the status to to only if
// the current status equals from, returning whether the swap happened. A
// late terminal transition that no longer matches the expected prior state
// (e.g. a "done" racing behind an exception-triggered "fail") is silently
// dropped.
func (i *Info) SetStatus(from, to Status) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.status != from {
		return false
	}
	i.status = to
	return true
}

// IDGenerator hands out strictly increasing operation ids for one process.
type IDGenerator struct {
	counter int64
}

// Next returns the next op id, starting at 1.
func (g *IDGenerator) Next() int64 {
	return atomic.AddInt64(&g.counter, 1)
}

// ExpiredOperationError reports that a checked op id no longer matches the
// current operation: a newer operation has superseded it.
type ExpiredOperationError struct {
	OpID        int64
	CurrentOpID int64
}

func (e *ExpiredOperationError) Error() string {
	return errors.New(errors.ErrCodeExpiredOperation, "operation id no longer current").Error()
}

// CheckOpID returns an *ExpiredOperationError if opID does not match
// currentOpID, implementing the check_op_id cancellation mechanism: an
// in-flight operation calls this periodically and treats a non-nil result
// as cooperative cancellation.
func CheckOpID(opID, currentOpID int64) error {
	if opID != currentOpID {
		return &ExpiredOperationError{OpID: opID, CurrentOpID: currentOpID}
	}
	return nil
}

// UnknownOperationError reports that a result/status query named an
// operation id the node or coordinator has no record of.
type UnknownOperationError struct {
	OpID int64
}

func (e *UnknownOperationError) Error() string {
	return errors.New(errors.ErrCodeOperationIDMismatch, "unknown operation id").Error()
}

// Unwrap exposes the error as an ErrCodeOperationIDMismatch StructuredError,
// so errors.As callers such as the HTTP error writer see its code.
func (e *UnknownOperationError) Unwrap() error {
	return errors.New(errors.ErrCodeOperationIDMismatch, "unknown operation id")
}
