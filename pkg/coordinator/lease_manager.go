// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package coordinator

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/aiven/astacus/pkg/errors"
	"github.com/aiven/astacus/pkg/nodeclient"
)

// LeaseManager holds a cluster-wide lease: one lock call per node, fanned
// out in parallel, plus one independent renewal goroutine per node that
// keeps relocking until Release is called or a node's lease is judged
// lost, at which point it cancels the whole op via cancel.
type LeaseManager struct {
	nodes               []*nodeclient.Client
	locker              string
	ttl                 time.Duration
	maxExceptionRetries int

	cancel context.CancelCauseFunc

	wg   sync.WaitGroup
	stop chan struct{}
}

// NewLeaseManager builds a LeaseManager for locker across nodes, renewing
// with ttl and tolerating up to maxExceptionRetries consecutive relock
// exceptions per node before giving up on that node (which cancels the op).
func NewLeaseManager(nodes []*nodeclient.Client, locker string, ttl time.Duration, maxExceptionRetries int) *LeaseManager {
	return &LeaseManager{
		nodes:               nodes,
		locker:              locker,
		ttl:                 ttl,
		maxExceptionRetries: maxExceptionRetries,
		stop:                make(chan struct{}),
	}
}

// acquisitionOutcome classifies one node's lock attempt per the three-way
// rule: ok (locked), failure (a well-formed refusal), exception (unreachable
// or unparseable).
type acquisitionOutcome struct {
	ok      bool
	failure bool
}

func classifyLockOutcome(o NodeOutcome[bool]) acquisitionOutcome {
	if o.Err == nil && o.Result {
		return acquisitionOutcome{ok: true}
	}
	if o.Err == nil {
		return acquisitionOutcome{failure: true}
	}
	var structErr *errors.StructuredError
	if stderrors.As(o.Err, &structErr) && structErr.Code == errors.ErrCodeLockConflict {
		return acquisitionOutcome{failure: true}
	}
	return acquisitionOutcome{}
}

// Acquire fans out lock to every node in parallel and classifies the
// aggregate per spec: ok if every node locked, a StructuredError wrapping
// ErrCodeLockConflict if any node gave a well-formed refusal (final, do not
// retry), or ErrCodeTransport if only unreachable/unparseable responses
// occurred (retryable by the caller's attempt loop). On success, Acquire
// starts the per-node renewal loops, which run until Release is called
// (they do not watch ctx); cancel is called if any node's lease is later
// judged lost, mid-operation.
func (m *LeaseManager) Acquire(ctx context.Context, cancel context.CancelCauseFunc) error {
	m.cancel = cancel

	outcomes := RequestFromNodes(ctx, m.nodes, func(ctx context.Context, n *nodeclient.Client) (bool, error) {
		resp, err := n.Lock(ctx, m.locker, m.ttl)
		return resp.Locked, err
	})

	var anyFailure, anyException bool
	for _, o := range outcomes {
		c := classifyLockOutcome(o)
		if c.failure {
			anyFailure = true
		} else if !c.ok {
			anyException = true
		}
	}

	if anyFailure {
		return errors.New(errors.ErrCodeLockConflict, "at least one node refused to lock")
	}
	if anyException {
		return errors.New(errors.ErrCodeTransport, "at least one node was unreachable during lock")
	}

	acquiredAt := time.Now()
	for i, n := range m.nodes {
		m.wg.Add(1)
		go m.renew(i, n, acquiredAt)
	}
	return nil
}

// renew is one node's independent relock loop.
func (m *LeaseManager) renew(nodeIndex int, n *nodeclient.Client, acquiredAt time.Time) {
	defer m.wg.Done()

	lockEOL := acquiredAt.Add(m.ttl)
	nextLock := acquiredAt.Add(m.ttl / 2)
	exceptionRetries := 0

	for {
		if time.Now().After(lockEOL) {
			m.cancel(errors.NewWithContext(errors.ErrCodeLockConflict, "node lease expired before renewal",
				map[string]any{"node_index": nodeIndex}))
			return
		}

		wait := time.Until(nextLock)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-m.stop:
			return
		case <-time.After(wait):
		}

		select {
		case <-m.stop:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.ttl)
		resp, err := n.Relock(ctx, m.locker, m.ttl)
		cancel()

		switch {
		case err == nil && resp.Locked:
			exceptionRetries = 0
			lockEOL = lockEOL.Add(m.ttl)
			nextLock = nextLock.Add(m.ttl)
		case err == nil:
			m.cancel(errors.NewWithContext(errors.ErrCodeLockConflict, "node relock refused",
				map[string]any{"node_index": nodeIndex}))
			return
		default:
			var structErr *errors.StructuredError
			if stderrors.As(err, &structErr) && structErr.Code == errors.ErrCodeLockConflict {
				m.cancel(errors.NewWithContext(errors.ErrCodeLockConflict, "node relock refused",
					map[string]any{"node_index": nodeIndex}))
				return
			}
			if stderrors.As(err, &structErr) && structErr.Code == errors.ErrCodeLockOwnerMismatch {
				m.cancel(errors.NewWithContext(errors.ErrCodeLockOwnerMismatch, "node relock owner mismatch",
					map[string]any{"node_index": nodeIndex}))
				return
			}
			exceptionRetries++
			if exceptionRetries > m.maxExceptionRetries {
				m.cancel(errors.NewWithContext(errors.ErrCodeTransport, "node relock exceeded exception retries",
					map[string]any{"node_index": nodeIndex}))
				return
			}
			select {
			case <-m.stop:
				return
			case <-time.After(m.ttl / 10):
			}
		}
	}
}

// Release stops every renewal loop and fans out unlock, best-effort. It
// always attempts unlock even if some nodes are unreachable.
func (m *LeaseManager) Release(ctx context.Context) {
	close(m.stop)
	m.wg.Wait()

	RequestFromNodes(ctx, m.nodes, func(ctx context.Context, n *nodeclient.Client) (bool, error) {
		resp, err := n.Unlock(ctx, m.locker)
		return resp.Locked, err
	})
}
