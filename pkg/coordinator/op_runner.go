// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package coordinator

import (
	"context"
	"time"

	"github.com/aiven/astacus/pkg/defaults"
	"github.com/aiven/astacus/pkg/errors"
	"github.com/aiven/astacus/pkg/model"
	"github.com/aiven/astacus/pkg/nodeclient"
)

// NodeOutcome pairs one node's result with any error talking to it. A
// non-nil Err is data, not a raised failure: callers classify it (lock
// result, poll tolerance) rather than aborting on sight.
type NodeOutcome[T any] struct {
	Result T
	Err    error
}

// RequestFromNodes fires fn against every node concurrently and returns
// outcomes positionally aligned to nodes. Every outcome is populated
// (including failures) before this returns.
func RequestFromNodes[T any](ctx context.Context, nodes []*nodeclient.Client, fn func(ctx context.Context, n *nodeclient.Client) (T, error)) []NodeOutcome[T] {
	out := make([]NodeOutcome[T], len(nodes))
	done := make(chan struct{}, len(nodes))

	for i, n := range nodes {
		go func(i int, n *nodeclient.Client) {
			defer func() { done <- struct{}{} }()
			result, err := fn(ctx, n)
			out[i] = NodeOutcome[T]{Result: result, Err: err}
		}(i, n)
	}
	for range nodes {
		<-done
	}
	return out
}

// RequestFromNodesIndexed is RequestFromNodes with the node's position
// passed through to fn, for calls whose request body varies per node (e.g.
// the upload planner's per-node hash assignment).
func RequestFromNodesIndexed[T any](ctx context.Context, nodes []*nodeclient.Client, fn func(ctx context.Context, i int, n *nodeclient.Client) (T, error)) []NodeOutcome[T] {
	out := make([]NodeOutcome[T], len(nodes))
	done := make(chan struct{}, len(nodes))

	for i, n := range nodes {
		go func(i int, n *nodeclient.Client) {
			defer func() { done <- struct{}{} }()
			result, err := fn(ctx, i, n)
			out[i] = NodeOutcome[T]{Result: result, Err: err}
		}(i, n)
	}
	for range nodes {
		<-done
	}
	return out
}

// PollConfig bounds WaitSuccessfulResults's polling behavior.
type PollConfig struct {
	DelayStart      time.Duration
	DelayMax        time.Duration
	DelayMultiplier float64
	MaxFailures     int
}

// DefaultPollConfig returns the pkg/defaults poll tuning.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		DelayStart:      defaults.PollDelayStart,
		DelayMax:        defaults.PollDelayMax,
		DelayMultiplier: defaults.PollDelayMultiplier,
		MaxFailures:     defaults.PollMaxFailures,
	}
}

// WaitSuccessfulResults polls every node's status URL from starts until
// each reports progress.final, aborting the whole wait (returning nil) if
// any node fails to produce a status URL, reports finished_failed, or
// reaches cfg.MaxFailures consecutive poll failures. On success, results
// are aligned to nodes.
func WaitSuccessfulResults(ctx context.Context, nodes []*nodeclient.Client, starts []model.StartResult, cfg PollConfig) ([]model.NodeResult, error) {
	if len(starts) != len(nodes) {
		return nil, errors.New(errors.ErrCodeStepFailed, "node/start-result count mismatch")
	}
	for _, s := range starts {
		if s.StatusURL == "" {
			return nil, errors.New(errors.ErrCodeStepFailed, "node produced no status url")
		}
	}

	results := make([]model.NodeResult, len(nodes))
	done := make([]bool, len(nodes))
	failures := make([]int, len(nodes))
	remaining := len(nodes)

	delay := cfg.DelayStart
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(errors.ErrCodeStepFailed, "wait cancelled", ctx.Err())
		default:
		}

		for i := range nodes {
			if done[i] {
				continue
			}
			var result model.NodeResult
			err := nodes[i].PollResult(ctx, starts[i].StatusURL, &result)
			if err != nil {
				failures[i]++
				if failures[i] >= cfg.MaxFailures {
					return nil, errors.WrapWithContext(errors.ErrCodeStepFailed,
						"node exceeded poll failure threshold", err, map[string]any{"node_index": i})
				}
				continue
			}
			failures[i] = 0
			if !result.Progress.Final {
				continue
			}
			if result.Progress.FinishedFailed() {
				return nil, errors.NewWithContext(errors.ErrCodeStepFailed,
					"node op finished with failures", map[string]any{"node_index": i})
			}
			results[i] = result
			done[i] = true
			remaining--
		}

		if remaining == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(errors.ErrCodeStepFailed, "wait cancelled", ctx.Err())
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * cfg.DelayMultiplier)
		if delay > cfg.DelayMax {
			delay = cfg.DelayMax
		}
	}

	return results, nil
}

// Attempt is one numbered try of a coordinator op's try_run, along with
// when it started.
type Attempt struct {
	Index     int
	StartedAt time.Time
}

// RunAttempts calls try up to maxAttempts times, stopping at the first
// attempt that returns a nil error.
func RunAttempts(maxAttempts int, try func(Attempt) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		attempt := Attempt{Index: i, StartedAt: time.Now().UTC()}
		if err := try(attempt); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
