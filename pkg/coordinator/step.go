// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package coordinator

import (
	"context"
	"sync"

	"github.com/aiven/astacus/pkg/errors"
)

// Step is one named stage of a backup or restore attempt. Run returns an
// error to abort the attempt; RunAttempts will retry the whole sequence
// from step one on the next attempt, not resume mid-sequence.
type Step interface {
	Name() string
	Run(ctx context.Context, results *StepResults) error
}

// StepFunc adapts a plain function to Step.
type StepFunc struct {
	StepName string
	Fn       func(ctx context.Context, results *StepResults) error
}

func (f StepFunc) Name() string { return f.StepName }

func (f StepFunc) Run(ctx context.Context, results *StepResults) error {
	return f.Fn(ctx, results)
}

// StepResults holds the typed output each step in a sequence stores under
// its own name, so later steps can read attributes earlier steps produced
// (spec's "result_<step_name>" convention, expressed here as a map instead
// of dynamic attribute assignment).
type StepResults struct {
	mu   sync.Mutex
	data map[string]any
}

// NewStepResults returns an empty StepResults.
func NewStepResults() *StepResults {
	return &StepResults{data: make(map[string]any)}
}

// Set stores value under name, overwriting any previous value.
func (r *StepResults) Set(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[name] = value
}

// Get returns the value stored under name and whether it was present.
func (r *StepResults) Get(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[name]
	return v, ok
}

// RunSteps executes steps in order against the same results, which each
// step populates via Set under its own name for later steps to read. The
// first failing step aborts the whole sequence with ErrCodeStepFailed
// wrapping its cause.
func RunSteps(ctx context.Context, results *StepResults, steps []Step) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.ErrCodeStepFailed, "cancelled before step "+step.Name(), err)
		}
		if err := step.Run(ctx, results); err != nil {
			return errors.WrapWithContext(errors.ErrCodeStepFailed, "step failed", err,
				map[string]any{"step": step.Name()})
		}
	}
	return nil
}
