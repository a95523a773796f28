// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package coordinator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aiven/astacus/pkg/errors"
	"github.com/aiven/astacus/pkg/model"
	"github.com/aiven/astacus/pkg/nodeclient"
	"github.com/aiven/astacus/pkg/objectstore"
)

// Cluster is the set of nodes and the object-store backend a coordinator
// op runs against.
type Cluster struct {
	Nodes   []*nodeclient.Client
	Storage objectstore.Backend
}

// StepWrapper lets a plugin registry (kept in a separate package to avoid
// an import cycle back into this one) insert extra steps around the
// canonical sequence before it runs.
type StepWrapper func([]Step) []Step

// resultSnapshot, resultStoredHexdigests, resultUploadPlan, and
// resultManifest are the step-result keys the canonical backup steps
// populate, read by later steps and by callers after the sequence
// completes.
const (
	resultSnapshot         = "snapshot"
	resultStoredHexdigests = "list_hexdigests"
	resultUploadPlan       = "upload_blocks"
	resultManifest         = "upload_manifest"
)

// ResultPluginData is the step-result key a plugin's wrapped steps may set
// before upload_manifest runs; if present, its value becomes the persisted
// manifest's PluginData. Unset by default, so plain backups carry none.
const ResultPluginData = "plugin_data"

// RunOptions configures one coordinator attempt loop: the lease it holds,
// how many attempts to try, and the node-polling tuning.
type RunOptions struct {
	Locker              string
	LockTTL             time.Duration
	MaxAttempts         int
	MaxExceptionRetries int
	Poll                PollConfig
}

// CanonicalBackupSteps returns the four named steps of the basic backup,
// in order: snapshot, list_hexdigests, upload_blocks, upload_manifest.
// attemptStartedAt names the manifest this attempt produces if it
// succeeds.
func CanonicalBackupSteps(cluster Cluster, poll PollConfig, attemptStartedAt time.Time) []Step {
	return []Step{
		StepFunc{StepName: resultSnapshot, Fn: func(ctx context.Context, results *StepResults) error {
			starts := RequestFromNodes(ctx, cluster.Nodes, func(ctx context.Context, n *nodeclient.Client) (model.StartResult, error) {
				return n.StartOp(ctx, "snapshot", model.SnapshotRequest{})
			})
			startResults, err := collectStarts(starts)
			if err != nil {
				return err
			}
			nodeResults, err := WaitSuccessfulResults(ctx, cluster.Nodes, startResults, poll)
			if err != nil {
				return err
			}
			results.Set(resultSnapshot, nodeResults)
			return nil
		}},
		StepFunc{StepName: resultStoredHexdigests, Fn: func(ctx context.Context, results *StepResults) error {
			hexdigests, err := cluster.Storage.ListHexdigests(ctx)
			if err != nil {
				return err
			}
			stored := make(map[string]bool, len(hexdigests))
			for _, h := range hexdigests {
				stored[h] = true
			}
			results.Set(resultStoredHexdigests, stored)
			return nil
		}},
		StepFunc{StepName: resultUploadPlan, Fn: func(ctx context.Context, results *StepResults) error {
			snapshotResults, err := getTyped[[]model.NodeResult](results, resultSnapshot)
			if err != nil {
				return err
			}
			stored, err := getTyped[map[string]bool](results, resultStoredHexdigests)
			if err != nil {
				return err
			}

			nodeHashes := make([][]model.SnapshotHash, len(snapshotResults))
			for i, r := range snapshotResults {
				nodeHashes[i] = r.Hashes
			}
			plan := PlanUpload(nodeHashes, stored)

			hashesByNode := make(map[int][]model.SnapshotHash, len(plan))
			for _, data := range plan {
				hashesByNode[data.NodeIndex] = data.Hashes
			}

			uploadStarts := RequestFromNodesIndexed(ctx, cluster.Nodes, func(ctx context.Context, i int, n *nodeclient.Client) (model.StartResult, error) {
				return n.StartOp(ctx, "upload", model.SnapshotUploadRequest{Hashes: hashesByNode[i]})
			})
			startResults, err := collectStarts(uploadStarts)
			if err != nil {
				return err
			}
			if _, err := WaitSuccessfulResults(ctx, cluster.Nodes, startResults, poll); err != nil {
				return err
			}
			results.Set(resultUploadPlan, plan)
			return nil
		}},
		StepFunc{StepName: resultManifest, Fn: func(ctx context.Context, results *StepResults) error {
			snapshotResults, err := getTyped[[]model.NodeResult](results, resultSnapshot)
			if err != nil {
				return err
			}
			manifest := model.BackupManifest{
				StartedAt: attemptStartedAt,
				Nodes:     snapshotResults,
			}
			if pluginData, ok := results.Get(ResultPluginData); ok {
				manifest.PluginData = pluginData
			}
			data, err := json.Marshal(manifest)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInternal, "encoding backup manifest", err)
			}
			key := model.ManifestKey(attemptStartedAt)
			if err := cluster.Storage.UploadJSON(ctx, key, data); err != nil {
				return err
			}
			results.Set(resultManifest, &manifest)
			return nil
		}},
	}
}

// RunBackup runs the canonical backup sequence (wrapped by wrap, if
// non-nil) up to opts.MaxAttempts times under a cluster-wide lease,
// returning the manifest the first successful attempt persisted.
func RunBackup(ctx context.Context, cluster Cluster, opts RunOptions, wrap StepWrapper) (*model.BackupManifest, error) {
	var manifest *model.BackupManifest

	err := RunAttempts(opts.MaxAttempts, func(attempt Attempt) error {
		opCtx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)

		lm := NewLeaseManager(cluster.Nodes, opts.Locker, opts.LockTTL, opts.MaxExceptionRetries)
		if err := lm.Acquire(opCtx, cancel); err != nil {
			lm.Release(context.Background())
			return err
		}
		defer lm.Release(context.Background())

		steps := CanonicalBackupSteps(cluster, opts.Poll, attempt.StartedAt)
		if wrap != nil {
			steps = wrap(steps)
		}

		results := NewStepResults()
		if err := RunSteps(opCtx, results, steps); err != nil {
			return err
		}

		m, err := getTyped[*model.BackupManifest](results, resultManifest)
		if err != nil {
			return err
		}
		manifest = m
		return nil
	})

	return manifest, err
}

// collectStarts turns a slice of per-node StartResult outcomes into a
// plain aligned slice, failing the step if any node returned an error
// starting its op.
func collectStarts(outcomes []NodeOutcome[model.StartResult]) ([]model.StartResult, error) {
	out := make([]model.StartResult, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			return nil, errors.WrapWithContext(errors.ErrCodeStepFailed, "node failed to start op", o.Err,
				map[string]any{"node_index": i})
		}
		out[i] = o.Result
	}
	return out, nil
}

// getTyped reads name from results and asserts it to T, failing with
// ErrCodeStepFailed if the key is missing or holds the wrong type.
func getTyped[T any](results *StepResults, name string) (T, error) {
	var zero T
	v, ok := results.Get(name)
	if !ok {
		return zero, errors.NewWithContext(errors.ErrCodeStepFailed, "missing step result", map[string]any{"step": name})
	}
	typed, ok := v.(T)
	if !ok {
		return zero, errors.NewWithContext(errors.ErrCodeStepFailed, "step result has unexpected type", map[string]any{"step": name})
	}
	return typed, nil
}
