// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package coordinator

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/aiven/astacus/pkg/errors"
	"github.com/aiven/astacus/pkg/model"
	"github.com/aiven/astacus/pkg/nodeclient"
)

const (
	resultBackupName     = "backup_name"
	resultBackupManifest = "backup_manifest"
	resultRestore        = "restore"
)

// manifestKeyPrefix is the prefix model.ManifestKey stamps on every
// persisted backup document; "most recent backup" means the lexically
// greatest key with this prefix, since the suffix is an RFC3339 timestamp
// and ISO-8601 lexical order matches chronological order.
const manifestKeyPrefix = "backup-"

// ChooseBackupName returns requestedName if non-empty, otherwise the most
// recent backup-* document name from storage.
func ChooseBackupName(ctx context.Context, cluster Cluster, requestedName string) (string, error) {
	if requestedName != "" {
		return requestedName, nil
	}

	names, err := cluster.Storage.ListJSON(ctx)
	if err != nil {
		return "", err
	}

	var candidates []string
	for _, n := range names {
		if strings.HasPrefix(n, manifestKeyPrefix) {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return "", errors.New(errors.ErrCodeNotFound, "no backup manifests found in storage")
	}
	sort.Strings(candidates)
	return candidates[len(candidates)-1], nil
}

// CanonicalRestoreSteps returns the named steps of the basic restore:
// backup_name, backup_manifest, restore. A plugin's restore step (e.g.
// re-hydrating an external dump) is inserted between backup_manifest and
// restore by StepWrapper, with the lease held throughout.
func CanonicalRestoreSteps(cluster Cluster, poll PollConfig, requestedName string) []Step {
	return []Step{
		StepFunc{StepName: resultBackupName, Fn: func(ctx context.Context, results *StepResults) error {
			name, err := ChooseBackupName(ctx, cluster, requestedName)
			if err != nil {
				return err
			}
			results.Set(resultBackupName, name)
			return nil
		}},
		StepFunc{StepName: resultBackupManifest, Fn: func(ctx context.Context, results *StepResults) error {
			name, err := getTyped[string](results, resultBackupName)
			if err != nil {
				return err
			}
			data, err := cluster.Storage.DownloadJSON(ctx, name)
			if err != nil {
				return err
			}
			var manifest model.BackupManifest
			if err := json.Unmarshal(data, &manifest); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, "decoding backup manifest", err)
			}
			results.Set(resultBackupManifest, &manifest)
			return nil
		}},
		StepFunc{StepName: resultRestore, Fn: func(ctx context.Context, results *StepResults) error {
			name, err := getTyped[string](results, resultBackupName)
			if err != nil {
				return err
			}
			manifest, err := getTyped[*model.BackupManifest](results, resultBackupManifest)
			if err != nil {
				return err
			}
			if len(manifest.Nodes) != len(cluster.Nodes) {
				return errors.NewWithContext(errors.ErrCodeStepFailed,
					"backup manifest node count does not match cluster size",
					map[string]any{"manifest_nodes": len(manifest.Nodes), "cluster_nodes": len(cluster.Nodes)})
			}

			starts := RequestFromNodesIndexed(ctx, cluster.Nodes, func(ctx context.Context, i int, n *nodeclient.Client) (model.StartResult, error) {
				return n.StartOp(ctx, "download", model.SnapshotDownloadRequest{BackupName: name, SnapshotIndex: i})
			})
			startResults, err := collectStarts(starts)
			if err != nil {
				return err
			}
			if _, err := WaitSuccessfulResults(ctx, cluster.Nodes, startResults, poll); err != nil {
				return err
			}
			return nil
		}},
	}
}

// RunRestore runs the canonical restore sequence (wrapped by wrap, if
// non-nil) up to opts.MaxAttempts times under a cluster-wide lease,
// returning the manifest it restored from.
func RunRestore(ctx context.Context, cluster Cluster, opts RunOptions, requestedName string, wrap StepWrapper) (*model.BackupManifest, error) {
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

		steps := CanonicalRestoreSteps(cluster, opts.Poll, requestedName)
		if wrap != nil {
			steps = wrap(steps)
		}

		results := NewStepResults()
		if err := RunSteps(opCtx, results, steps); err != nil {
			return err
		}

		m, err := getTyped[*model.BackupManifest](results, resultBackupManifest)
		if err != nil {
			return err
		}
		manifest = m
		return nil
	})

	return manifest, err
}
