// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/aiven/astacus/pkg/model"
	"github.com/aiven/astacus/pkg/op"
)

// State is a coordinator op's lifecycle state, as reported to callers
// polling GET /{op}/{op_id}.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateFail     State = "fail"
	StateDone     State = "done"
)

// OpResult is the body GET /{op}/{op_id} returns for a coordinator op.
type OpResult struct {
	State    State                 `json:"state"`
	Error    string                `json:"error,omitempty"`
	Manifest *model.BackupManifest `json:"manifest,omitempty"`
}

// RestoreRequest is the body of a coordinator POST /restore call; an empty
// BackupName restores the most recent backup.
type RestoreRequest struct {
	BackupName string `json:"backup_name,omitempty"`
}

// Service is the coordinator process: the cluster it drives, the run
// tuning every attempt uses, and the single in-flight backup-or-restore op
// it ever runs at a time, mirroring pkg/node's one-op-at-a-time Service.
type Service struct {
	cluster     Cluster
	opts        RunOptions
	backupWrap  StepWrapper
	restoreWrap StepWrapper

	idGen op.IDGenerator

	mu     sync.Mutex
	info   *op.Info
	result OpResult
}

// ServiceOption configures a Service at construction.
type ServiceOption func(*Service)

// WithBackupStepWrapper installs the hook RunBackup uses to let a plugin
// registry insert extra steps around the canonical backup sequence,
// without pkg/coordinator importing pkg/coordinator/plugin directly.
func WithBackupStepWrapper(wrap StepWrapper) ServiceOption {
	return func(s *Service) { s.backupWrap = wrap }
}

// WithRestoreStepWrapper is WithBackupStepWrapper's restore-side
// counterpart.
func WithRestoreStepWrapper(wrap StepWrapper) ServiceOption {
	return func(s *Service) { s.restoreWrap = wrap }
}

// NewService constructs a Service over cluster, running every attempt with
// opts.
func NewService(cluster Cluster, opts RunOptions, options ...ServiceOption) *Service {
	s := &Service{cluster: cluster, opts: opts}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// StartBackup validates the cluster lock is immediately available, then
// runs the canonical backup sequence in the background.
func (s *Service) StartBackup(ctx context.Context) (model.StartResult, error) {
	return s.start(ctx, "backup", func(ctx context.Context) (*model.BackupManifest, error) {
		return RunBackup(ctx, s.cluster, s.opts, s.backupWrap)
	})
}

// StartRestore validates the cluster lock is immediately available, then
// runs the canonical restore sequence (from backupName, or the most recent
// backup if empty) in the background.
func (s *Service) StartRestore(ctx context.Context, backupName string) (model.StartResult, error) {
	return s.start(ctx, "restore", func(ctx context.Context) (*model.BackupManifest, error) {
		return RunRestore(ctx, s.cluster, s.opts, backupName, s.restoreWrap)
	})
}

// start performs the synchronous start-time cluster-lock validation spec
// requires, then launches run in the background under a fresh op id.
func (s *Service) start(ctx context.Context, opName string, run func(ctx context.Context) (*model.BackupManifest, error)) (model.StartResult, error) {
	if err := s.probeLock(ctx); err != nil {
		return model.StartResult{}, err
	}

	s.mu.Lock()
	id := s.idGen.Next()
	info := op.NewInfo(id, opName)
	s.info = info
	s.result = OpResult{State: StateStarting}
	s.mu.Unlock()

	go func() {
		info.SetStatus(op.StatusStarting, op.StatusRunning)
		s.setResult(info, OpResult{State: StateRunning})

		manifest, err := run(context.Background())

		if err != nil {
			s.setResult(info, OpResult{State: StateFail, Error: err.Error()})
			info.SetStatus(op.StatusRunning, op.StatusFail)
		} else {
			s.setResult(info, OpResult{State: StateDone, Manifest: manifest})
			info.SetStatus(op.StatusRunning, op.StatusDone)
		}
	}()

	return model.StartResult{OpID: id}, nil
}

// probeLock takes and immediately releases the cluster lease once, giving
// the caller a quick 409 if the cluster is already locked rather than
// waiting for the first real attempt inside run to fail.
func (s *Service) probeLock(ctx context.Context) error {
	probeCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	lm := NewLeaseManager(s.cluster.Nodes, s.opts.Locker, probeTTL(s.opts.LockTTL), s.opts.MaxExceptionRetries)
	if err := lm.Acquire(probeCtx, cancel); err != nil {
		return err
	}
	lm.Release(context.Background())
	return nil
}

// probeTTL returns the configured ttl for the probe lease, or 1s when ttl
// is unset; the probe lease is released immediately after acquisition
// succeeds, well before ttl would ever matter.
func probeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}

func (s *Service) setResult(info *op.Info, result OpResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info != info {
		return
	}
	s.result = result
}

// GetResult returns the result of opName/opID, failing with
// UnknownOperationError if it does not name the current (or most recently
// run) op on this coordinator.
func (s *Service) GetResult(opName string, opID int64) (OpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil || s.info.OpID != opID || s.info.OpName != opName {
		return OpResult{}, &op.UnknownOperationError{OpID: opID}
	}
	return s.result, nil
}
