// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package node

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/aiven/astacus/pkg/defaults"
	"github.com/aiven/astacus/pkg/errors"
	"github.com/aiven/astacus/pkg/model"
	"github.com/aiven/astacus/pkg/objectstore"
	"github.com/aiven/astacus/pkg/op"
	"github.com/aiven/astacus/pkg/snapshot"
)

// Config is the node's local configuration: where its snapshotter reads
// and writes, and how much of each op kind it runs at once.
type Config struct {
	Root              string
	DestinationRoot   string
	Globs             []string
	ParallelUploads   int
	ParallelDownloads int
}

func (c Config) globs() []string {
	if len(c.Globs) > 0 {
		return c.Globs
	}
	return []string{"**/*"}
}

// Service is the per-host node: the lease a coordinator holds while
// driving an op, the snapshotter, the object-store backend, and the single
// in-flight op a node ever runs at a time. A node processes at most one op
// concurrently, mirroring the invariant that only one lease holder may act
// on it at all.
type Service struct {
	Lease       *Lease
	Snapshotter *snapshot.Snapshotter
	Storage     objectstore.Backend

	cfg      Config
	idGen    op.IDGenerator
	hostname string

	mu     sync.Mutex
	info   *op.Info
	result model.NodeResult
}

// NewService constructs a Service over cfg and storage.
func NewService(cfg Config, storage objectstore.Backend) *Service {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if cfg.ParallelDownloads <= 0 {
		cfg.ParallelDownloads = defaults.ParallelDownloadOperations
	}
	return &Service{
		Lease:       &Lease{},
		Snapshotter: snapshot.New(cfg.Root, cfg.DestinationRoot, cfg.globs(), nil),
		Storage:     storage,
		cfg:         cfg,
		hostname:    hostname,
	}
}

// publisher pushes a mutation into the result of the op identified by info,
// dropping it silently if a newer op has since superseded it.
type publisher func(mutate func(*model.NodeResult))

func (s *Service) currentOpID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return 0
	}
	return s.info.OpID
}

// startOp assigns the next op id, installs it as current, and runs body in
// a background goroutine, moving through starting -> running -> done/fail.
// body's publisher writes are visible to GetResult for as long as this op
// remains current.
func (s *Service) startOp(opName string, body func(ctx context.Context, opID int64, pub publisher) error) model.StartResult {
	s.mu.Lock()
	id := s.idGen.Next()
	info := op.NewInfo(id, opName)
	s.info = info
	s.result = model.NodeResult{Hostname: s.hostname, StartedAt: time.Now().UTC()}
	s.mu.Unlock()

	pub := func(mutate func(*model.NodeResult)) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.info != info {
			return
		}
		mutate(&s.result)
	}

	go func() {
		info.SetStatus(op.StatusStarting, op.StatusRunning)

		err := body(context.Background(), id, pub)

		pub(func(r *model.NodeResult) {
			r.EndedAt = time.Now().UTC()
			if !r.Progress.Final {
				r.Progress.MarkFinal()
			}
		})

		if err != nil {
			info.SetStatus(op.StatusRunning, op.StatusFail)
		} else {
			info.SetStatus(op.StatusRunning, op.StatusDone)
		}
	}()

	return model.StartResult{OpID: id}
}

// GetResult returns the result of opName/opID, failing with
// UnknownOperationError if it does not name the current (or most recently
// run) op on this node.
func (s *Service) GetResult(opName string, opID int64) (model.NodeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil || s.info.OpID != opID || s.info.OpName != opName {
		return model.NodeResult{}, &op.UnknownOperationError{OpID: opID}
	}
	return s.result, nil
}

// RunSnapshot re-mirrors the source directory and returns the refreshed
// hash set and file listing in the op's result.
func (s *Service) RunSnapshot(req model.SnapshotRequest) model.StartResult {
	return s.startOp("snapshot", func(ctx context.Context, opID int64, pub publisher) error {
		if len(req.RootGlobs) > 0 {
			s.Snapshotter.Globs = req.RootGlobs
		}

		progress := &model.Progress{}
		_, err := s.Snapshotter.Snapshot(ctx, progress)
		pub(func(r *model.NodeResult) {
			r.Progress = *progress
			r.Hashes = s.Snapshotter.GetSnapshotHashes()
			r.Files = s.Snapshotter.GetSnapshotState().Files
			for _, h := range r.Hashes {
				r.TotalSize += h.Size
			}
		})
		return err
	})
}

// RunUpload uploads the requested hashes to the node's configured backend.
func (s *Service) RunUpload(req model.SnapshotUploadRequest) model.StartResult {
	return s.startOp("upload", func(ctx context.Context, opID int64, pub publisher) error {
		progress := &model.Progress{}
		stillRunning := func() bool {
			pub(func(r *model.NodeResult) { r.Progress = *progress })
			return op.CheckOpID(opID, s.currentOpID()) == nil
		}

		err := s.Snapshotter.WriteHashesToStorage(ctx, req.Hashes, s.Storage, progress, stillRunning)
		pub(func(r *model.NodeResult) {
			r.Progress = *progress
			r.Hashes = req.Hashes
		})
		return err
	})
}

// RunDownload restores a backup manifest's snapshot for this node index
// into the destination directory.
func (s *Service) RunDownload(req model.SnapshotDownloadRequest) model.StartResult {
	return s.startOp("download", func(ctx context.Context, opID int64, pub publisher) error {
		manifestBytes, err := s.Storage.DownloadJSON(ctx, req.BackupName)
		if err != nil {
			return err
		}

		var manifest model.BackupManifest
		if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "decoding backup manifest", err)
		}
		if req.SnapshotIndex < 0 || req.SnapshotIndex >= len(manifest.Nodes) {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest, "snapshot index out of range",
				map[string]any{"snapshot_index": req.SnapshotIndex, "node_count": len(manifest.Nodes)})
		}
		state := model.SnapshotState{Files: manifest.Nodes[req.SnapshotIndex].Files}

		// Refresh the current view before comparing content against it, so
		// content-equal skip decisions see the destination as it is now.
		if _, err := s.Snapshotter.Snapshot(ctx, nil); err != nil {
			return err
		}

		progress := &model.Progress{}
		err = s.Snapshotter.DownloadFromStorage(ctx, state, s.Storage, progress, s.cfg.ParallelDownloads)
		pub(func(r *model.NodeResult) { r.Progress = *progress })
		return err
	})
}

// RunClear deletes every destination file not referenced by the
// snapshotter's currently loaded view, as an explicit operator action
// distinct from the implicit cleanup a download performs.
func (s *Service) RunClear(req model.SnapshotClearRequest) model.StartResult {
	return s.startOp("clear", func(ctx context.Context, opID int64, pub publisher) error {
		if len(req.RootGlobs) > 0 {
			s.Snapshotter.Globs = req.RootGlobs
		}

		state := s.Snapshotter.GetSnapshotState()
		progress := &model.Progress{}
		_, err := s.Snapshotter.ClearUnreferenced(ctx, state, progress)
		pub(func(r *model.NodeResult) { r.Progress = *progress })
		return err
	})
}
