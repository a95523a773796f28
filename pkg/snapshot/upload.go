// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package snapshot

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aiven/astacus/pkg/errors"
	"github.com/aiven/astacus/pkg/model"
	"github.com/aiven/astacus/pkg/objectstore"
)

func errMissingDigest(hexdigest string) error {
	return errors.New(errors.ErrCodeNotFound, "no registered file carries hexdigest "+hexdigest)
}

func errChangedDuringUpload(hexdigest string) error {
	return errors.New(errors.ErrCodeInternal, "file content changed during upload of hexdigest "+hexdigest)
}

// StillRunning is polled between hexdigests so a caller can cooperatively
// cancel an upload in progress, e.g. because a newer op has superseded this
// one.
type StillRunning func() bool

// WriteHashesToStorage uploads each requested hexdigest to storage, guarding
// against the snapshot→upload gap being non-atomic: a file is re-hashed
// immediately before upload (skip if it already drifted) and again after
// (delete the blob and report a failure for that digest if it drifted during
// the upload). A hexdigest with no currently-registered file is reported
// missing. Iteration stops early the first time stillRunning returns false.
func (s *Snapshotter) WriteHashesToStorage(
	ctx context.Context,
	hashes []model.SnapshotHash,
	storage objectstore.HexDigestStorage,
	progress *model.Progress,
	stillRunning StillRunning,
) error {
	start := time.Now()
	defer func() { uploadDuration.Observe(time.Since(start).Seconds()) }()

	if progress != nil {
		progress.AddTotal(len(hashes))
	}

	for _, h := range hashes {
		if stillRunning != nil && !stillRunning() {
			break
		}
		if err := s.uploadOne(ctx, h.Hexdigest, storage); err != nil {
			if progress != nil {
				progress.AddFail()
			}
			slog.Warn("hexdigest upload failed", slog.String("hexdigest", h.Hexdigest), slog.String("error", err.Error()))
			continue
		}
		if progress != nil {
			progress.AddSuccess()
		}
	}

	if progress != nil {
		progress.MarkFinal()
	}
	return nil
}

func (s *Snapshotter) uploadOne(ctx context.Context, hexdigest string, storage objectstore.HexDigestStorage) error {
	s.mu.Lock()
	candidates := append([]model.SnapshotFile(nil), s.byHash[hexdigest]...)
	s.mu.Unlock()

	if len(candidates) == 0 {
		return errMissingDigest(hexdigest)
	}

	for _, f := range candidates {
		path := filepath.Join(s.Destination, f.RelativePath)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		before, err := hashFile(path)
		if err != nil || before != hexdigest {
			continue
		}

		file, err := os.Open(path)
		if err != nil {
			continue
		}
		uploadErr := storage.UploadHexdigest(ctx, hexdigest, f.FileSize, file)
		file.Close()
		if uploadErr != nil {
			return uploadErr
		}

		after, err := hashFile(path)
		if err != nil || after != hexdigest {
			_ = storage.DeleteHexdigest(ctx, hexdigest)
			return errChangedDuringUpload(hexdigest)
		}
		return nil
	}

	return errMissingDigest(hexdigest)
}
