// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package snapshot

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/aiven/astacus/pkg/model"
	"github.com/aiven/astacus/pkg/objectstore"
	"github.com/aiven/astacus/pkg/workerpool"
)

// downloadUnit is one independent piece of download work: either an inline
// payload to decode, or a hexdigest to fetch once and fan out to every
// SnapshotFile sharing it.
type downloadUnit struct {
	hexdigest string
	inline    *model.SnapshotFile
	files     []model.SnapshotFile
	size      int64
}

// DownloadFromStorage materializes state into the destination directory:
// files already content-equal to the snapshotter's current view
// are skipped, inline-payload files are decoded directly, and the rest are
// downloaded once per hexdigest and fanned out by local copy to every other
// file sharing that digest. After materialization, destination files not
// referenced by state are deleted and every materialized file's mtime is
// restored exactly. Work units are processed largest first across a
// worker pool of parallelism workers.
func (s *Snapshotter) DownloadFromStorage(
	ctx context.Context,
	state model.SnapshotState,
	storage objectstore.HexDigestStorage,
	progress *model.Progress,
	parallelism int,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() { downloadDuration.Observe(time.Since(start).Seconds()) }()

	current := make(map[string]model.SnapshotFile, len(s.byPath))
	for k, v := range s.byPath {
		current[k] = v
	}

	units, skipped := s.planDownload(state, current)

	if progress != nil {
		progress.AddTotal(len(state.Files))
		for i := 0; i < skipped; i++ {
			progress.AddSuccess()
		}
	}

	sort.Slice(units, func(i, j int) bool { return units[i].size > units[j].size })

	// materializeUnit runs concurrently across the worker pool, but
	// model.Progress's counters are plain ints with no synchronization of
	// their own; guard every unit's progress updates with progressMu so
	// concurrent units don't race on Add*.
	var progressMu sync.Mutex
	pool := workerpool.New(parallelism)
	errs := pool.RunBestEffort(ctx, len(units), func(ctx context.Context, i int) error {
		return s.materializeUnit(ctx, units[i], storage, progress, &progressMu)
	})
	var firstErr error
	for _, err := range errs {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	referenced := make(map[string]bool, len(state.Files))
	newByPath := make(map[string]model.SnapshotFile, len(state.Files))
	newByHash := make(map[string][]model.SnapshotFile)
	for _, f := range state.Files {
		referenced[f.RelativePath] = true
		newByPath[f.RelativePath] = f
		newByHash[f.Hexdigest] = append(newByHash[f.Hexdigest], f)
	}

	existing, err := s.listFiles(s.Destination)
	if err != nil {
		return err
	}
	for _, rel := range existing {
		if referenced[rel] {
			continue
		}
		if err := os.Remove(filepath.Join(s.Destination, rel)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	s.byPath = newByPath
	s.byHash = newByHash

	if progress != nil {
		progress.MarkFinal()
	}
	return firstErr
}

// planDownload splits state into units of independent download work,
// skipping any file that is already content-equal (ignoring mtime) to the
// snapshotter's current view.
func (s *Snapshotter) planDownload(state model.SnapshotState, current map[string]model.SnapshotFile) ([]downloadUnit, int) {
	byHash := make(map[string][]model.SnapshotFile)
	var units []downloadUnit
	skipped := 0

	for _, f := range state.Files {
		if existing, ok := current[f.RelativePath]; ok && existing.ContentEqual(f) {
			skipped++
			continue
		}
		if f.ContentB64 != "" {
			f := f
			units = append(units, downloadUnit{inline: &f, size: f.FileSize})
			continue
		}
		byHash[f.Hexdigest] = append(byHash[f.Hexdigest], f)
	}

	for hexdigest, files := range byHash {
		var maxSize int64
		for _, f := range files {
			if f.FileSize > maxSize {
				maxSize = f.FileSize
			}
		}
		units = append(units, downloadUnit{hexdigest: hexdigest, files: files, size: maxSize})
	}

	return units, skipped
}

func (s *Snapshotter) materializeUnit(ctx context.Context, u downloadUnit, storage objectstore.HexDigestStorage, progress *model.Progress, progressMu *sync.Mutex) error {
	if u.inline != nil {
		err := writeInline(s.Destination, *u.inline)
		recordUnitOutcome(progress, progressMu, 1, err)
		return err
	}

	if len(u.files) == 0 {
		return nil
	}

	first := u.files[0]
	firstPath := filepath.Join(s.Destination, first.RelativePath)
	if err := downloadOne(ctx, storage, u.hexdigest, firstPath); err != nil {
		slog.Warn("hexdigest download failed", slog.String("hexdigest", u.hexdigest), slog.String("error", err.Error()))
		recordUnitOutcome(progress, progressMu, len(u.files), err)
		return err
	}
	if err := restoreMtime(firstPath, first.MtimeNs); err != nil {
		recordUnitOutcome(progress, progressMu, len(u.files), err)
		return err
	}
	recordUnitOutcome(progress, progressMu, 1, nil)

	for _, f := range u.files[1:] {
		destPath := filepath.Join(s.Destination, f.RelativePath)
		err := copyFile(firstPath, destPath)
		if err == nil {
			err = restoreMtime(destPath, f.MtimeNs)
		}
		recordUnitOutcome(progress, progressMu, 1, err)
		if err != nil {
			return err
		}
	}
	return nil
}

func recordUnitOutcome(progress *model.Progress, progressMu *sync.Mutex, count int, err error) {
	if progress == nil {
		return
	}
	progressMu.Lock()
	defer progressMu.Unlock()
	for i := 0; i < count; i++ {
		if err != nil {
			progress.AddFail()
		} else {
			progress.AddSuccess()
		}
	}
}

func downloadOne(ctx context.Context, storage objectstore.HexDigestStorage, hexdigest, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	rc, err := storage.DownloadHexdigest(ctx, hexdigest)
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

func writeInline(destination string, f model.SnapshotFile) error {
	destPath := filepath.Join(destination, f.RelativePath)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(f.ContentB64)
	if err != nil {
		return err
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return err
	}
	return restoreMtime(destPath, f.MtimeNs)
}

func copyFile(srcPath, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

func restoreMtime(path string, mtimeNs int64) error {
	mtime := time.Unix(0, mtimeNs)
	return os.Chtimes(path, mtime, mtime)
}
