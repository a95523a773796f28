// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

// Package snapshot implements the node's hashed-mirror snapshotter: an
// incremental, mtime-aware view of a source directory, hard-linked into a
// stable destination directory so hashing never races a mutating source.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/blake2s"

	"github.com/aiven/astacus/pkg/model"
)

// PathFilter narrows a list of relative paths, applied after glob matching.
// A nil filter keeps every glob-matched path.
type PathFilter func(relPaths []string) []string

// Snapshotter owns a (source, destination, globs) tuple and two in-memory
// indices: relative path to SnapshotFile, and hexdigest to the
// SnapshotFiles sharing it. It is not reentrant: callers
// must hold its mutex across Snapshot, WriteHashesToStorage, and
// DownloadFromStorage (the node service does this by construction, since a
// node processes one op at a time).
type Snapshotter struct {
	Source      string
	Destination string
	Globs       []string
	PathFilter  PathFilter

	mu     sync.Mutex
	byPath map[string]model.SnapshotFile
	byHash map[string][]model.SnapshotFile
}

// New returns a Snapshotter over source/destination, matching any of globs.
func New(source, destination string, globs []string, filter PathFilter) *Snapshotter {
	return &Snapshotter{
		Source:      source,
		Destination: destination,
		Globs:       globs,
		PathFilter:  filter,
		byPath:      make(map[string]model.SnapshotFile),
		byHash:      make(map[string][]model.SnapshotFile),
	}
}

// Lock acquires the snapshotter's mutex for the duration of a caller's
// multi-step operation (snapshot, then upload, or snapshot, then restore's
// download). Unlock releases it.
func (s *Snapshotter) Lock()   { s.mu.Lock() }
func (s *Snapshotter) Unlock() { s.mu.Unlock() }

// listFiles returns the sorted, glob-matched, symlink-excluded relative
// paths of regular files under basepath.
func (s *Snapshotter) listFiles(basepath string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	err := filepath.WalkDir(basepath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(basepath, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if seen[rel] {
			return nil
		}
		for _, glob := range s.Globs {
			if matchesGlob(glob, rel) {
				seen[rel] = true
				out = append(out, rel)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(out)
	if s.PathFilter != nil {
		out = s.PathFilter(out)
	}
	return out, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	start := time.Now()
	defer func() { snapshotHashDuration.Observe(time.Since(start).Seconds()) }()

	h, err := blake2s.New256(nil)
	if err != nil {
		return "", err
	}
	buf := make([]byte, 1_000_000)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Snapshot runs the six-step hash-mirror algorithm and returns the number of
// changes observed (directories created, files removed, files hard-linked,
// or files rehashed). 0 means the destination already matches the source
// exactly. progress may be nil.
func (s *Snapshotter) Snapshot(ctx context.Context, progress *model.Progress) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() { snapshotDuration.Observe(time.Since(start).Seconds()) }()

	sourceFiles, err := s.listFiles(s.Source)
	if err != nil {
		return 0, fmt.Errorf("listing source files: %w", err)
	}
	destFiles, err := s.listFiles(s.Destination)
	if err != nil {
		return 0, fmt.Errorf("listing destination files: %w", err)
	}

	sourceSet := toSet(sourceFiles)
	destSet := toSet(destFiles)
	changes := 0

	// Step 2: create in destination any directory that exists in source
	// but not destination.
	for _, rel := range sourceFiles {
		destDir := filepath.Dir(filepath.Join(s.Destination, rel))
		if _, err := os.Stat(destDir); os.IsNotExist(err) {
			if err := os.MkdirAll(destDir, 0o755); err != nil {
				return changes, fmt.Errorf("creating destination directory %s: %w", destDir, err)
			}
			changes++
		}
	}

	// Step 3: remove from destination any file not in source.
	for _, rel := range destFiles {
		if sourceSet[rel] {
			continue
		}
		if err := os.Remove(filepath.Join(s.Destination, rel)); err != nil && !os.IsNotExist(err) {
			return changes, fmt.Errorf("removing stale destination file %s: %w", rel, err)
		}
		s.removeSnapshotFile(rel)
		changes++
	}

	// Step 4: hard-link into destination any source file missing from
	// destination.
	for _, rel := range sourceFiles {
		if destSet[rel] {
			continue
		}
		srcPath := filepath.Join(s.Source, rel)
		destPath := filepath.Join(s.Destination, rel)
		if err := os.Link(srcPath, destPath); err != nil {
			return changes, fmt.Errorf("hard-linking %s: %w", rel, err)
		}
		changes++
	}

	// Step 5: stat each source file; reuse the old hexdigest when
	// (path, mtime_ns, size) is unchanged, otherwise hash the destination
	// copy (hashing must read the stable mirror, not the mutating source).
	if progress != nil {
		progress.AddTotal(len(sourceFiles))
	}

	for _, rel := range sourceFiles {
		select {
		case <-ctx.Done():
			return changes, ctx.Err()
		default:
		}

		info, err := os.Stat(filepath.Join(s.Source, rel))
		if err != nil {
			if progress != nil {
				progress.AddFail()
			}
			return changes, fmt.Errorf("stat %s: %w", rel, err)
		}

		candidate := model.SnapshotFile{
			RelativePath: rel,
			MtimeNs:      info.ModTime().UnixNano(),
			FileSize:     info.Size(),
		}

		if old, ok := s.byPath[rel]; ok && old.MtimeNs == candidate.MtimeNs && old.FileSize == candidate.FileSize {
			if progress != nil {
				progress.AddSuccess()
			}
			continue
		}

		hexdigest, err := hashFile(filepath.Join(s.Destination, rel))
		if err != nil {
			if progress != nil {
				progress.AddFail()
			}
			return changes, fmt.Errorf("hashing %s: %w", rel, err)
		}
		candidate.Hexdigest = hexdigest
		s.addSnapshotFile(candidate)
		changes++
		if progress != nil {
			progress.AddSuccess()
		}
	}

	if progress != nil {
		progress.MarkFinal()
	}

	snapshotChangesTotal.Add(float64(changes))
	return changes, nil
}

func (s *Snapshotter) addSnapshotFile(f model.SnapshotFile) {
	s.removeSnapshotFile(f.RelativePath)
	s.byPath[f.RelativePath] = f
	s.byHash[f.Hexdigest] = append(s.byHash[f.Hexdigest], f)
}

func (s *Snapshotter) removeSnapshotFile(relPath string) {
	old, ok := s.byPath[relPath]
	if !ok {
		return
	}
	delete(s.byPath, relPath)
	files := s.byHash[old.Hexdigest]
	for i, f := range files {
		if f.RelativePath == relPath {
			s.byHash[old.Hexdigest] = append(files[:i], files[i+1:]...)
			break
		}
	}
	if len(s.byHash[old.Hexdigest]) == 0 {
		delete(s.byHash, old.Hexdigest)
	}
}

// GetSnapshotHashes returns the unique (hexdigest, size) set currently known.
func (s *Snapshotter) GetSnapshotHashes() []model.SnapshotHash {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.SnapshotHash, 0, len(s.byHash))
	for digest, files := range s.byHash {
		if len(files) == 0 {
			continue
		}
		out = append(out, model.SnapshotHash{Hexdigest: digest, Size: files[0].FileSize})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hexdigest < out[j].Hexdigest })
	return out
}

// GetSnapshotState returns the ordered SnapshotFile list, sorted by
// RelativePath.
func (s *Snapshotter) GetSnapshotState() model.SnapshotState {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := make([]model.SnapshotFile, 0, len(s.byPath))
	for _, f := range s.byPath {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelativePath < files[j].RelativePath })
	return model.SnapshotState{Files: files}
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it] = true
	}
	return out
}
