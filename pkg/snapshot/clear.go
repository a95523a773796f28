// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aiven/astacus/pkg/model"
)

// ClearUnreferenced deletes every destination file not referenced by state,
// then drops their entries from the snapshotter's in-memory indices. This
// is the same cleanup DownloadFromStorage performs at the tail of a
// download, exposed standalone so an operator can clear stray destination
// files without running a full download.
func (s *Snapshotter) ClearUnreferenced(ctx context.Context, state model.SnapshotState, progress *model.Progress) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	referenced := make(map[string]bool, len(state.Files))
	for _, f := range state.Files {
		referenced[f.RelativePath] = true
	}

	existing, err := s.listFiles(s.Destination)
	if err != nil {
		return 0, fmt.Errorf("listing destination files: %w", err)
	}

	if progress != nil {
		progress.AddTotal(len(existing))
	}

	removed := 0
	for _, rel := range existing {
		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}

		if referenced[rel] {
			if progress != nil {
				progress.AddSuccess()
			}
			continue
		}

		if err := os.Remove(filepath.Join(s.Destination, rel)); err != nil && !os.IsNotExist(err) {
			if progress != nil {
				progress.AddFail()
			}
			return removed, fmt.Errorf("removing %s: %w", rel, err)
		}
		s.removeSnapshotFile(rel)
		removed++
		if progress != nil {
			progress.AddSuccess()
		}
	}

	if progress != nil {
		progress.MarkFinal()
	}
	return removed, nil
}
