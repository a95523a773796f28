// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package snapshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/aiven/astacus/pkg/model"
	"github.com/aiven/astacus/pkg/objectstore"
)

func TestDownloadFromStorageMaterializesFiles(t *testing.T) {
	uploaderSource := New(t.TempDir(), t.TempDir(), []string{"**/*"}, nil)
	writeFile(t, uploaderSource.Source, "a.txt", "shared content")
	writeFile(t, uploaderSource.Source, "b.txt", "shared content")
	writeFile(t, uploaderSource.Source, "c.txt", "different content")

	ctx := context.Background()
	if _, err := uploaderSource.Snapshot(ctx, &model.Progress{}); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	backend := objectstore.NewMemoryBackend()
	if err := uploaderSource.WriteHashesToStorage(ctx, uploaderSource.GetSnapshotHashes(), backend, &model.Progress{}, nil); err != nil {
		t.Fatalf("upload: %v", err)
	}
	state := uploaderSource.GetSnapshotState()

	downloader, _, destination := newTestSnapshotter(t)
	progress := &model.Progress{}
	if err := downloader.DownloadFromStorage(ctx, state, backend, progress, 4); err != nil {
		t.Fatalf("download: %v", err)
	}
	if !progress.FinishedSuccessfully() {
		t.Fatalf("expected progress to finish successfully: %+v", progress)
	}

	for _, want := range []struct{ name, content string }{
		{"a.txt", "shared content"},
		{"b.txt", "shared content"},
		{"c.txt", "different content"},
	} {
		got, err := os.ReadFile(filepath.Join(destination, want.name))
		if err != nil {
			t.Fatalf("read %s: %v", want.name, err)
		}
		if string(got) != want.content {
			t.Fatalf("%s: got %q, want %q", want.name, got, want.content)
		}
	}
}

func TestDownloadFromStorageSkipsContentEqualFiles(t *testing.T) {
	downloader, _, _ := newTestSnapshotter(t)
	writeFile(t, downloader.Destination, "a.txt", "unchanged")
	writeFile(t, downloader.Source, "a.txt", "unchanged")
	if _, err := downloader.Snapshot(context.Background(), &model.Progress{}); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	state := downloader.GetSnapshotState()
	backend := objectstore.NewMemoryBackend() // empty; a real download would fail

	progress := &model.Progress{}
	if err := downloader.DownloadFromStorage(context.Background(), state, backend, progress, 2); err != nil {
		t.Fatalf("download should skip the already-current file: %v", err)
	}
	if progress.Failed != 0 {
		t.Fatalf("expected no failures, got %d", progress.Failed)
	}
}

func TestDownloadFromStorageDecodesInlinePayload(t *testing.T) {
	downloader, _, destination := newTestSnapshotter(t)
	content := []byte("small inline content")
	state := model.SnapshotState{
		Files: []model.SnapshotFile{
			{RelativePath: "inline.txt", ContentB64: base64.StdEncoding.EncodeToString(content), FileSize: int64(len(content))},
		},
	}

	backend := objectstore.NewMemoryBackend()
	if err := downloader.DownloadFromStorage(context.Background(), state, backend, &model.Progress{}, 1); err != nil {
		t.Fatalf("download: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(destination, "inline.txt"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("got %q, want %q", got, content)
	}
}

func TestDownloadFromStorageRemovesUnreferencedFiles(t *testing.T) {
	downloader, _, destination := newTestSnapshotter(t)
	writeFile(t, downloader.Destination, "stale.txt", "old")

	backend := objectstore.NewMemoryBackend()
	state := model.SnapshotState{}
	if err := downloader.DownloadFromStorage(context.Background(), state, backend, &model.Progress{}, 1); err != nil {
		t.Fatalf("download: %v", err)
	}

	if _, err := os.Stat(filepath.Join(destination, "stale.txt")); !os.IsNotExist(err) {
		t.Fatal("expected stale destination file to be removed")
	}
}
