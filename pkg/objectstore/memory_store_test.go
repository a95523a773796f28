// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package objectstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aiven/astacus/pkg/errors"
)

func TestMemoryBackendBlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	data := []byte("hello world")
	const hexdigest = "deadbeef"

	if err := m.UploadHexdigest(ctx, hexdigest, int64(len(data)), bytes.NewReader(data)); err != nil {
		t.Fatalf("upload: %v", err)
	}

	rc, err := m.DownloadHexdigest(ctx, hexdigest)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestMemoryBackendUploadHexdigestIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	data := []byte("payload")

	if err := m.UploadHexdigest(ctx, "abc123", int64(len(data)), bytes.NewReader(data)); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if err := m.UploadHexdigest(ctx, "abc123", int64(len(data)), bytes.NewReader(data)); err != nil {
		t.Fatalf("second upload should be idempotent, got: %v", err)
	}

	hexes, err := m.ListHexdigests(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(hexes) != 1 {
		t.Fatalf("want 1 hexdigest, got %d", len(hexes))
	}
}

func TestMemoryBackendDownloadMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	_, err := m.DownloadHexdigest(ctx, "missing")
	if err == nil {
		t.Fatal("expected error for missing hexdigest")
	}
	var structErr *errors.StructuredError
	if !asStructuredError(err, &structErr) {
		t.Fatalf("expected StructuredError, got %T: %v", err, err)
	}
	if structErr.Code != errors.ErrCodeNotFound {
		t.Fatalf("want ErrCodeNotFound, got %s", structErr.Code)
	}
}

func TestMemoryBackendDeleteHexdigest(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	data := []byte("x")

	if err := m.UploadHexdigest(ctx, "h1", int64(len(data)), bytes.NewReader(data)); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := m.DeleteHexdigest(ctx, "h1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.DeleteHexdigest(ctx, "h1"); err == nil {
		t.Fatal("expected error deleting already-deleted hexdigest")
	}
}

func TestMemoryBackendJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	doc := []byte(`{"attempt":1}`)
	if err := m.UploadJSON(ctx, "backup-1", doc); err != nil {
		t.Fatalf("upload: %v", err)
	}

	got, err := m.DownloadJSON(ctx, "backup-1")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !bytes.Equal(got, doc) {
		t.Fatalf("got %q, want %q", got, doc)
	}

	names, err := m.ListJSON(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != "backup-1" {
		t.Fatalf("unexpected names: %v", names)
	}

	if err := m.DeleteJSON(ctx, "backup-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.DownloadJSON(ctx, "backup-1"); err == nil {
		t.Fatal("expected error after delete")
	}
}

func TestMemoryBackendUploadJSONOverwriteSameName(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	if err := m.UploadJSON(ctx, "manifest", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if err := m.UploadJSON(ctx, "manifest", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("second upload: %v", err)
	}

	got, err := m.DownloadJSON(ctx, "manifest")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(got) != `{"v":2}` {
		t.Fatalf("got %q, want latest write", got)
	}
}

// asStructuredError is a small local helper mirroring errors.As without
// importing the stdlib errors package name into every test that only needs
// this one assertion shape.
func asStructuredError(err error, target **errors.StructuredError) bool {
	se, ok := err.(*errors.StructuredError)
	if !ok {
		return false
	}
	*target = se
	return true
}
