// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package objectstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"golang.org/x/crypto/chacha20poly1305"
)

func TestNewProtectedBackendRejectsNeitherEnabled(t *testing.T) {
	_, err := NewProtectedBackend(NewMemoryBackend(), false, false, nil)
	if err == nil {
		t.Fatal("expected CompressionOrEncryptionRequired error")
	}
}

func TestNewProtectedBackendRejectsEncryptWithoutEncryptor(t *testing.T) {
	_, err := NewProtectedBackend(NewMemoryBackend(), false, true, nil)
	if err == nil {
		t.Fatal("expected error when encryption enabled without an encryptor")
	}
}

func TestProtectedBackendCompressOnly(t *testing.T) {
	ctx := context.Background()
	p, err := NewProtectedBackend(NewMemoryBackend(), true, false, nil)
	if err != nil {
		t.Fatalf("new protected backend: %v", err)
	}

	data := []byte("plaintext blob content")
	if err := p.UploadHexdigest(ctx, "h1", int64(len(data)), bytes.NewReader(data)); err != nil {
		t.Fatalf("upload: %v", err)
	}

	rc, err := p.DownloadHexdigest(ctx, "h1")
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

func TestProtectedBackendCompressAndEncrypt(t *testing.T) {
	ctx := context.Background()
	key := bytes.Repeat([]byte{0x07}, chacha20poly1305.KeySize)
	enc, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}

	p, err := NewProtectedBackend(NewMemoryBackend(), true, true, enc)
	if err != nil {
		t.Fatalf("new protected backend: %v", err)
	}

	doc := []byte(`{"attempt":7}`)
	if err := p.UploadJSON(ctx, "manifest", doc); err != nil {
		t.Fatalf("upload json: %v", err)
	}

	got, err := p.DownloadJSON(ctx, "manifest")
	if err != nil {
		t.Fatalf("download json: %v", err)
	}
	if !bytes.Equal(got, doc) {
		t.Fatalf("got %q, want %q", got, doc)
	}
}
