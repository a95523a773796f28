// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package objectstore

import (
	"bytes"
	"context"
	"io"

	"github.com/aiven/astacus/pkg/errors"
)

// ProtectedBackend wraps a Backend with compression and/or encryption
// applied to every blob and document, refusing to start if both are
// disabled: blobs must never land in the object store unprotected.
type ProtectedBackend struct {
	Backend
	compress   bool
	encrypt    bool
	compressor Compressor
	encryptor  *Encryptor
}

// NewProtectedBackend wraps backend, applying zstd compression and/or
// chacha20poly1305 encryption to data crossing the boundary. encryptor may
// be nil only if encrypt is false.
func NewProtectedBackend(backend Backend, compress, encrypt bool, encryptor *Encryptor) (*ProtectedBackend, error) {
	if !compress && !encrypt {
		return nil, errors.New(errors.ErrCodeCompressionOrEncryptionRequired,
			"object storage must enable compression, encryption, or both")
	}
	if encrypt && encryptor == nil {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "encryption enabled without an encryptor")
	}
	return &ProtectedBackend{
		Backend: backend,
		compress: compress,
		encrypt:  encrypt,
		encryptor: encryptor,
	}, nil
}

func (p *ProtectedBackend) seal(data []byte) ([]byte, error) {
	var err error
	if p.compress {
		if data, err = p.compressor.Compress(data); err != nil {
			return nil, err
		}
	}
	if p.encrypt {
		if data, err = p.encryptor.Encrypt(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (p *ProtectedBackend) open(data []byte) ([]byte, error) {
	var err error
	if p.encrypt {
		if data, err = p.encryptor.Decrypt(data); err != nil {
			return nil, err
		}
	}
	if p.compress {
		if data, err = p.compressor.Decompress(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// UploadHexdigest seals data before delegating to the wrapped backend.
// Note that the stored blob's on-disk size differs from the original
// content size once sealed; the hexdigest itself is always computed over
// the plaintext bytes, before this layer is reached.
func (p *ProtectedBackend) UploadHexdigest(ctx context.Context, hexdigest string, size int64, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	sealed, err := p.seal(raw)
	if err != nil {
		return err
	}
	return p.Backend.UploadHexdigest(ctx, hexdigest, int64(len(sealed)), bytes.NewReader(sealed))
}

// DownloadHexdigest downloads and opens (decrypts/decompresses) a blob.
func (p *ProtectedBackend) DownloadHexdigest(ctx context.Context, hexdigest string) (io.ReadCloser, error) {
	rc, err := p.Backend.DownloadHexdigest(ctx, hexdigest)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	sealed, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	raw, err := p.open(sealed)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

// UploadJSON seals a document before delegating.
func (p *ProtectedBackend) UploadJSON(ctx context.Context, name string, data []byte) error {
	sealed, err := p.seal(data)
	if err != nil {
		return err
	}
	return p.Backend.UploadJSON(ctx, name, sealed)
}

// DownloadJSON downloads and opens a document.
func (p *ProtectedBackend) DownloadJSON(ctx context.Context, name string) ([]byte, error) {
	sealed, err := p.Backend.DownloadJSON(ctx, name)
	if err != nil {
		return nil, err
	}
	return p.open(sealed)
}
