// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package objectstore

import (
	"context"
	"io"

	"github.com/aiven/astacus/pkg/errors"
)

// HexDigestStorage stores content blobs keyed by their hexdigest. Uploads
// are idempotent by key. Download and Delete of a missing key fail with
// errors.ErrCodeNotFound.
type HexDigestStorage interface {
	UploadHexdigest(ctx context.Context, hexdigest string, size int64, data io.Reader) error
	DownloadHexdigest(ctx context.Context, hexdigest string) (io.ReadCloser, error)
	ListHexdigests(ctx context.Context) ([]string, error)
	DeleteHexdigest(ctx context.Context, hexdigest string) error
}

// JsonStorage stores named JSON documents; same shape as HexDigestStorage
// but keyed by an operator-chosen name instead of content hash.
type JsonStorage interface {
	UploadJSON(ctx context.Context, name string, data []byte) error
	DownloadJSON(ctx context.Context, name string) ([]byte, error)
	ListJSON(ctx context.Context) ([]string, error)
	DeleteJSON(ctx context.Context, name string) error
}

// Backend composes both storage capabilities, the shape one configured
// object-store target must provide.
type Backend interface {
	HexDigestStorage
	JsonStorage
}

// NotFound wraps a missing-key condition into astacus's structured error
// codes so callers can match on errors.ErrCodeNotFound regardless of which
// backend produced it.
func NotFound(kind, key string) error {
	return errors.New(errors.ErrCodeNotFound, kind+" not found: "+key)
}
