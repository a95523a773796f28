// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package objectstore

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Compressor zstd-compresses and decompresses blob bytes before they reach
// a Backend.
type Compressor struct{}

// Compress returns the zstd-compressed form of data.
func (Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func (Compressor) Decompress(data []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
