// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package objectstore

import (
	"encoding/hex"
	"fmt"

	"github.com/aiven/astacus/pkg/config"
)

// BuildBackend constructs the Backend named cfg.Default from cfg's storage
// map, wrapped in compression/encryption per cfg's settings. This is the
// one place cmd/astacus needs to turn configuration into a live backend.
func BuildBackend(cfg config.ObjectStorageConfig) (Backend, error) {
	storageCfg, ok := cfg.Storages[cfg.Default]
	if !ok {
		return nil, fmt.Errorf("object storage: no storage configured for default %q", cfg.Default)
	}

	backend, err := NewOrasBackend(storageCfg.Storage, false, false)
	if err != nil {
		return nil, fmt.Errorf("object storage: building oras backend: %w", err)
	}

	var encryptor *Encryptor
	if cfg.Encryption {
		key, err := hex.DecodeString(cfg.EncryptionKeyHex)
		if err != nil {
			return nil, fmt.Errorf("object storage: decoding encryption_key_hex: %w", err)
		}
		encryptor, err = NewEncryptor(key)
		if err != nil {
			return nil, fmt.Errorf("object storage: building encryptor: %w", err)
		}
	}

	return NewProtectedBackend(backend, cfg.Compression, cfg.Encryption, encryptor)
}
