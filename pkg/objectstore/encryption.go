// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package objectstore

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Encryptor seals and opens blob bytes with chacha20poly1305. Key must be
// chacha20poly1305.KeySize (32) bytes.
type Encryptor struct {
	key []byte
}

// NewEncryptor builds an Encryptor from a raw key.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Encryptor{key: key}, nil
}

// Encrypt seals data with a fresh random nonce, prepended to the returned
// ciphertext.
func (e *Encryptor) Encrypt(data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(e.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, data, nil), nil
}

// Decrypt reverses Encrypt, reading the nonce from the ciphertext's prefix.
func (e *Encryptor) Decrypt(data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(e.key)
	if err != nil {
		return nil, err
	}
	if len(data) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce size")
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}
