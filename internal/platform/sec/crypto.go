// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package sec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// FieldCipher encrypts and decrypts sensitive account fields (the national ID)
// with AES-256-GCM.
//
// # Key Management
//
// The key is injected at construction from configuration. No package-level
// key state exists: every component that needs field encryption receives its
// own [*FieldCipher] via its constructor.
//
// # Nonce
//
// A fresh random nonce is generated per encryption and prepended to the
// ciphertext, so encrypting the same value twice yields different outputs.
type FieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher builds a [FieldCipher] from a hex-encoded 32-byte key.
func NewFieldCipher(hexKey string) (*FieldCipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("sec: encryption key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("sec: encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to initialize cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to initialize GCM: %w", err)
	}

	return &FieldCipher{aead: aead}, nil
}

// Encrypt seals plainText and returns a base64 string of nonce||ciphertext.
func (c *FieldCipher) Encrypt(plainText string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("sec: failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plainText), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses [Encrypt]. It fails if the ciphertext was tampered with.
func (c *FieldCipher) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("sec: ciphertext is not valid base64: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("sec: ciphertext shorter than nonce")
	}

	nonce, cipherText := sealed[:nonceSize], sealed[nonceSize:]
	plainText, err := c.aead.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return "", fmt.Errorf("sec: failed to decrypt field: %w", err)
	}

	return string(plainText), nil
}
