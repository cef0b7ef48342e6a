// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/nbassist/internal/util"
)

// =============================================================================
// CREDENTIAL SEALING
// =============================================================================

const (
	// SealedPrefix marks a sealed value (format: ENC:base64(nonce|ciphertext|tag)).
	SealedPrefix = "ENC:"

	// KeySize is the AES-256 key size.
	KeySize = 32
	// SaltSize is the PBKDF2 salt size.
	SaltSize = 32
	// PBKDF2Iterations follows the OWASP 2023 recommendation for SHA-256.
	PBKDF2Iterations = 600000
)

var (
	// ErrSealed is returned when a sealed value cannot be opened.
	ErrSealed = errors.New("credential is sealed")
	// ErrEmptyPassphrase is returned by NewSealer for an empty passphrase.
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")
)

// Sealer encrypts credentials with AES-256-GCM under a key derived from a
// passphrase. It is safe for concurrent use.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the sealing key from passphrase and salt.
func NewSealer(passphrase string, salt []byte) (*Sealer, error) {
	return newSealer(passphrase, salt, PBKDF2Iterations)
}

func newSealer(passphrase string, salt []byte, iterations int) (*Sealer, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if len(salt) < 16 {
		return nil, fmt.Errorf("salt too short: %d bytes", len(salt))
	}
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, KeySize, sha256.New)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext and returns it with the ENC: prefix.
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	if !IsSealed(sealed) {
		return "", fmt.Errorf("%w: missing %s prefix", ErrSealed, SealedPrefix)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: invalid encoding", ErrSealed)
	}
	ns := s.aead.NonceSize()
	if len(raw) < ns+s.aead.Overhead() {
		return "", fmt.Errorf("%w: value too short", ErrSealed)
	}
	plain, err := s.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: wrong passphrase or corrupted value", ErrSealed)
	}
	return string(plain), nil
}

// IsSealed reports whether v carries the ENC: prefix.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, SealedPrefix)
}

// LoadOrCreateSalt reads the salt file at path, creating it with a fresh
// random salt (0600) when it does not exist.
func LoadOrCreateSalt(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		salt, derr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if derr != nil {
			return nil, fmt.Errorf("invalid salt file %s: %w", path, derr)
		}
		return salt, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	enc := base64.StdEncoding.EncodeToString(salt) + "\n"
	if err := util.AtomicWriteFile(path, []byte(enc), 0600); err != nil {
		return nil, fmt.Errorf("failed to write salt: %w", err)
	}
	return salt, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
