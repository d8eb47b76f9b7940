// Package vault provides the security primitives of repairdesk: AES-GCM
// sealing of session cookies and self-signed TLS certificates.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMalformed is returned when a sealed value cannot be decoded.
	ErrMalformed = errors.New("sealed value is malformed")
	// ErrTampered is returned when authentication of a sealed value fails.
	ErrTampered = errors.New("decryption failed (wrong key or tampered data)")
)

// Sealer encrypts and authenticates short values with AES-GCM. The purpose
// string is bound as additional data, so a value sealed for one purpose
// cannot be opened as another.
type Sealer struct {
	gcm     cipher.AEAD
	purpose []byte
}

// NewSealer builds a Sealer from a 16, 24 or 32 byte key.
func NewSealer(key []byte, purpose string) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{gcm: gcm, purpose: []byte(purpose)}, nil
}

// NewSealerHex builds a Sealer from a hex-encoded key, as found in config.
func NewSealerHex(hexKey, purpose string) (*Sealer, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode sealing key: %w", err)
	}
	return NewSealer(key, purpose)
}

// Seal returns the hex encoding of nonce || ciphertext.
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	return hex.EncodeToString(s.gcm.Seal(nonce, nonce, []byte(plaintext), s.purpose)), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := hex.DecodeString(sealed)
	if err != nil {
		return "", ErrMalformed
	}
	nonceSize := s.gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrMalformed
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, s.purpose)
	if err != nil {
		return "", ErrTampered
	}
	return string(plaintext), nil
}
