// Package credentials is the adapter's credential material: an encrypted
// box for the basic-auth header built once at construction (and the oauth
// client secret), plus a rotation manager for the oauth credential. Adapted
// from the teacher's pkg/credentials — the same seal-at-construction,
// decrypt-only-at-use shape and ManagedCredential rotation state machine,
// with the SQL-backed Store (database/sql, postgres) dropped: spec.md's "no
// persistence beyond process lifetime" non-goal means there is nothing to
// persist credentials into, so the store here is a process-memory box, not
// a database row. The AEAD itself moves from the teacher's crypto/aes+GCM to
// golang.org/x/crypto/chacha20poly1305, the pack's other AEAD construction —
// same key-then-nonce sealing shape, no block-cipher mode subtleties.
package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Box holds one secret, encrypted at rest in process memory. Sealing at
// construction and only decrypting at the point of use means a heap dump or
// log line can't trivially expose the plaintext, matching spec.md §7
// ("basic-auth header is built once at construction and never logged").
type Box struct {
	key        []byte
	ciphertext string
}

// NewBox seals plaintext under a freshly generated key.
func NewBox(plaintext string) (*Box, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	b := &Box{key: key}
	ct, err := b.encrypt(plaintext)
	if err != nil {
		return nil, err
	}
	b.ciphertext = ct
	return b, nil
}

// Reveal decrypts and returns the boxed plaintext.
func (b *Box) Reveal() (string, error) {
	return b.decrypt(b.ciphertext)
}

func (b *Box) encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := chacha20poly1305.New(b.key)
	if err != nil {
		return "", fmt.Errorf("create aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (b *Box) decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	aead, err := chacha20poly1305.New(b.key)
	if err != nil {
		return "", fmt.Errorf("create aead: %w", err)
	}
	if len(data) < aead.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, body := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}
