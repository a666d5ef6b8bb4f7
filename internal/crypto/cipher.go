// Package crypto encrypts small secrets (OAuth tokens, API keys) before they
// are stored in the database. AES-256-GCM with a locally persisted key.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	keyLength   = 32 // 256-bit key
	nonceLength = 12 // 96-bit GCM nonce
)

// ErrDecryption marks any failure to decode or authenticate an encrypted
// blob: bad base64, truncated data, tampered ciphertext, or wrong key.
var ErrDecryption = errors.New("decryption failed")

// Cipher encrypts and decrypts secrets with a key loaded from (or created at)
// a fixed file path.
type Cipher struct {
	keyPath string

	mu  sync.Mutex
	key []byte
}

// NewCipher returns a cipher whose key lives at keyPath. The key file is not
// touched until the first encrypt/decrypt call.
func NewCipher(keyPath string) *Cipher {
	return &Cipher{keyPath: keyPath}
}

// loadKey reads the key file, generating and persisting a fresh key on first
// use. Concurrent first runs may race; last writer wins, which is acceptable
// since this happens once per installation.
func (c *Cipher) loadKey() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key != nil {
		return c.key, nil
	}

	if data, err := os.ReadFile(c.keyPath); err == nil {
		if len(data) != keyLength {
			return nil, fmt.Errorf("encryption key at %s has invalid length %d", c.keyPath, len(data))
		}
		c.key = data
		return c.key, nil
	}

	key := make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating encryption key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.keyPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating key directory: %w", err)
	}
	// Write to a temp file first so a crash never leaves a partial key.
	tmp := c.keyPath + ".tmp"
	if err := os.WriteFile(tmp, key, 0o600); err != nil {
		return nil, fmt.Errorf("writing encryption key: %w", err)
	}
	if err := os.Rename(tmp, c.keyPath); err != nil {
		return nil, fmt.Errorf("writing encryption key: %w", err)
	}
	c.key = key
	return c.key, nil
}

func (c *Cipher) aead() (cipher.AEAD, error) {
	key, err := c.loadKey()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext+tag).
// Every call draws a fresh random nonce; nonces never repeat under one key.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aead, err := c.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Returns ErrDecryption for anything that is not a
// well-formed blob sealed under the current key.
func (c *Cipher) Decrypt(encrypted string) (string, error) {
	aead, err := c.aead()
	if err != nil {
		return "", err
	}
	combined, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: decoding base64: %v", ErrDecryption, err)
	}
	if len(combined) < nonceLength+1 {
		return "", fmt.Errorf("%w: encrypted data too short", ErrDecryption)
	}
	nonce, ciphertext := combined[:nonceLength], combined[nonceLength:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return string(plaintext), nil
}
