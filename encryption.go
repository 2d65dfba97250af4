package tetherdb

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// EncryptionKeySize is the key length for AES-256
const EncryptionKeySize = 32

// EncryptedStore wraps any KeyValueStore with AES-256-GCM encryption of values at rest.
//
// Keys stay in plain text so the engine keeps its ordering. Every value is
// sealed with a random nonce, which is stored in front of the ciphertext.
//
// Example:
//
//	key := make([]byte, 32) // Generate or load from a key file
//	rand.Read(key)
//	kv, _ := tetherdb.NewEncryptedStore(tetherdb.NewMemoryStore(), key)
//	store, _ := tetherdb.Open(cfg, tetherdb.WithKeyValueStore(kv))
type EncryptedStore struct {
	KeyValueStore
	aead cipher.AEAD
}

// NewEncryptedStore wraps kv with AES-256-GCM encryption.
// Key must be exactly 32 bytes for AES-256.
func NewEncryptedStore(kv KeyValueStore, key []byte) (*EncryptedStore, error) {
	if len(key) != EncryptionKeySize {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"expected_key_length": EncryptionKeySize,
			"actual_key_length":   len(key),
			"reason":              "AES-256 requires 32-byte key",
		})
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &EncryptedStore{KeyValueStore: kv, aead: aead}, nil
}

// Get decrypts the value after retrieving it
func (e *EncryptedStore) Get(key []byte) ([]byte, error) {
	sealed, err := e.KeyValueStore.Get(key)
	if err != nil {
		return nil, err
	}
	return e.decrypt(key, sealed)
}

// Put encrypts the value before storing it
func (e *EncryptedStore) Put(key, value []byte) error {
	sealed, err := e.encrypt(key, value)
	if err != nil {
		return fmt.Errorf("encryption failed: %w", err)
	}
	return e.KeyValueStore.Put(key, sealed)
}

// Ascend decrypts each value before handing it to fn. A value that fails to
// decrypt stops the iteration and is returned as the error.
func (e *EncryptedStore) Ascend(from []byte, fn func(key, value []byte) bool) error {
	var decryptErr error
	err := e.KeyValueStore.Ascend(from, func(key, sealed []byte) bool {
		value, err := e.decrypt(key, sealed)
		if err != nil {
			decryptErr = err
			return false
		}
		return fn(key, value)
	})
	if err != nil {
		return err
	}
	return decryptErr
}

// encrypt seals plaintext with a random nonce, bound to its key
func (e *EncryptedStore) encrypt(key, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Encrypt and prepend nonce to ciphertext
	return e.aead.Seal(nonce, nonce, plaintext, key), nil
}

// decrypt reverses encrypt
func (e *EncryptedStore) decrypt(key, sealed []byte) ([]byte, error) {
	nonceSize := e.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, WithContext(ErrInvalidData, map[string]interface{}{
			"key":        string(key),
			"reason":     "ciphertext too short",
			"min_length": nonceSize,
			"actual":     len(sealed),
		})
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, key)
	if err != nil {
		return nil, WithContext(ErrInvalidData, map[string]interface{}{
			"key":    string(key),
			"reason": "decryption failed",
		})
	}

	return plaintext, nil
}
