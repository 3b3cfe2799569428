// Package cryptox seals opaque blobs at rest with AES-GCM, deriving the
// cipher key from a shared secret with argon2id.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
)

var ErrInvalidBlob = errors.New("cryptox: invalid sealed blob")

// DeriveKey stretches the secret into a 32-byte AES key.
func DeriveKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

// Seal encrypts the plaintext and returns nonce||ciphertext. A fresh random
// nonce is generated for every call.
func Seal(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal. A truncated or tampered blob, or
// a blob sealed with a different key, yields ErrInvalidBlob.
func Open(blob []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(blob) < aesgcm.NonceSize() {
		return nil, ErrInvalidBlob
	}

	nonce, ciphertext := blob[:aesgcm.NonceSize()], blob[aesgcm.NonceSize():]
	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidBlob
	}
	return plaintext, nil
}
