// Package cryptox holds the symmetric and signature primitives used to seal
// FeedKeeper objects before they reach the untrusted content store.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	// NonceSize is the AES-GCM nonce length stored next to every blob.
	NonceSize = 12
	// KeySize is the AES-256 key length derived from object secrets.
	KeySize = 32

	DataKeyInfo = "data encryption key"
)

var ErrDecrypt = errors.New("decryption failed")

// DeriveMasterKey stretches a password into the 32-byte master key from
// which the manifest location and secret are derived.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// DeriveKey expands secret with HKDF-SHA256 (empty salt) into n bytes bound to info.
func DeriveKey(secret []byte, info string, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return out, nil
}

// Seal encrypts plaintext with AES-256-GCM under the data key derived from
// secret. A fresh random nonce is generated per call.
func Seal(secret, plaintext []byte) (ciphertext, nonce []byte, err error) {
	aead, err := newAEAD(secret)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open reverses Seal. Authentication failures are reported as ErrDecrypt.
func Open(secret, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := newAEAD(secret)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce size %d", ErrDecrypt, len(nonce))
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newAEAD(secret []byte) (cipher.AEAD, error) {
	key, err := DeriveKey(secret, DataKeyInfo, KeySize)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// GenerateSigningKey returns a fresh Ed25519 key pair for interaction signatures.
func GenerateSigningKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

func Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// Verify reports whether sig is a valid signature of msg by pub.
// Keys of the wrong length never verify.
func Verify(pub []byte, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}
