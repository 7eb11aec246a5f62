package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// associatedData is bound into every packet seal/open as the AEAD's
// associated data, per the wire protocol identifier.
const associatedData = "networkneuron"

// ErrAuthFail is returned when AEAD authentication fails (tag mismatch).
// Callers map this to CryptoError{AuthFail}.
var ErrAuthFail = errors.New("crypto: authentication failed")

// NonceSize is the XChaCha20-Poly1305 nonce length.
const NonceSize = chacha20poly1305.NonceSizeX

// Seal encrypts plaintext under key with a fresh random nonce, authenticating
// the fixed associated data string. Returns the nonce and ciphertext (which
// includes the appended Poly1305 tag).
func Seal(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, fmt.Errorf("new aead: %w", err)
	}
	nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext = aead.Seal(nil, nonce, plaintext, []byte(associatedData))
	return nonce, ciphertext, nil
}

// Open decrypts ciphertext sealed by Seal, returning ErrAuthFail on any tag
// or key mismatch rather than leaking the underlying cipher error.
func Open(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("new aead: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrAuthFail
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(associatedData))
	if err != nil {
		return nil, ErrAuthFail
	}
	return plaintext, nil
}

// SealWithAAD is like Seal but lets the caller override the associated data,
// used when a packet binds additional context (e.g. the route id) into the
// authenticated envelope.
func SealWithAAD(key, plaintext, aad []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, fmt.Errorf("new aead: %w", err)
	}
	nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext = aead.Seal(nil, nonce, plaintext, aad)
	return nonce, ciphertext, nil
}

// OpenWithAAD is the counterpart to SealWithAAD.
func OpenWithAAD(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("new aead: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrAuthFail
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthFail
	}
	return plaintext, nil
}
