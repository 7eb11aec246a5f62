package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

func newSHA256() hash.Hash { return sha256.New() }

// TunnelKeySize is the length of a derived per-peer-pair symmetric tunnel key.
const TunnelKeySize = chacha20poly1305KeySize

// chacha20poly1305KeySize mirrors chacha20poly1305.KeySize without importing
// the package just for a constant used in multiple files.
const chacha20poly1305KeySize = 32

// X25519Keypair is an ephemeral or long-lived Curve25519 keypair used only
// for the ECDH step that derives a per-peer tunnel key. It is distinct from
// the node's long-lived secp256k1 signing identity (pkg/crypto.PrivateKey).
type X25519Keypair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateX25519Keypair creates a new random X25519 keypair.
func GenerateX25519Keypair() (*X25519Keypair, error) {
	var kp X25519Keypair
	if _, err := rand.Read(kp.Private[:]); err != nil {
		return nil, fmt.Errorf("generate x25519 private key: %w", err)
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive x25519 public key: %w", err)
	}
	copy(kp.Public[:], pub)
	return &kp, nil
}

// ECDH computes the shared secret between our private key and a peer's
// public key.
func (kp *X25519Keypair) ECDH(peerPublic [32]byte) ([]byte, error) {
	shared, err := curve25519.X25519(kp.Private[:], peerPublic[:])
	if err != nil {
		return nil, fmt.Errorf("x25519 ecdh: %w", err)
	}
	return shared, nil
}

// DeriveTunnelKey stretches an ECDH shared secret plus a salt into a
// TunnelKeySize symmetric key via HKDF-SHA256. The salt is typically the
// sorted concatenation of the two peers' NodeIDs, so both sides derive an
// identical key regardless of which one initiated the handshake.
func DeriveTunnelKey(sharedSecret, salt []byte) ([]byte, error) {
	h := hkdf.New(newSHA256, sharedSecret, salt, []byte(associatedData))
	key := make([]byte, TunnelKeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return key, nil
}
