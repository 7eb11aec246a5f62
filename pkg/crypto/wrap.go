package crypto

import "fmt"

// WrappedKey is a per-message symmetric key sealed to a recipient's X25519
// public key. No forwarding path uses it: there is no per-route choice of
// key mode, and Router.Forward always seals with the per-peer tunnel key.
type WrappedKey struct {
	EphemeralPublic [32]byte // sender's one-time X25519 public key
	Nonce           []byte
	Ciphertext      []byte // the wrapped symmetric key
}

// WrapKey seals plainKey to recipientPublic using an ephemeral X25519
// keypair plus HKDF-derived key, the same construction used for the tunnel
// key but scoped to a single message.
func WrapKey(plainKey []byte, recipientPublic [32]byte) (*WrappedKey, error) {
	eph, err := GenerateX25519Keypair()
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral keypair: %w", err)
	}
	shared, err := eph.ECDH(recipientPublic)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}
	wrapKey, err := DeriveTunnelKey(shared, append(eph.Public[:], recipientPublic[:]...))
	if err != nil {
		return nil, fmt.Errorf("derive wrap key: %w", err)
	}
	nonce, ciphertext, err := Seal(wrapKey, plainKey)
	if err != nil {
		return nil, fmt.Errorf("seal key: %w", err)
	}
	return &WrappedKey{EphemeralPublic: eph.Public, Nonce: nonce, Ciphertext: ciphertext}, nil
}

// UnwrapKey recovers the symmetric key sealed by WrapKey using the
// recipient's private key.
func UnwrapKey(w *WrappedKey, recipient *X25519Keypair) ([]byte, error) {
	shared, err := recipient.ECDH(w.EphemeralPublic)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}
	wrapKey, err := DeriveTunnelKey(shared, append(w.EphemeralPublic[:], recipient.Public[:]...))
	if err != nil {
		return nil, fmt.Errorf("derive wrap key: %w", err)
	}
	plainKey, err := Open(wrapKey, w.Nonce, w.Ciphertext)
	if err != nil {
		return nil, err // ErrAuthFail
	}
	return plainKey, nil
}
