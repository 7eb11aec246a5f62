// Package crypto provides this relay mesh's cryptographic primitives:
// hashing, node-identity derivation, signing, AEAD sealing, and key
// agreement.
package crypto

import (
	"github.com/Klingon-tech/networkneuron/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// DoubleHash computes Hash(Hash(data)).
func DoubleHash(data []byte) types.Hash {
	first := Hash(data)
	return Hash(first[:])
}

// NodeIDFromPubKey derives a node identifier from a compressed public key.
// NodeID = BLAKE3(compressed_pubkey)[:20].
func NodeIDFromPubKey(pubKey []byte) types.NodeID {
	return types.NodeIDFromHash(Hash(pubKey))
}

// HashConcat hashes the concatenation of two hashes.
// Used for building merkle trees.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}
