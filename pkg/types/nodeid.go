package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// NodeIDSize is the length of a node identifier in bytes (160-bit pubkey hash).
const NodeIDSize = 20

// NodeIDHRP is the human-readable part used when bech32-encoding a NodeID.
const NodeIDHRP = "nnode"

// NodeID is the stable identifier of a relay node, derived from the hash of
// its long-lived public key. It never changes for the lifetime of the node.
type NodeID [NodeIDSize]byte

// IsZero returns true if the node ID is all zeros.
func (n NodeID) IsZero() bool {
	return n == NodeID{}
}

// String returns the bech32-encoded node ID (e.g. "nnode1...").
func (n NodeID) String() string {
	s, err := Bech32Encode(NodeIDHRP, n[:])
	if err != nil {
		// Fallback to hex if encoding fails (should never happen for a fixed HRP).
		return NodeIDHRP + ":" + hex.EncodeToString(n[:])
	}
	return s
}

// Hex returns the raw hex encoding of the node ID, without any prefix.
func (n NodeID) Hex() string {
	return hex.EncodeToString(n[:])
}

// Bytes returns a copy of the node ID as a byte slice.
func (n NodeID) Bytes() []byte {
	b := make([]byte, NodeIDSize)
	copy(b, n[:])
	return b
}

// Less reports whether n sorts before other in lexicographic NodeID order.
// Used for the optimizer's tie-break rule and for stable distribution
// ordering in the reward engine.
func (n NodeID) Less(other NodeID) bool {
	return strings.Compare(string(n[:]), string(other[:])) < 0
}

// MarshalJSON encodes the node ID as a bech32 string.
func (n NodeID) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

// UnmarshalJSON decodes a bech32 or raw hex string into a node ID.
func (n *NodeID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*n = NodeID{}
		return nil
	}
	parsed, err := ParseNodeID(s)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// ParseNodeID parses a bech32 or raw 40-char hex string into a NodeID.
func ParseNodeID(s string) (NodeID, error) {
	if s == "" {
		return NodeID{}, fmt.Errorf("empty node id")
	}

	if strings.Contains(s, "1") && !isHex40(s) {
		_, data, err := Bech32Decode(s)
		if err != nil {
			return NodeID{}, fmt.Errorf("invalid bech32 node id: %w", err)
		}
		if len(data) != NodeIDSize {
			return NodeID{}, fmt.Errorf("node id must be %d bytes, got %d", NodeIDSize, len(data))
		}
		var n NodeID
		copy(n[:], data)
		return n, nil
	}

	decoded, err := hex.DecodeString(s)
	if err != nil {
		return NodeID{}, fmt.Errorf("invalid node id: %w", err)
	}
	if len(decoded) != NodeIDSize {
		return NodeID{}, fmt.Errorf("node id must be %d bytes, got %d", NodeIDSize, len(decoded))
	}
	var n NodeID
	copy(n[:], decoded)
	return n, nil
}

// NodeIDFromHash truncates a 256-bit hash to a NodeID (its first 20 bytes).
func NodeIDFromHash(h Hash) NodeID {
	var n NodeID
	copy(n[:], h[:NodeIDSize])
	return n
}

// isHex40 returns true if s is exactly 40 hex characters.
func isHex40(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
