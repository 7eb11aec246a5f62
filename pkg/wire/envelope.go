// Package wire defines the canonical message envelope exchanged between
// relay nodes and the codec used to serialize and sign it.
package wire

import (
	"encoding/binary"
	"time"

	"github.com/Klingon-tech/networkneuron/pkg/crypto"
	"github.com/Klingon-tech/networkneuron/pkg/types"
	"github.com/google/uuid"
)

// Type identifies the kind of message carried in an Envelope.
type Type uint8

const (
	TypeHandshake Type = iota + 1
	TypeNodeDiscovery
	TypeRouteRequest
	TypeRouteResponse
	TypeDataPacket
	TypeHeartbeat
	TypeBandwidthReport
	TypeError
)

func (t Type) String() string {
	switch t {
	case TypeHandshake:
		return "handshake"
	case TypeNodeDiscovery:
		return "node_discovery"
	case TypeRouteRequest:
		return "route_request"
	case TypeRouteResponse:
		return "route_response"
	case TypeDataPacket:
		return "data_packet"
	case TypeHeartbeat:
		return "heartbeat"
	case TypeBandwidthReport:
		return "bandwidth_report"
	case TypeError:
		return "error"
	default:
		return "unknown"
	}
}

// KnownType reports whether t is one of the defined message types. Decode
// callers use this to raise errs.WireUnknownType rather than silently
// accepting an unrecognized tag.
func KnownType(t Type) bool {
	return t >= TypeHandshake && t <= TypeError
}

// Envelope is the canonical binary message exchanged between peers.
// Every message crossing the wire, regardless of payload, is wrapped in one
// of these so replay protection and signature verification stay uniform.
type Envelope struct {
	Type      Type
	MsgID     uuid.UUID
	Timestamp time.Time
	SourceID  types.NodeID
	DestID    types.NodeID // zero value means "not addressed" (broadcast/local)
	Payload   []byte
	Signature []byte // Schnorr signature over SigningBytes(), by SourceID's key
}

// NewEnvelope builds an unsigned envelope with a fresh message id and the
// current timestamp. Callers sign it with Sign before sending.
func NewEnvelope(typ Type, source, dest types.NodeID, payload []byte) *Envelope {
	return &Envelope{
		Type:      typ,
		MsgID:     uuid.New(),
		Timestamp: time.Now().UTC(),
		SourceID:  source,
		DestID:    dest,
		Payload:   payload,
	}
}

// SigningBytes returns the canonical byte representation used both for
// signing and for replay/identity hashing. It deliberately excludes the
// Signature field itself.
//
// Format: type(1) | msg_id(16) | timestamp_unix_nano(8) | source_id(20) |
// dest_id(20) | payload_len(4) | payload
func (e *Envelope) SigningBytes() []byte {
	var buf []byte
	buf = append(buf, byte(e.Type))
	buf = append(buf, e.MsgID[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.Timestamp.UnixNano()))
	buf = append(buf, e.SourceID[:]...)
	buf = append(buf, e.DestID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Payload)))
	buf = append(buf, e.Payload...)
	return buf
}

// Hash returns the BLAKE3 hash of the envelope's signing bytes, used as the
// identity for replay tracking and logging.
func (e *Envelope) Hash() types.Hash {
	return crypto.Hash(e.SigningBytes())
}

// Sign computes and attaches the Schnorr signature over the envelope's
// signing hash using the given private key, which must belong to e.SourceID.
func (e *Envelope) Sign(pk *crypto.PrivateKey) error {
	h := e.Hash()
	sig, err := pk.Sign(h[:])
	if err != nil {
		return err
	}
	e.Signature = sig
	return nil
}

// Verify checks the envelope's signature against the given compressed
// public key.
func (e *Envelope) Verify(publicKey []byte) bool {
	h := e.Hash()
	return crypto.VerifySignature(h[:], e.Signature, publicKey)
}
