package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/Klingon-tech/networkneuron/internal/errs"
	"github.com/Klingon-tech/networkneuron/pkg/crypto"
	"github.com/Klingon-tech/networkneuron/pkg/types"
	"github.com/Klingon-tech/networkneuron/pkg/wire"
)

// handshakeTimeout bounds a complete handshake exchange, mirroring the
// teacher's fixed handshakeTimeout constant.
const handshakeTimeout = 10 * time.Second

// protocolVersion is advertised in every handshake; peers below
// minProtocolVersion are rejected.
const (
	protocolVersion    = 1
	minProtocolVersion = 1
)

// handshakeInfo is the payload carried inside a TypeHandshake envelope.
type handshakeInfo struct {
	PublicKey       []byte   `json:"public_key"`
	TunnelPublicKey []byte   `json:"tunnel_public_key"`
	Capabilities    []string `json:"capabilities"`
	Region          string   `json:"region"`
	ProtocolVersion uint32   `json:"protocol_version"`
}

func buildHandshakeEnvelope(identity *crypto.PrivateKey, tunnelKeypair *crypto.X25519Keypair, nodeID types.NodeID, caps []string, region string) (*wire.Envelope, error) {
	info := handshakeInfo{
		PublicKey:       identity.PublicKey(),
		TunnelPublicKey: tunnelKeypair.Public[:],
		Capabilities:    caps,
		Region:          region,
		ProtocolVersion: protocolVersion,
	}
	payload, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal handshake payload: %w", err)
	}
	e := wire.NewEnvelope(wire.TypeHandshake, nodeID, types.NodeID{}, payload)
	if err := e.Sign(identity); err != nil {
		return nil, fmt.Errorf("sign handshake: %w", err)
	}
	return e, nil
}

// parseHandshakeEnvelope validates a received handshake envelope. Unlike
// steady-state traffic, a handshake cannot be checked with wire.Accept
// because the sender's public key is not yet known — it arrives inside the
// payload being verified. So this performs the equivalent checks in order
// (decode already done by the caller; here: public key consistency, then
// signature, then protocol compatibility, then tunnel key shape).
func parseHandshakeEnvelope(e *wire.Envelope) (handshakeInfo, error) {
	var info handshakeInfo
	if e.Type != wire.TypeHandshake {
		return info, errs.New(errs.WireUnknownType, e.SourceID.String(), fmt.Errorf("expected handshake, got %s", e.Type))
	}
	if err := json.Unmarshal(e.Payload, &info); err != nil {
		return info, errs.New(errs.WireDecode, e.SourceID.String(), err)
	}
	if crypto.NodeIDFromPubKey(info.PublicKey) != e.SourceID {
		return info, errs.New(errs.PeerHandshakeFail, e.SourceID.String(), fmt.Errorf("public key does not hash to source_id"))
	}
	if !e.Verify(info.PublicKey) {
		return info, errs.New(errs.WireBadSignature, e.SourceID.String(), nil)
	}
	if info.ProtocolVersion < minProtocolVersion {
		return info, errs.New(errs.PeerHandshakeFail, e.SourceID.String(), fmt.Errorf("protocol version %d below minimum %d", info.ProtocolVersion, minProtocolVersion))
	}
	if len(info.TunnelPublicKey) != 32 {
		return info, errs.New(errs.PeerHandshakeFail, e.SourceID.String(), fmt.Errorf("tunnel public key must be 32 bytes, got %d", len(info.TunnelPublicKey)))
	}
	return info, nil
}

// dialHandshake performs the dialer side of a handshake: send our
// handshake, then read and validate the peer's.
func dialHandshake(conn net.Conn, identity *crypto.PrivateKey, tunnelKeypair *crypto.X25519Keypair, localID types.NodeID, caps []string, region string) (types.NodeID, handshakeInfo, error) {
	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetDeadline(time.Time{})

	ours, err := buildHandshakeEnvelope(identity, tunnelKeypair, localID, caps, region)
	if err != nil {
		return types.NodeID{}, handshakeInfo{}, err
	}
	oursEncoded, err := wire.Encode(ours)
	if err != nil {
		return types.NodeID{}, handshakeInfo{}, err
	}
	if err := writeFrame(conn, oursEncoded); err != nil {
		return types.NodeID{}, handshakeInfo{}, fmt.Errorf("send handshake: %w", err)
	}

	data, err := readFrame(conn)
	if err != nil {
		return types.NodeID{}, handshakeInfo{}, fmt.Errorf("read handshake response: %w", err)
	}
	theirs, err := wire.Decode(data)
	if err != nil {
		return types.NodeID{}, handshakeInfo{}, err
	}
	info, err := parseHandshakeEnvelope(theirs)
	if err != nil {
		return types.NodeID{}, handshakeInfo{}, err
	}
	return theirs.SourceID, info, nil
}

// acceptHandshake performs the listener side: read the dialer's handshake,
// validate it, then respond with our own.
func acceptHandshake(conn net.Conn, identity *crypto.PrivateKey, tunnelKeypair *crypto.X25519Keypair, localID types.NodeID, caps []string, region string) (types.NodeID, handshakeInfo, error) {
	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetDeadline(time.Time{})

	data, err := readFrame(conn)
	if err != nil {
		return types.NodeID{}, handshakeInfo{}, fmt.Errorf("read handshake: %w", err)
	}
	theirs, err := wire.Decode(data)
	if err != nil {
		return types.NodeID{}, handshakeInfo{}, err
	}
	info, err := parseHandshakeEnvelope(theirs)
	if err != nil {
		return types.NodeID{}, handshakeInfo{}, err
	}

	ours, err := buildHandshakeEnvelope(identity, tunnelKeypair, localID, caps, region)
	if err != nil {
		return types.NodeID{}, handshakeInfo{}, err
	}
	oursEncoded, err := wire.Encode(ours)
	if err != nil {
		return types.NodeID{}, handshakeInfo{}, err
	}
	if err := writeFrame(conn, oursEncoded); err != nil {
		return types.NodeID{}, handshakeInfo{}, fmt.Errorf("send handshake response: %w", err)
	}

	return theirs.SourceID, info, nil
}

// deriveTunnelKey computes the symmetric key for traffic exchanged with
// peer, via ECDH between our tunnel keypair and the peer's advertised
// tunnel public key, stretched with HKDF. The salt is the sorted
// concatenation of both NodeIDs, per pkg/crypto.DeriveTunnelKey's contract,
// so both sides of the handshake land on an identical key regardless of
// which one dialed.
func deriveTunnelKey(ours *crypto.X25519Keypair, local, remote types.NodeID, peerTunnelKey []byte) ([]byte, error) {
	var peerPub [32]byte
	copy(peerPub[:], peerTunnelKey)

	shared, err := ours.ECDH(peerPub)
	if err != nil {
		return nil, fmt.Errorf("tunnel ecdh with %s: %w", remote, err)
	}

	var salt []byte
	if local.Less(remote) {
		salt = append(append([]byte{}, local.Bytes()...), remote.Bytes()...)
	} else {
		salt = append(append([]byte{}, remote.Bytes()...), local.Bytes()...)
	}

	key, err := crypto.DeriveTunnelKey(shared, salt)
	if err != nil {
		return nil, fmt.Errorf("derive tunnel key for %s: %w", remote, err)
	}
	return key, nil
}
