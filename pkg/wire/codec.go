package wire

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Klingon-tech/networkneuron/internal/errs"
)

// MaxPayloadSize bounds a single envelope's payload to keep a misbehaving
// peer from forcing an unbounded allocation on decode.
const MaxPayloadSize = 1 << 20 // 1 MiB

// Encode serializes an envelope to its canonical wire form:
// type(1) | msg_id(16) | timestamp_unix_nano(8) | source_id(20) | dest_id(20)
// | payload_len(4) | payload | sig_len(1) | signature
func Encode(e *Envelope) ([]byte, error) {
	if len(e.Payload) > MaxPayloadSize {
		return nil, errs.New(errs.WireDecode, e.MsgID.String(), fmt.Errorf("payload too large: %d bytes", len(e.Payload)))
	}
	if len(e.Signature) > 255 {
		return nil, errs.New(errs.WireDecode, e.MsgID.String(), fmt.Errorf("signature too large: %d bytes", len(e.Signature)))
	}

	buf := e.SigningBytes()
	buf = append(buf, byte(len(e.Signature)))
	buf = append(buf, e.Signature...)
	return buf, nil
}

// Decode parses the canonical wire form back into an Envelope. It does not
// verify the signature — callers must call Verify separately once the
// sender's public key is known. An unrecognized type tag is rejected with
// errs.WireUnknownType before any payload-specific handling runs; every
// other malformation is errs.WireDecode.
func Decode(data []byte) (*Envelope, error) {
	const fixedHeader = 1 + 16 + 8 + 20 + 20 + 4
	if len(data) < fixedHeader {
		return nil, errs.New(errs.WireDecode, "", fmt.Errorf("envelope too short: %d bytes", len(data)))
	}

	var e Envelope
	off := 0

	e.Type = Type(data[off])
	off++
	if !KnownType(e.Type) {
		return nil, errs.New(errs.WireUnknownType, fmt.Sprintf("%d", e.Type), nil)
	}

	copy(e.MsgID[:], data[off:off+16])
	off += 16

	nsec := int64(binary.LittleEndian.Uint64(data[off : off+8]))
	e.Timestamp = time.Unix(0, nsec).UTC()
	off += 8

	copy(e.SourceID[:], data[off:off+20])
	off += 20

	copy(e.DestID[:], data[off:off+20])
	off += 20

	payloadLen := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	if payloadLen > MaxPayloadSize {
		return nil, errs.New(errs.WireDecode, e.MsgID.String(), fmt.Errorf("declared payload length %d exceeds max", payloadLen))
	}
	if uint32(len(data)-off) < payloadLen {
		return nil, errs.New(errs.WireDecode, e.MsgID.String(), fmt.Errorf("truncated payload"))
	}
	e.Payload = append([]byte(nil), data[off:off+int(payloadLen)]...)
	off += int(payloadLen)

	if off >= len(data) {
		return nil, errs.New(errs.WireDecode, e.MsgID.String(), fmt.Errorf("missing signature length"))
	}
	sigLen := int(data[off])
	off++
	if len(data)-off < sigLen {
		return nil, errs.New(errs.WireDecode, e.MsgID.String(), fmt.Errorf("truncated signature"))
	}
	e.Signature = append([]byte(nil), data[off:off+sigLen]...)
	off += sigLen

	if off != len(data) {
		return nil, errs.New(errs.WireDecode, e.MsgID.String(), fmt.Errorf("trailing garbage after envelope"))
	}

	return &e, nil
}
