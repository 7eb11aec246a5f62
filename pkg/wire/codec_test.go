package wire

import (
	"bytes"
	"testing"

	"github.com/Klingon-tech/networkneuron/internal/errs"
	"github.com/Klingon-tech/networkneuron/pkg/types"
)

func TestEncode_Decode_Roundtrip(t *testing.T) {
	key, source := testKeyAndID(t)
	dest := types.NodeID{0xAA, 0xBB}

	e := NewEnvelope(TypeRouteRequest, source, dest, []byte("payload bytes"))
	if err := e.Sign(key); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	data, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Type != e.Type || got.MsgID != e.MsgID || got.SourceID != e.SourceID || got.DestID != e.DestID {
		t.Errorf("decoded envelope fields mismatch: got %+v want %+v", got, e)
	}
	if !bytes.Equal(got.Payload, e.Payload) {
		t.Errorf("payload mismatch: got %q want %q", got.Payload, e.Payload)
	}
	if !bytes.Equal(got.Signature, e.Signature) {
		t.Error("signature mismatch after roundtrip")
	}
	if !got.Verify(key.PublicKey()) {
		t.Error("decoded envelope should still verify")
	}
}

func TestDecode_UnknownType(t *testing.T) {
	_, source := testKeyAndID(t)
	var dest types.NodeID
	e := NewEnvelope(TypeHeartbeat, source, dest, nil)
	data, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data[0] = 0xFF // corrupt the type tag

	_, err = Decode(data)
	if !errs.Is(err, errs.WireUnknownType) {
		t.Errorf("expected WireUnknownType, got %v", err)
	}
}

func TestDecode_TooShort(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	if !errs.Is(err, errs.WireDecode) {
		t.Errorf("expected WireDecode, got %v", err)
	}
}

func TestDecode_TruncatedPayload(t *testing.T) {
	_, source := testKeyAndID(t)
	var dest types.NodeID
	e := NewEnvelope(TypeDataPacket, source, dest, []byte("hello world"))
	data, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, err = Decode(data[:len(data)-5])
	if err == nil {
		t.Error("expected an error decoding truncated data")
	}
}
