package wire

import (
	"testing"

	"github.com/Klingon-tech/networkneuron/pkg/crypto"
	"github.com/Klingon-tech/networkneuron/pkg/types"
)

func testKeyAndID(t *testing.T) (*crypto.PrivateKey, types.NodeID) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key, crypto.NodeIDFromPubKey(key.PublicKey())
}

func TestEnvelope_Sign_Verify(t *testing.T) {
	key, source := testKeyAndID(t)
	var dest types.NodeID

	e := NewEnvelope(TypeHeartbeat, source, dest, []byte("ping"))
	if err := e.Sign(key); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if !e.Verify(key.PublicKey()) {
		t.Error("Verify should succeed for the signing key")
	}

	other, _ := crypto.GenerateKey()
	if e.Verify(other.PublicKey()) {
		t.Error("Verify should fail for an unrelated key")
	}
}

func TestEnvelope_Sign_TamperedPayloadFailsVerify(t *testing.T) {
	key, source := testKeyAndID(t)
	var dest types.NodeID

	e := NewEnvelope(TypeDataPacket, source, dest, []byte("original"))
	if err := e.Sign(key); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	e.Payload = []byte("tampered")
	if e.Verify(key.PublicKey()) {
		t.Error("Verify should fail once payload is mutated after signing")
	}
}

func TestType_String(t *testing.T) {
	if TypeHandshake.String() != "handshake" {
		t.Errorf("got %q", TypeHandshake.String())
	}
	if Type(200).String() != "unknown" {
		t.Error("unrecognized type should stringify as unknown")
	}
}

func TestKnownType(t *testing.T) {
	if !KnownType(TypeDataPacket) {
		t.Error("TypeDataPacket should be known")
	}
	if KnownType(Type(0)) || KnownType(Type(9)) {
		t.Error("out-of-range types should not be known")
	}
}
