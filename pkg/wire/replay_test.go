package wire

import (
	"testing"

	"github.com/Klingon-tech/networkneuron/pkg/crypto"
	"github.com/Klingon-tech/networkneuron/pkg/types"
	"github.com/google/uuid"
)

func TestReplayGuard_FirstSeenIsNotReplay(t *testing.T) {
	g := NewReplayGuard()
	source := types.NodeID{0x01}
	id := uuid.New()

	if g.Check(source, id) {
		t.Error("first observation should not be flagged as replay")
	}
}

func TestReplayGuard_DuplicateIsReplay(t *testing.T) {
	g := NewReplayGuard()
	source := types.NodeID{0x01}
	id := uuid.New()

	g.Check(source, id)
	if !g.Check(source, id) {
		t.Error("second observation of the same id should be flagged as replay")
	}
}

func TestReplayGuard_DifferentPeersIndependent(t *testing.T) {
	g := NewReplayGuard()
	id := uuid.New()
	peerA := types.NodeID{0x01}
	peerB := types.NodeID{0x02}

	g.Check(peerA, id)
	if g.Check(peerB, id) {
		t.Error("the same msg id from a different peer should not collide")
	}
}

func TestReplayGuard_Forget(t *testing.T) {
	g := NewReplayGuard()
	source := types.NodeID{0x01}
	id := uuid.New()

	g.Check(source, id)
	g.Forget(source)

	if g.Check(source, id) {
		t.Error("after Forget, the id should be treated as unseen")
	}
}

func TestAccept_RejectsReplay(t *testing.T) {
	key, source := testKeyAndID(t)
	var dest types.NodeID
	guard := NewReplayGuard()

	e := NewEnvelope(TypeHeartbeat, source, dest, []byte("x"))
	if err := e.Sign(key); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	data, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := Accept(data, key.PublicKey(), guard); err != nil {
		t.Fatalf("first Accept should succeed: %v", err)
	}
	if _, err := Accept(data, key.PublicKey(), guard); err == nil {
		t.Error("second Accept of the same envelope should be rejected as a replay")
	}
}

func TestAccept_RejectsBadSignature(t *testing.T) {
	key, source := testKeyAndID(t)
	var dest types.NodeID
	guard := NewReplayGuard()

	e := NewEnvelope(TypeHeartbeat, source, dest, []byte("x"))
	if err := e.Sign(key); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	data, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	other, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate other key: %v", err)
	}
	if _, err := Accept(data, other.PublicKey(), guard); err == nil {
		t.Error("Accept should reject a signature that doesn't match the given public key")
	}
}
