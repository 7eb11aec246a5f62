package ledger

import (
	"testing"
	"time"

	"github.com/Klingon-tech/networkneuron/pkg/crypto"
	"github.com/Klingon-tech/networkneuron/pkg/types"
)

func TestSignVerify_Roundtrip(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var node types.NodeID
	node[0] = 0x1
	tx := &Transaction{
		TxID:          "tx-1",
		Kind:          TxStake,
		Node:          node,
		Amount:        1000,
		BalanceBefore: 10000,
		BalanceAfter:  9000,
		At:            time.Unix(1700000000, 0),
	}
	if err := sign(tx, signer); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !Verify(tx, signer.PublicKey()) {
		t.Error("expected signature to verify against the signer's public key")
	}
}

func TestVerify_RejectsWrongKey(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	other, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var node types.NodeID
	tx := &Transaction{TxID: "tx-2", Kind: TxReward, Node: node, Amount: 1, At: time.Unix(1700000000, 0)}
	if err := sign(tx, signer); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if Verify(tx, other.PublicKey()) {
		t.Error("expected verification against a different key to fail")
	}
}

func TestCanonicalBytes_DifferByField(t *testing.T) {
	var node types.NodeID
	base := &Transaction{TxID: "tx-3", Kind: TxStake, Node: node, Amount: 100, At: time.Unix(1700000000, 0)}
	changed := *base
	changed.Amount = 200

	if string(base.CanonicalBytes()) == string(changed.CanonicalBytes()) {
		t.Error("expected canonical bytes to differ when amount changes")
	}
}
