package ledger

import (
	"encoding/binary"
	"time"

	"github.com/Klingon-tech/networkneuron/pkg/crypto"
	"github.com/Klingon-tech/networkneuron/pkg/types"
)

// Kind identifies the effect a Transaction had on the ledger.
type Kind string

const (
	TxStake   Kind = "stake"
	TxUnstake Kind = "unstake"
	TxReward  Kind = "reward"
)

// Transaction is one signed entry in the ledger's append-only log.
// BalanceBefore/BalanceAfter describe the effect on Node's balance only;
// the counterparty pool account's balance moves inversely and is not
// separately logged, since it is always derivable from Kind and Amount.
type Transaction struct {
	TxID          string
	Kind          Kind
	Node          types.NodeID
	Amount        types.Amount
	BalanceBefore types.Amount
	BalanceAfter  types.Amount
	At            time.Time
	Signature     []byte
}

// CanonicalBytes returns the deterministic byte encoding signed over and
// verified against: any mutation of a signed field changes this encoding.
func (tx *Transaction) CanonicalBytes() []byte {
	buf := make([]byte, 0, len(tx.TxID)+len(tx.Kind)+types.NodeIDSize+8*3+8)
	buf = append(buf, []byte(tx.TxID)...)
	buf = append(buf, []byte(tx.Kind)...)
	buf = append(buf, tx.Node[:]...)
	buf = appendUint64(buf, uint64(tx.Amount))
	buf = appendUint64(buf, uint64(tx.BalanceBefore))
	buf = appendUint64(buf, uint64(tx.BalanceAfter))
	buf = appendUint64(buf, uint64(tx.At.Unix()))
	return buf
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// sign signs tx's canonical bytes with signer, setting tx.Signature.
func sign(tx *Transaction, signer *crypto.PrivateKey) error {
	hash := crypto.Hash(tx.CanonicalBytes())
	sig, err := signer.Sign(hash[:])
	if err != nil {
		return err
	}
	tx.Signature = sig
	return nil
}

// Verify recomputes tx's canonical bytes and checks the signature against
// pubKey, the way §4.8 requires every reader of the log to be able to.
func Verify(tx *Transaction, pubKey []byte) bool {
	hash := crypto.Hash(tx.CanonicalBytes())
	return crypto.VerifySignature(hash[:], tx.Signature, pubKey)
}
