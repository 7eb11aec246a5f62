package ledger

import (
	"testing"

	"github.com/Klingon-tech/networkneuron/internal/errs"
	"github.com/Klingon-tech/networkneuron/internal/storage"
	"github.com/Klingon-tech/networkneuron/pkg/crypto"
	"github.com/Klingon-tech/networkneuron/pkg/types"
)

func newTestLedger(t *testing.T, store *Store) *Ledger {
	t.Helper()
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return New(signer, 1000, 0, store)
}

func TestLedger_Stake_MovesBalanceToStake(t *testing.T) {
	l := newTestLedger(t, nil)
	var node types.NodeID
	node[0] = 0x1
	l.SeedBalance(node, 10000)

	tx, err := l.Stake(node, 5000)
	if err != nil {
		t.Fatalf("Stake: %v", err)
	}
	if l.Balance(node) != 5000 {
		t.Errorf("balance = %d, want 5000", l.Balance(node))
	}
	if l.StakeOf(node) != 5000 {
		t.Errorf("stake = %d, want 5000", l.StakeOf(node))
	}
	if tx.Kind != TxStake {
		t.Errorf("tx.Kind = %q, want %q", tx.Kind, TxStake)
	}
	if !l.Verify(tx) {
		t.Error("expected the stake transaction to verify")
	}
}

func TestLedger_Stake_InsufficientBalance(t *testing.T) {
	l := newTestLedger(t, nil)
	var node types.NodeID
	node[0] = 0x2
	l.SeedBalance(node, 100)

	_, err := l.Stake(node, 5000)
	if !errs.Is(err, errs.LedgerInsufficientBalance) {
		t.Fatalf("expected LedgerInsufficientBalance, got %v", err)
	}
}

func TestLedger_Stake_BelowMinStake(t *testing.T) {
	l := newTestLedger(t, nil)
	var node types.NodeID
	node[0] = 0x3
	l.SeedBalance(node, 10000)

	_, err := l.Stake(node, 999)
	if !errs.Is(err, errs.LedgerMinStakeNotMet) {
		t.Fatalf("expected LedgerMinStakeNotMet, got %v", err)
	}
}

func TestLedger_Stake_ExactlyMinStakeSucceeds(t *testing.T) {
	l := newTestLedger(t, nil)
	var node types.NodeID
	node[0] = 0x4
	l.SeedBalance(node, 10000)

	if _, err := l.Stake(node, 1000); err != nil {
		t.Fatalf("expected stake == min_stake to succeed, got %v", err)
	}
}

func TestLedger_StakeThenUnstake_RestoresBalance(t *testing.T) {
	l := newTestLedger(t, nil)
	var node types.NodeID
	node[0] = 0x5
	l.SeedBalance(node, 10000)

	if _, err := l.Stake(node, 5000); err != nil {
		t.Fatalf("Stake: %v", err)
	}
	if _, err := l.Unstake(node, 5000); err != nil {
		t.Fatalf("Unstake: %v", err)
	}

	if l.Balance(node) != 10000 {
		t.Errorf("balance = %d, want 10000", l.Balance(node))
	}
	if l.StakeOf(node) != 0 {
		t.Errorf("stake = %d, want 0", l.StakeOf(node))
	}
	if got := len(l.TransactionHistory(&node, 0)); got != 2 {
		t.Errorf("expected 2 new log entries, got %d", got)
	}
}

func TestLedger_Unstake_InsufficientStake(t *testing.T) {
	l := newTestLedger(t, nil)
	var node types.NodeID
	node[0] = 0x6

	_, err := l.Unstake(node, 1)
	if !errs.Is(err, errs.LedgerInsufficientStake) {
		t.Fatalf("expected LedgerInsufficientStake, got %v", err)
	}
}

func TestLedger_CreditReward_DebitsPoolCreditsNode(t *testing.T) {
	l := newTestLedger(t, nil)
	l.SeedRewardPool(10000)
	var node types.NodeID
	node[0] = 0x7

	tx, err := l.CreditReward(node, 95)
	if err != nil {
		t.Fatalf("CreditReward: %v", err)
	}
	if l.Balance(node) != 95 {
		t.Errorf("balance = %d, want 95", l.Balance(node))
	}
	if l.Balance(RewardPoolAccount) != 9905 {
		t.Errorf("reward pool balance = %d, want 9905", l.Balance(RewardPoolAccount))
	}
	if tx.Kind != TxReward {
		t.Errorf("tx.Kind = %q, want %q", tx.Kind, TxReward)
	}
}

func TestLedger_CreditReward_InsufficientPool(t *testing.T) {
	l := newTestLedger(t, nil)
	l.SeedRewardPool(50)
	var node types.NodeID
	node[0] = 0x8

	_, err := l.CreditReward(node, 95)
	if !errs.Is(err, errs.LedgerInsufficientRewardPool) {
		t.Fatalf("expected LedgerInsufficientRewardPool, got %v", err)
	}
}

func TestLedger_Verify_RejectsMutatedTransaction(t *testing.T) {
	l := newTestLedger(t, nil)
	var node types.NodeID
	node[0] = 0x9
	l.SeedBalance(node, 10000)

	tx, err := l.Stake(node, 1000)
	if err != nil {
		t.Fatalf("Stake: %v", err)
	}
	tx.Amount = 9999
	if l.Verify(tx) {
		t.Error("expected verification to fail after mutating a signed field")
	}
}

func TestLedger_TransactionHistory_FiltersByNode(t *testing.T) {
	l := newTestLedger(t, nil)
	var a, b types.NodeID
	a[0], b[0] = 0xA, 0xB
	l.SeedBalance(a, 10000)
	l.SeedBalance(b, 10000)

	if _, err := l.Stake(a, 1000); err != nil {
		t.Fatalf("Stake a: %v", err)
	}
	if _, err := l.Stake(b, 1000); err != nil {
		t.Fatalf("Stake b: %v", err)
	}

	hist := l.TransactionHistory(&a, 0)
	if len(hist) != 1 || hist[0].Node != a {
		t.Errorf("expected one entry for node a, got %+v", hist)
	}
}

func TestLedger_TransactionHistory_RingBufferEvicts(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	l := New(signer, 0, 3, nil)
	var node types.NodeID
	node[0] = 0xC
	l.SeedBalance(node, 1_000_000)
	l.SeedRewardPool(1_000_000)

	for i := 0; i < 5; i++ {
		if _, err := l.CreditReward(node, 1); err != nil {
			t.Fatalf("CreditReward %d: %v", i, err)
		}
	}

	if got := len(l.TransactionHistory(nil, 0)); got != 3 {
		t.Errorf("expected the log capped at 3 entries, got %d", got)
	}
}

func TestLedger_Recover_ReplaysJournalFromSnapshot(t *testing.T) {
	db := storage.NewMemory()
	store := NewStore(db)

	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	l := New(signer, 1000, 0, store)

	var node types.NodeID
	node[0] = 0xD
	l.SeedBalance(node, 10000)
	l.SeedRewardPool(10000)

	if _, err := l.Stake(node, 5000); err != nil {
		t.Fatalf("Stake: %v", err)
	}
	if err := l.Snapshot(); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if _, err := l.CreditReward(node, 42); err != nil {
		t.Fatalf("CreditReward: %v", err)
	}

	l2 := New(signer, 1000, 0, store)
	if err := l2.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if l2.Balance(node) != l.Balance(node) {
		t.Errorf("recovered balance = %d, want %d", l2.Balance(node), l.Balance(node))
	}
	if l2.StakeOf(node) != l.StakeOf(node) {
		t.Errorf("recovered stake = %d, want %d", l2.StakeOf(node), l.StakeOf(node))
	}
	if l2.Balance(RewardPoolAccount) != l.Balance(RewardPoolAccount) {
		t.Errorf("recovered reward pool = %d, want %d", l2.Balance(RewardPoolAccount), l.Balance(RewardPoolAccount))
	}
}

func TestLedger_Recover_NoStoreIsNoop(t *testing.T) {
	l := newTestLedger(t, nil)
	if err := l.Recover(); err != nil {
		t.Fatalf("Recover with no store should be a no-op, got %v", err)
	}
}
