// Package ledger is the single writer of balances, stakes, and the signed
// transaction log: the incentive ledger's authoritative account state.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/Klingon-tech/networkneuron/internal/errs"
	"github.com/Klingon-tech/networkneuron/pkg/crypto"
	"github.com/Klingon-tech/networkneuron/pkg/types"
	"github.com/google/uuid"
)

// defaultLogMax is the transaction log's default ring-buffer retention.
const defaultLogMax = 10000

// RewardPoolAccount and StakePoolAccount are reserved NodeID sentinels
// whose balances hold tokens moved out of circulation by staking and
// tokens available for reward distribution. Staking moves a node's
// balance into StakePoolAccount (the stake map separately tracks whose
// stake it is); reward distribution moves RewardPoolAccount's balance to
// the recipient. Every transfer therefore nets to zero across the whole
// balance map, satisfying "total circulating supply is constant modulo
// stake moves" without a separate pool bookkeeping type.
var (
	RewardPoolAccount = types.NodeID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	StakePoolAccount  = types.NodeID{0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe}
)

// Ledger owns balances, stakes, and the append-only transaction log. All
// mutation happens under a single mutex: per §5, "transactions are applied
// in the order they arrive at the Ledger task".
type Ledger struct {
	mu      sync.Mutex
	balance map[types.NodeID]types.Amount
	stake   map[types.NodeID]types.Amount

	minStake types.Amount

	signer *crypto.PrivateKey
	pubKey []byte

	log    []*Transaction
	logMax int
	nextSeq uint64

	store *Store // nil if running without persistence
}

// New returns a Ledger that signs every transaction with signer. store may
// be nil. logMax <= 0 uses the default retention of 10,000 entries.
func New(signer *crypto.PrivateKey, minStake types.Amount, logMax int, store *Store) *Ledger {
	if logMax <= 0 {
		logMax = defaultLogMax
	}
	return &Ledger{
		balance:  make(map[types.NodeID]types.Amount),
		stake:    make(map[types.NodeID]types.Amount),
		minStake: minStake,
		signer:   signer,
		pubKey:   signer.PublicKey(),
		logMax:   logMax,
		store:    store,
	}
}

// PublicKey returns the key every transaction's signature verifies against.
func (l *Ledger) PublicKey() []byte {
	return l.pubKey
}

// SeedBalance sets node's starting balance at bootstrap, bypassing the
// transaction log: this is initial state, not a transfer.
func (l *Ledger) SeedBalance(node types.NodeID, amount types.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance[node] = amount
}

// SeedRewardPool sets the reward pool's starting balance at bootstrap.
func (l *Ledger) SeedRewardPool(amount types.Amount) {
	l.SeedBalance(RewardPoolAccount, amount)
}

// Stake moves amount from node's balance into its stake, failing
// InsufficientBalance if node cannot afford it or MinStakeNotMet if the
// resulting total stake would fall below the configured minimum.
func (l *Ledger) Stake(node types.NodeID, amount types.Amount) (*Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stake[node]+amount < l.minStake {
		return nil, errs.New(errs.LedgerMinStakeNotMet, node.String(), nil)
	}
	before := l.balance[node]
	if before < amount {
		return nil, errs.New(errs.LedgerInsufficientBalance, node.String(), nil)
	}

	l.balance[node] = before - amount
	l.balance[StakePoolAccount] += amount
	l.stake[node] += amount

	return l.appendSigned(TxStake, node, amount, before, l.balance[node])
}

// Unstake moves amount from node's stake back into its balance, failing
// InsufficientStake if node has not staked that much.
func (l *Ledger) Unstake(node types.NodeID, amount types.Amount) (*Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stake[node] < amount {
		return nil, errs.New(errs.LedgerInsufficientStake, node.String(), nil)
	}

	before := l.balance[node]
	l.stake[node] -= amount
	l.balance[StakePoolAccount] -= amount
	l.balance[node] = before + amount

	return l.appendSigned(TxUnstake, node, amount, before, l.balance[node])
}

// CreditReward pays amount from the reward pool to node, failing
// InsufficientRewardPool if the pool cannot cover it.
func (l *Ledger) CreditReward(node types.NodeID, amount types.Amount) (*Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balance[RewardPoolAccount] < amount {
		return nil, errs.New(errs.LedgerInsufficientRewardPool, node.String(), nil)
	}

	before := l.balance[node]
	l.balance[RewardPoolAccount] -= amount
	l.balance[node] = before + amount

	return l.appendSigned(TxReward, node, amount, before, l.balance[node])
}

// appendSigned signs and appends a transaction under the caller's already
// held lock, persists it to the journal if a store is configured, and
// evicts the oldest entry once the log exceeds its ring-buffer retention.
func (l *Ledger) appendSigned(kind Kind, node types.NodeID, amount, before, after types.Amount) (*Transaction, error) {
	tx := &Transaction{
		TxID:          uuid.NewString(),
		Kind:          kind,
		Node:          node,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		At:            now(),
	}
	if err := sign(tx, l.signer); err != nil {
		return nil, errs.New(errs.CryptoSign, tx.TxID, err)
	}

	seq := l.nextSeq
	l.nextSeq++
	l.log = append(l.log, tx)
	if len(l.log) > l.logMax {
		l.log = l.log[len(l.log)-l.logMax:]
	}

	if l.store != nil {
		if err := l.store.AppendTransaction(seq, tx); err != nil {
			return nil, errs.New(errs.Internal, tx.TxID, err)
		}
	}
	return tx, nil
}

// Balance returns node's current balance.
func (l *Ledger) Balance(node types.NodeID) types.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance[node]
}

// StakeOf returns node's current stake.
func (l *Ledger) StakeOf(node types.NodeID) types.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stake[node]
}

// Verify reports whether tx's signature is valid against this ledger's
// signing key.
func (l *Ledger) Verify(tx *Transaction) bool {
	return Verify(tx, l.pubKey)
}

// EligibleNodes returns every node whose stake is at least minStake, sorted
// in stable NodeID order: step 1 of the reward engine's distribution
// recipe, "collect all eligible nodes (stable order by NodeId)".
func (l *Ledger) EligibleNodes(minStake types.Amount) []types.NodeID {
	l.mu.Lock()
	out := make([]types.NodeID, 0, len(l.stake))
	for node, stake := range l.stake {
		if stake >= minStake {
			out = append(out, node)
		}
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// TransactionHistory returns up to limit transactions, most recent first,
// optionally filtered to a single node. limit <= 0 means unbounded.
func (l *Ledger) TransactionHistory(node *types.NodeID, limit int) []*Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*Transaction
	for i := len(l.log) - 1; i >= 0; i-- {
		tx := l.log[i]
		if node != nil && tx.Node != *node {
			continue
		}
		out = append(out, tx)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

var now = time.Now
