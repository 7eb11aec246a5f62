package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Klingon-tech/networkneuron/internal/storage"
	"github.com/Klingon-tech/networkneuron/pkg/types"
)

var (
	journalPrefix = []byte("ldgj/") // ldgj/<seq uint64 big-endian> -> txRecord JSON
	snapshotKey   = []byte("ldgs/snapshot")
)

// txRecord is the on-disk shape of a Transaction.
type txRecord struct {
	TxID          string  `json:"tx_id"`
	Kind          Kind    `json:"kind"`
	Node          string  `json:"node"`
	Amount        uint64  `json:"amount"`
	BalanceBefore uint64  `json:"balance_before"`
	BalanceAfter  uint64  `json:"balance_after"`
	At            int64   `json:"at"`
	Signature     []byte  `json:"signature"`
}

// snapshotRecord is the on-disk shape of a balances/stakes snapshot, keyed
// by a periodic checkpoint rather than every transaction, mirroring the
// teacher's peer store save/prune/reload cycle applied to ledger state.
type snapshotRecord struct {
	Balances map[string]uint64 `json:"balances"`
	Stakes   map[string]uint64 `json:"stakes"`
	LastSeq  uint64            `json:"last_seq"`
}

// Store persists the ledger's append-only journal and periodic snapshots.
type Store struct {
	db storage.DB
}

// NewStore returns a Store backed by db.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

func journalKey(seq uint64) []byte {
	key := make([]byte, len(journalPrefix)+8)
	copy(key, journalPrefix)
	binary.BigEndian.PutUint64(key[len(journalPrefix):], seq)
	return key
}

// AppendTransaction persists tx under sequence seq.
func (s *Store) AppendTransaction(seq uint64, tx *Transaction) error {
	rec := txRecord{
		TxID:          tx.TxID,
		Kind:          tx.Kind,
		Node:          tx.Node.String(),
		Amount:        uint64(tx.Amount),
		BalanceBefore: uint64(tx.BalanceBefore),
		BalanceAfter:  uint64(tx.BalanceAfter),
		At:            tx.At.Unix(),
		Signature:     tx.Signature,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal transaction record: %w", err)
	}
	return s.db.Put(journalKey(seq), data)
}

// SaveSnapshot persists a checkpoint of balances/stakes as of lastSeq.
func (s *Store) SaveSnapshot(balances, stakes map[types.NodeID]types.Amount, lastSeq uint64) error {
	rec := snapshotRecord{
		Balances: make(map[string]uint64, len(balances)),
		Stakes:   make(map[string]uint64, len(stakes)),
		LastSeq:  lastSeq,
	}
	for node, amount := range balances {
		rec.Balances[node.String()] = uint64(amount)
	}
	for node, amount := range stakes {
		rec.Stakes[node.String()] = uint64(amount)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal ledger snapshot: %w", err)
	}
	return s.db.Put(snapshotKey, data)
}

// replayedTx is one journal entry replayed from disk, in sequence order.
type replayedTx struct {
	seq uint64
	tx  *Transaction
}

// loadSnapshotAndTail loads the latest snapshot (if any) plus every
// journal entry after it, in ascending sequence order, implementing §6's
// recovery recipe: "load latest snapshot, replay journal tail."
func (s *Store) loadSnapshotAndTail() (map[types.NodeID]types.Amount, map[types.NodeID]types.Amount, uint64, []replayedTx, error) {
	balances := make(map[types.NodeID]types.Amount)
	stakes := make(map[types.NodeID]types.Amount)
	var lastSeq uint64

	data, err := s.db.Get(snapshotKey)
	if err == nil {
		var rec snapshotRecord
		if jerr := json.Unmarshal(data, &rec); jerr != nil {
			return nil, nil, 0, nil, fmt.Errorf("unmarshal ledger snapshot: %w", jerr)
		}
		for idStr, amount := range rec.Balances {
			nodeID, perr := types.ParseNodeID(idStr)
			if perr != nil {
				continue
			}
			balances[nodeID] = types.Amount(amount)
		}
		for idStr, amount := range rec.Stakes {
			nodeID, perr := types.ParseNodeID(idStr)
			if perr != nil {
				continue
			}
			stakes[nodeID] = types.Amount(amount)
		}
		lastSeq = rec.LastSeq
	}

	var tail []replayedTx
	err = s.db.ForEach(journalPrefix, func(key, value []byte) error {
		if len(key) < len(journalPrefix)+8 {
			return nil
		}
		seq := binary.BigEndian.Uint64(key[len(journalPrefix):])
		if seq < lastSeq {
			return nil
		}

		var rec txRecord
		if jerr := json.Unmarshal(value, &rec); jerr != nil {
			return nil // Skip corrupt entries.
		}
		nodeID, perr := types.ParseNodeID(rec.Node)
		if perr != nil {
			return nil
		}
		tail = append(tail, replayedTx{seq: seq, tx: &Transaction{
			TxID:          rec.TxID,
			Kind:          rec.Kind,
			Node:          nodeID,
			Amount:        types.Amount(rec.Amount),
			BalanceBefore: types.Amount(rec.BalanceBefore),
			BalanceAfter:  types.Amount(rec.BalanceAfter),
			At:            time.Unix(rec.At, 0),
			Signature:     rec.Signature,
		}})
		return nil
	})
	if err != nil {
		return nil, nil, 0, nil, fmt.Errorf("iterate ledger journal: %w", err)
	}

	for i := 0; i < len(tail); i++ {
		for j := i + 1; j < len(tail); j++ {
			if tail[j].seq < tail[i].seq {
				tail[i], tail[j] = tail[j], tail[i]
			}
		}
	}

	return balances, stakes, lastSeq, tail, nil
}

// Recover loads the latest snapshot and replays the journal tail into l,
// reapplying each transaction's deterministic effect (not its validation:
// a transaction that made it into the journal already passed every check
// once). After Recover, l's state equals the state at the moment the
// journal was last appended to, per §6's recovery invariant.
func (l *Ledger) Recover() error {
	if l.store == nil {
		return nil
	}

	balances, stakes, lastSeq, tail, err := l.store.loadSnapshotAndTail()
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balance = balances
	l.stake = stakes
	l.nextSeq = lastSeq

	for _, entry := range tail {
		applyEffect(l.balance, l.stake, entry.tx)
		l.log = append(l.log, entry.tx)
		if entry.seq >= l.nextSeq {
			l.nextSeq = entry.seq + 1
		}
	}
	if len(l.log) > l.logMax {
		l.log = l.log[len(l.log)-l.logMax:]
	}
	return nil
}

// applyEffect reproduces a transaction's balance/stake mutation without
// re-running its validation, used only during journal replay.
func applyEffect(balance, stake map[types.NodeID]types.Amount, tx *Transaction) {
	switch tx.Kind {
	case TxStake:
		balance[tx.Node] -= tx.Amount
		balance[StakePoolAccount] += tx.Amount
		stake[tx.Node] += tx.Amount
	case TxUnstake:
		stake[tx.Node] -= tx.Amount
		balance[StakePoolAccount] -= tx.Amount
		balance[tx.Node] += tx.Amount
	case TxReward:
		balance[RewardPoolAccount] -= tx.Amount
		balance[tx.Node] += tx.Amount
	}
}

// Snapshot persists the ledger's current balances/stakes as a checkpoint,
// truncating the journal tail the next Recover needs to replay.
func (l *Ledger) Snapshot() error {
	if l.store == nil {
		return nil
	}
	l.mu.Lock()
	balances := make(map[types.NodeID]types.Amount, len(l.balance))
	for k, v := range l.balance {
		balances[k] = v
	}
	stakes := make(map[types.NodeID]types.Amount, len(l.stake))
	for k, v := range l.stake {
		stakes[k] = v
	}
	lastSeq := l.nextSeq
	l.mu.Unlock()

	return l.store.SaveSnapshot(balances, stakes, lastSeq)
}
