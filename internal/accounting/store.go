package accounting

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/networkneuron/internal/storage"
	"github.com/Klingon-tech/networkneuron/pkg/types"
)

var prefixCounters = []byte("acct/") // acct/<nodeID(20)> -> record JSON

// record is the on-disk shape of a node's accounting counters.
type record struct {
	BytesForwarded uint64 `json:"bytes_forwarded"`
	SessionsServed uint64 `json:"sessions_served"`
}

// Store persists per-node accounting counters.
type Store struct {
	db storage.DB
}

// NewStore returns a Store backed by db.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// Save persists the counters for nodeID, overwriting any prior entry.
func (s *Store) Save(nodeID types.NodeID, bytesForwarded, sessionsServed uint64) error {
	data, err := json.Marshal(record{BytesForwarded: bytesForwarded, SessionsServed: sessionsServed})
	if err != nil {
		return fmt.Errorf("marshal accounting record: %w", err)
	}
	return s.db.Put(counterKey(nodeID), data)
}

// LoadAll returns every persisted counter set, keyed by node, used to warm
// an Accounting instance on startup.
func (s *Store) LoadAll() (map[types.NodeID]Counters, error) {
	out := make(map[types.NodeID]Counters)
	err := s.db.ForEach(prefixCounters, func(key, value []byte) error {
		if len(key) < len(prefixCounters)+types.NodeIDSize {
			return nil // Malformed key, skip.
		}
		var nodeID types.NodeID
		copy(nodeID[:], key[len(prefixCounters):])

		var rec record
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil // Skip corrupt entries.
		}
		out[nodeID] = Counters{BytesForwarded: rec.BytesForwarded, SessionsServed: rec.SessionsServed}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate accounting records: %w", err)
	}
	return out, nil
}

func counterKey(nodeID types.NodeID) []byte {
	key := make([]byte, len(prefixCounters)+types.NodeIDSize)
	copy(key, prefixCounters)
	copy(key[len(prefixCounters):], nodeID[:])
	return key
}
