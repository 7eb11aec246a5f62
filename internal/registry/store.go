package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Klingon-tech/networkneuron/internal/storage"
	"github.com/Klingon-tech/networkneuron/pkg/types"
)

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}

const peerKeyPrefix = "peer/"

// record is the JSON-on-disk shape of a Peer. Kept separate from Peer so
// the in-memory type can evolve (e.g. the unexported missedHeartbeats
// counter) without touching the persisted format.
type record struct {
	NodeID       string           `json:"node_id"`
	Address      string           `json:"address"`
	PublicKey    []byte           `json:"public_key,omitempty"`
	Capabilities []string         `json:"capabilities,omitempty"`
	Region       string           `json:"region"`
	Bandwidth    BandwidthProfile `json:"bandwidth"`
	Reputation   float64          `json:"reputation"`
	ConnectedAt  int64            `json:"connected_at"`
	LastSeen     int64            `json:"last_seen"`
	State        State            `json:"state"`
}

// Store persists peer records in a storage.DB under the "peer/" prefix.
type Store struct {
	db storage.DB
}

// NewStore returns a Store backed by db.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

func peerKey(id types.NodeID) []byte {
	return []byte(peerKeyPrefix + id.String())
}

// Save persists a peer record, overwriting any prior entry for the same node.
func (s *Store) Save(p *Peer) error {
	rec := record{
		NodeID:       p.NodeID.String(),
		Address:      p.Address,
		PublicKey:    p.PublicKey,
		Capabilities: p.Capabilities,
		Region:       p.Region,
		Bandwidth:    p.Bandwidth,
		Reputation:   p.Reputation,
		LastSeen:     p.LastSeen.Unix(),
		State:        p.State,
	}
	if !p.ConnectedAt.IsZero() {
		rec.ConnectedAt = p.ConnectedAt.Unix()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal peer record: %w", err)
	}
	return s.db.Put(peerKey(p.NodeID), data)
}

// Delete removes a peer record.
func (s *Store) Delete(id types.NodeID) error {
	return s.db.Delete(peerKey(id))
}

// LoadAll returns every persisted peer record. Registry.New does not call
// it; the registry starts empty.
func (s *Store) LoadAll() ([]*Peer, error) {
	var peers []*Peer
	err := s.db.ForEach([]byte(peerKeyPrefix), func(key, value []byte) error {
		var rec record
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil // Skip corrupt records.
		}
		nodeID, err := types.ParseNodeID(rec.NodeID)
		if err != nil {
			return nil
		}
		p := &Peer{
			NodeID:       nodeID,
			Address:      rec.Address,
			PublicKey:    rec.PublicKey,
			Capabilities: rec.Capabilities,
			Region:       rec.Region,
			Bandwidth:    rec.Bandwidth,
			Reputation:   rec.Reputation,
			State:        rec.State,
		}
		if rec.LastSeen > 0 {
			p.LastSeen = unixTime(rec.LastSeen)
		}
		if rec.ConnectedAt > 0 {
			p.ConnectedAt = unixTime(rec.ConnectedAt)
		}
		peers = append(peers, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate peer records: %w", err)
	}
	return peers, nil
}
