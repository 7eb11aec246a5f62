package registry

import (
	"sync"
	"time"

	"github.com/Klingon-tech/networkneuron/internal/errs"
	"github.com/Klingon-tech/networkneuron/internal/eventbus"
	"github.com/Klingon-tech/networkneuron/internal/log"
	"github.com/Klingon-tech/networkneuron/pkg/types"
)

// Registry is the single writer of peer state. It tracks every known node
// from first discovery through the connection lifecycle to drop.
type Registry struct {
	mu    sync.RWMutex
	peers map[types.NodeID]*Peer

	keepaliveInterval time.Duration
	missesToQuarantine int

	bus   *eventbus.Bus
	store *Store // nil if running without persistence
}

// New returns a Registry. store may be nil.
func New(bus *eventbus.Bus, store *Store, keepaliveInterval time.Duration, missesToQuarantine int) *Registry {
	return &Registry{
		peers:              make(map[types.NodeID]*Peer),
		keepaliveInterval:  keepaliveInterval,
		missesToQuarantine: missesToQuarantine,
		bus:                bus,
		store:              store,
	}
}

// OnDiscover records a newly learned node without connecting to it. If the
// node is already known, the call is a no-op.
func (r *Registry) OnDiscover(nodeID types.NodeID, address string, region string, capabilities []string) *Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.peers[nodeID]; ok {
		return p
	}
	p := &Peer{
		NodeID:       nodeID,
		Address:      address,
		Region:       region,
		Capabilities: capabilities,
		State:        StateDiscovered,
	}
	r.peers[nodeID] = p
	r.persist(p)
	return p
}

// OnConnect moves a peer into connecting state ahead of a handshake attempt.
// The caller drives the handshake itself and reports the outcome via
// OnHandshakeResult.
func (r *Registry) OnConnect(nodeID types.NodeID, address string) *Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[nodeID]
	if !ok {
		p = &Peer{NodeID: nodeID, Address: address}
		r.peers[nodeID] = p
	}
	p.Address = address
	p.State = StateConnecting
	r.persist(p)
	return p
}

// OnHandshakeResult records the outcome of a handshake attempt in progress
// for nodeID. On success the peer becomes active and emits PeerConnected and
// HandshakeOk; on failure it is dropped and HandshakeErr is emitted with the
// cause.
func (r *Registry) OnHandshakeResult(nodeID types.NodeID, publicKey []byte, cause error) error {
	r.mu.Lock()
	p, ok := r.peers[nodeID]
	if !ok {
		r.mu.Unlock()
		return errs.New(errs.Internal, nodeID.String(), nil)
	}
	p.State = StateHandshaking

	if cause != nil {
		p.State = StateDropped
		r.persist(p)
		r.mu.Unlock()
		r.publish(eventbus.Event{Kind: eventbus.HandshakeErr, NodeID: nodeID, At: now(), Err: cause})
		r.publish(eventbus.Event{Kind: eventbus.PeerDropped, NodeID: nodeID, At: now()})
		return errs.New(errs.PeerHandshakeFail, nodeID.String(), cause)
	}

	p.PublicKey = publicKey
	p.State = StateActive
	p.ConnectedAt = now()
	p.LastSeen = now()
	p.missedHeartbeats = 0
	r.persist(p)
	r.mu.Unlock()

	r.publish(eventbus.Event{Kind: eventbus.HandshakeOk, NodeID: nodeID, At: now()})
	r.publish(eventbus.Event{Kind: eventbus.PeerConnected, NodeID: nodeID, At: now()})
	return nil
}

// OnHeartbeat refreshes last_seen and the bandwidth profile for an active or
// quarantined peer. A peer in any other state is ignored — heartbeats only
// matter once a handshake has succeeded at least once.
func (r *Registry) OnHeartbeat(nodeID types.NodeID, bw BandwidthProfile) error {
	r.mu.Lock()
	p, ok := r.peers[nodeID]
	if !ok {
		r.mu.Unlock()
		return errs.New(errs.PeerDropped, nodeID.String(), nil)
	}
	if p.State != StateActive && p.State != StateQuarantined {
		r.mu.Unlock()
		return nil
	}

	p.LastSeen = now()
	p.Bandwidth = bw
	p.missedHeartbeats = 0
	if p.State == StateQuarantined {
		p.State = StateActive
	}
	r.persist(p)
	r.mu.Unlock()
	return nil
}

// SweepMissedHeartbeats evaluates every active/quarantined peer's last_seen
// against the keepalive window and escalates state for those that have
// missed it: the first miss quarantines, and the peer is dropped once its
// consecutive misses reach missesToQuarantine (the second miss with the
// default of 2). Called on every keepalive tick by the transport's
// keepalive loop.
func (r *Registry) SweepMissedHeartbeats() []types.NodeID {
	deadline := now().Add(-r.keepaliveInterval)

	r.mu.Lock()
	var dropped []types.NodeID
	for id, p := range r.peers {
		if p.State != StateActive && p.State != StateQuarantined {
			continue
		}
		if p.LastSeen.After(deadline) {
			continue
		}
		p.missedHeartbeats++
		if p.missedHeartbeats >= r.missesToQuarantine {
			p.State = StateDropped
			dropped = append(dropped, id)
		} else {
			p.State = StateQuarantined
		}
		r.persist(p)
	}
	r.mu.Unlock()

	for _, id := range dropped {
		r.publish(eventbus.Event{Kind: eventbus.PeerDropped, NodeID: id, At: now()})
	}
	return dropped
}

// Quarantine transitions an active peer straight to quarantined, bypassing
// the missed-heartbeat sweep. Called when the transport rejects an inbound
// envelope's signature or replay check — a crypto/wire violation is treated
// the same as a missed heartbeat window, per §7's "crypto and wire errors
// from a peer quarantine that peer" policy, without waiting for the next
// keepalive sweep to notice. A no-op for any peer not currently active.
func (r *Registry) Quarantine(nodeID types.NodeID) {
	r.mu.Lock()
	p, ok := r.peers[nodeID]
	if !ok || p.State != StateActive {
		r.mu.Unlock()
		return
	}
	p.State = StateQuarantined
	r.persist(p)
	r.mu.Unlock()
}

// OnDisconnect transitions a peer straight to dropped, e.g. on explicit
// operator action or a transport-level close.
func (r *Registry) OnDisconnect(nodeID types.NodeID) error {
	r.mu.Lock()
	p, ok := r.peers[nodeID]
	if !ok {
		r.mu.Unlock()
		return errs.New(errs.PeerDropped, nodeID.String(), nil)
	}
	p.State = StateDropped
	r.persist(p)
	r.mu.Unlock()

	r.publish(eventbus.Event{Kind: eventbus.PeerDropped, NodeID: nodeID, At: now()})
	return nil
}

// SetReputation updates a peer's reputation score. Called by the router on
// forwarding outcomes; the registry itself never computes reputation.
func (r *Registry) SetReputation(nodeID types.NodeID, reputation float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[nodeID]; ok {
		p.Reputation = reputation
	}
}

// Get returns the peer record for nodeID, or nil if unknown.
func (r *Registry) Get(nodeID types.NodeID) *Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[nodeID]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// ListActive returns a snapshot of every peer currently in state active.
func (r *Registry) ListActive() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		if p.State == StateActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}

// Count returns the total number of known peers regardless of state.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

func (r *Registry) publish(e eventbus.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}

// persist writes p to the backing store, if any. Errors are swallowed here
// deliberately: persistence is best-effort bookkeeping, never a reason to
// fail a state transition that has already been decided.
func (r *Registry) persist(p *Peer) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(p); err != nil {
		log.Registry.Error().Err(err).Str("node_id", p.NodeID.String()).Msg("persist peer record")
	}
}

var now = time.Now
