// Package accounting maintains per-node monotonic bandwidth/session
// counters and exposes the snapshot/consume pair the reward engine uses to
// deduct exactly what it just paid out.
package accounting

import (
	"sync"

	"github.com/Klingon-tech/networkneuron/internal/eventbus"
	"github.com/Klingon-tech/networkneuron/internal/log"
	"github.com/Klingon-tech/networkneuron/internal/registry"
	"github.com/Klingon-tech/networkneuron/pkg/types"
)

// Counters is a node's monotonic forwarding activity.
type Counters struct {
	BytesForwarded uint64
	SessionsServed uint64
}

// Performance is a node's rolling link/behavior quality, read live from the
// peer registry rather than cached here: accounting owns the activity
// counters, the registry remains the single writer of bandwidth/reputation.
type Performance struct {
	UptimePct    float64
	AvgLatencyMs float64
	Reputation   float64
}

// Snapshot is a frozen view of one node's counters plus performance, as
// returned by Snapshot and consumed by the reward engine's reward formula.
type Snapshot struct {
	NodeID types.NodeID
	Counters
	Performance Performance
}

// Accounting is the single writer of per-node accounting counters. It
// subscribes to PacketForwarded and SessionClosed to keep them current and
// serves snapshot/consume to the reward engine.
type Accounting struct {
	mu       sync.Mutex
	counters map[types.NodeID]*Counters

	reg   *registry.Registry
	bus   *eventbus.Bus
	store *Store // nil if running without persistence

	done     chan struct{}
	stopOnce sync.Once
}

// New returns an Accounting wired to reg for performance reads and bus for
// PacketForwarded/SessionClosed ingestion. store may be nil.
func New(reg *registry.Registry, bus *eventbus.Bus, store *Store) (*Accounting, error) {
	a := &Accounting{
		counters: make(map[types.NodeID]*Counters),
		reg:      reg,
		bus:      bus,
		store:    store,
		done:     make(chan struct{}),
	}

	if store != nil {
		loaded, err := store.LoadAll()
		if err != nil {
			return nil, err
		}
		for nodeID, c := range loaded {
			cp := c
			a.counters[nodeID] = &cp
		}
	}

	if bus != nil {
		forwarded, cancelForwarded := bus.Subscribe(eventbus.PacketForwarded)
		closed, cancelClosed := bus.Subscribe(eventbus.SessionClosed)
		go a.run(forwarded, cancelForwarded, closed, cancelClosed)
	}
	return a, nil
}

func (a *Accounting) run(forwarded <-chan eventbus.Event, cancelForwarded func(), closed <-chan eventbus.Event, cancelClosed func()) {
	defer cancelForwarded()
	defer cancelClosed()

	for {
		select {
		case e, ok := <-forwarded:
			if !ok {
				return
			}
			a.onPacketForwarded(e)
		case e, ok := <-closed:
			if !ok {
				return
			}
			a.onSessionClosed(e)
		case <-a.done:
			return
		}
	}
}

func (a *Accounting) onPacketForwarded(e eventbus.Event) {
	if e.NodeID.IsZero() {
		return
	}
	a.mu.Lock()
	c := a.counterFor(e.NodeID)
	c.BytesForwarded += e.Bytes
	snap := *c
	a.mu.Unlock()
	a.persist(e.NodeID, snap)
}

// onSessionClosed attributes one served session to the route's hop. The
// hop rides on the event's NodeID field, set by the session manager before
// it releases the route the session was bound to.
func (a *Accounting) onSessionClosed(e eventbus.Event) {
	if e.NodeID.IsZero() {
		return
	}
	a.mu.Lock()
	c := a.counterFor(e.NodeID)
	c.SessionsServed++
	snap := *c
	a.mu.Unlock()
	a.persist(e.NodeID, snap)
}

func (a *Accounting) counterFor(nodeID types.NodeID) *Counters {
	c, ok := a.counters[nodeID]
	if !ok {
		c = &Counters{}
		a.counters[nodeID] = c
	}
	return c
}

// Snapshot returns nodeID's current counters plus its live performance.
// Performance is read from the registry at call time, never cached: the
// registry remains the single source of truth for bandwidth and reputation.
func (a *Accounting) Snapshot(nodeID types.NodeID) Snapshot {
	a.mu.Lock()
	c := *a.counterFor(nodeID)
	a.mu.Unlock()

	snap := Snapshot{NodeID: nodeID, Counters: c}
	if a.reg != nil {
		if p := a.reg.Get(nodeID); p != nil {
			snap.Performance = Performance{
				UptimePct:    p.Bandwidth.UptimePct,
				AvgLatencyMs: p.Bandwidth.LatencyMs,
				Reputation:   p.Reputation,
			}
		}
	}
	return snap
}

// Consume reduces nodeID's counters by exactly the amount a frozen snapshot
// reported, the way the reward engine pays out. Counters are never cleared
// to zero outright: activity recorded after the snapshot was taken survives
// the reduction, so running a distribution twice against an unchanged
// snapshot yields zero additional payout without losing newer activity.
func (a *Accounting) Consume(nodeID types.NodeID, bytes, sessions uint64) {
	a.mu.Lock()
	c := a.counterFor(nodeID)
	if bytes > c.BytesForwarded {
		c.BytesForwarded = 0
	} else {
		c.BytesForwarded -= bytes
	}
	if sessions > c.SessionsServed {
		c.SessionsServed = 0
	} else {
		c.SessionsServed -= sessions
	}
	snap := *c
	a.mu.Unlock()
	a.persist(nodeID, snap)
}

// persist writes c to the backing store, if any. Errors are swallowed
// deliberately: persistence is best-effort bookkeeping, never a reason to
// fail a counter update that has already been decided.
func (a *Accounting) persist(nodeID types.NodeID, c Counters) {
	if a.store == nil {
		return
	}
	if err := a.store.Save(nodeID, c.BytesForwarded, c.SessionsServed); err != nil {
		log.Accounting.Error().Err(err).Str("node_id", nodeID.String()).Msg("persist accounting counters")
	}
}

// Stop ends the ingestion loop. Safe to call more than once.
func (a *Accounting) Stop() {
	a.stopOnce.Do(func() { close(a.done) })
}
