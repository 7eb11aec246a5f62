package wire

import (
	"sync"
	"time"

	"github.com/Klingon-tech/networkneuron/pkg/types"
	"github.com/google/uuid"
)

// replayWindow is how long a (source, msg_id) pair is remembered before it
// ages out and its memory is reclaimed.
const replayWindow = 5 * time.Minute

// seenEntry records when a message id was first observed from a peer, so it
// can be evicted once it falls outside replayWindow.
type seenEntry struct {
	seenAt time.Time
}

// ReplayGuard tracks recently seen (source, msg_id) pairs per peer and
// rejects duplicates, bounding memory with a sliding time window rather than
// a fixed-size cache so a burst from one peer can't evict another's state.
type ReplayGuard struct {
	mu   sync.Mutex
	seen map[types.NodeID]map[uuid.UUID]seenEntry
}

// NewReplayGuard creates an empty ReplayGuard.
func NewReplayGuard() *ReplayGuard {
	return &ReplayGuard{
		seen: make(map[types.NodeID]map[uuid.UUID]seenEntry),
	}
}

// Check reports whether (source, msgID) has already been seen within the
// replay window. If not, it records the pair as seen and returns false
// (not a replay). If it has, it returns true without mutating state.
func (g *ReplayGuard) Check(source types.NodeID, msgID uuid.UUID) bool {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	byID, ok := g.seen[source]
	if !ok {
		byID = make(map[uuid.UUID]seenEntry)
		g.seen[source] = byID
	}

	if entry, ok := byID[msgID]; ok && now.Sub(entry.seenAt) < replayWindow {
		return true
	}

	byID[msgID] = seenEntry{seenAt: now}
	return false
}

// Prune evicts entries older than the replay window, and drops any peer's
// map entirely once it is empty. Call periodically from a background loop.
func (g *ReplayGuard) Prune() {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for source, byID := range g.seen {
		for id, entry := range byID {
			if now.Sub(entry.seenAt) >= replayWindow {
				delete(byID, id)
			}
		}
		if len(byID) == 0 {
			delete(g.seen, source)
		}
	}
}

// RunPruneLoop periodically prunes expired entries until done is closed.
func (g *ReplayGuard) RunPruneLoop(done <-chan struct{}) {
	ticker := time.NewTicker(replayWindow)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			g.Prune()
		}
	}
}

// Forget removes all tracked state for a peer, used when a peer disconnects
// or is dropped from the registry so its replay state doesn't linger.
func (g *ReplayGuard) Forget(source types.NodeID) {
	g.mu.Lock()
	delete(g.seen, source)
	g.mu.Unlock()
}
