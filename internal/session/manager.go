package session

import (
	"sync"
	"time"

	"github.com/Klingon-tech/networkneuron/internal/errs"
	"github.com/Klingon-tech/networkneuron/internal/eventbus"
	"github.com/Klingon-tech/networkneuron/internal/routing"
	"github.com/Klingon-tech/networkneuron/pkg/types"
	"github.com/google/uuid"
)

// Manager owns every Session: open, close, and the route refcount that
// decides when a shared route (sessions 1:1 with routes at creation, N:1
// on a cache hit) can be released back to the router. Grounded on the
// map+mutex+background-sweep shape of SAGE-X's session Manager, adapted
// from secure-channel sessions to route-bound client sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	refs     map[string]int // route_id -> count of active sessions referencing it

	router *routing.Router
	bus    *eventbus.Bus

	done     chan struct{}
	stopOnce sync.Once
}

// New returns a Manager wired to router for route acquisition/release and
// bus for RouteRemoved invalidation.
func New(router *routing.Router, bus *eventbus.Bus) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		refs:     make(map[string]int),
		router:   router,
		bus:      bus,
		done:     make(chan struct{}),
	}
	if bus != nil {
		removed, cancel := bus.Subscribe(eventbus.RouteRemoved)
		go m.runInvalidationLoop(removed, cancel)
	}
	return m
}

// Open acquires a route to dest satisfying req via the router and opens a
// new active session bound to it.
func (m *Manager) Open(clientID string, dest types.NodeID, req routing.Requirements) (*Session, error) {
	route, err := m.router.FindRoute(dest, req)
	if err != nil {
		return nil, err
	}

	s := &Session{
		SessionID:  uuid.NewString(),
		ClientID:   clientID,
		RouteID:    route.RouteID,
		StartedAt:  now(),
		ActiveFlag: true,
	}

	m.mu.Lock()
	m.sessions[s.SessionID] = s
	m.refs[route.RouteID]++
	m.mu.Unlock()

	m.publish(eventbus.Event{Kind: eventbus.SessionOpened, SessionID: s.SessionID, RouteID: route.RouteID, At: now()})
	return s, nil
}

// Close ends sessionID, decrementing its route's refcount and releasing
// the route back to the router once no session references it any more.
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return errs.New(errs.SessionNotFound, sessionID, nil)
	}
	if !s.ActiveFlag {
		m.mu.Unlock()
		return errs.New(errs.SessionNotActive, sessionID, nil)
	}

	s.ActiveFlag = false
	s.EndedAt = now()
	routeID := s.RouteID

	m.refs[routeID]--
	release := m.refs[routeID] <= 0
	if release {
		delete(m.refs, routeID)
	}
	m.mu.Unlock()

	var hop types.NodeID
	if route := m.router.Get(routeID); route != nil {
		hop = route.Destination()
	}
	if release {
		m.router.Release(routeID)
	}
	m.publish(eventbus.Event{Kind: eventbus.SessionClosed, SessionID: sessionID, RouteID: routeID, NodeID: hop, At: now()})
	return nil
}

// AddBytes increments an active session's byte counter, e.g. as the
// transport forwards packets on its behalf.
func (m *Manager) AddBytes(sessionID string, n uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return errs.New(errs.SessionNotFound, sessionID, nil)
	}
	if !s.ActiveFlag {
		return errs.New(errs.SessionNotActive, sessionID, nil)
	}
	s.BytesTransferred += n
	return nil
}

// Get returns a copy of the session record for sessionID, or nil if unknown.
func (m *Manager) Get(sessionID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// ListActive returns a snapshot of every session still open.
func (m *Manager) ListActive() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.ActiveFlag {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

func (m *Manager) runInvalidationLoop(removed <-chan eventbus.Event, cancel func()) {
	defer cancel()
	for {
		select {
		case e, ok := <-removed:
			if !ok {
				return
			}
			m.onRouteRemoved(e.RouteID, e.NodeID)
		case <-m.done:
			return
		}
	}
}

// onRouteRemoved closes every active session bound to routeID, e.g. after
// the router drops it because one of its hops went offline. hop is the
// node the route was removed for, carried through onto each SessionClosed
// event so subscribers can attribute the session to the peer that served it.
func (m *Manager) onRouteRemoved(routeID string, hop types.NodeID) {
	m.mu.Lock()
	var closed []string
	for id, s := range m.sessions {
		if s.RouteID == routeID && s.ActiveFlag {
			s.ActiveFlag = false
			s.EndedAt = now()
			closed = append(closed, id)
		}
	}
	delete(m.refs, routeID)
	m.mu.Unlock()

	for _, id := range closed {
		m.publish(eventbus.Event{Kind: eventbus.SessionClosed, SessionID: id, RouteID: routeID, NodeID: hop, At: now()})
	}
}

func (m *Manager) publish(e eventbus.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

// Stop ends the invalidation loop. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

var now = time.Now
