package routing

import (
	"sync"
	"time"

	"github.com/Klingon-tech/networkneuron/internal/errs"
	"github.com/Klingon-tech/networkneuron/internal/eventbus"
	"github.com/Klingon-tech/networkneuron/internal/log"
	"github.com/Klingon-tech/networkneuron/internal/registry"
	"github.com/Klingon-tech/networkneuron/pkg/crypto"
	"github.com/Klingon-tech/networkneuron/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// bandwidthWarnThreshold is the fraction of a route's advertised bandwidth
// that, once bytes_used exceeds it, logs a non-fatal warning.
const bandwidthWarnThreshold = 0.8

// SendFunc hands a sealed or plaintext payload to the transport for
// delivery to the next hop. The router decides the path and books usage;
// it never opens a socket itself.
type SendFunc func(next types.NodeID, payload []byte) error

// Router owns every active Route: selection via the optimizer, the LRU
// route cache, AEAD forwarding, and invalidation on peer loss or bandwidth
// changes reported over the event bus.
type Router struct {
	mu     sync.RWMutex
	routes map[string]*Route

	keysMu     sync.RWMutex
	tunnelKeys map[types.NodeID][]byte

	statsMu sync.Mutex
	stats   map[types.NodeID]*forwardStats

	cache    *routeCache
	reg      *registry.Registry
	bus      *eventbus.Bus
	routeTTL time.Duration
	send     SendFunc

	// lookupGroup collapses concurrent FindRoute calls that miss the cache
	// on the same (dest, requirements) key into a single optimizer pass,
	// so a burst of callers waiting on the same destination never race
	// each other into creating duplicate routes.
	lookupGroup singleflight.Group

	done     chan struct{}
	stopOnce sync.Once
}

// New returns a Router wired to reg for candidate selection and bus for
// invalidation and forwarding events. send delivers a forwarded packet to
// its next hop; routeTTL and cacheMax come from configuration.
func New(reg *registry.Registry, bus *eventbus.Bus, routeTTL time.Duration, cacheMax int, send SendFunc) (*Router, error) {
	cache, err := newRouteCache(cacheMax)
	if err != nil {
		return nil, err
	}
	r := &Router{
		routes:     make(map[string]*Route),
		tunnelKeys: make(map[types.NodeID][]byte),
		stats:      make(map[types.NodeID]*forwardStats),
		cache:      cache,
		reg:        reg,
		bus:        bus,
		routeTTL:   routeTTL,
		send:       send,
		done:       make(chan struct{}),
	}
	if bus != nil {
		dropped, cancelDropped := bus.Subscribe(eventbus.PeerDropped)
		bwReport, cancelBW := bus.Subscribe(eventbus.BandwidthReport)
		go r.runInvalidationLoop(dropped, cancelDropped, bwReport, cancelBW)
	}
	return r, nil
}

// SetTunnelKey records the symmetric key to use when sealing traffic bound
// for nodeID. Key exchange itself (X25519 ECDH during the handshake) is
// done by internal/transport; the router only consumes the result.
func (r *Router) SetTunnelKey(nodeID types.NodeID, key []byte) {
	r.keysMu.Lock()
	defer r.keysMu.Unlock()
	r.tunnelKeys[nodeID] = key
}

func (r *Router) tunnelKey(nodeID types.NodeID) ([]byte, bool) {
	r.keysMu.RLock()
	defer r.keysMu.RUnlock()
	key, ok := r.tunnelKeys[nodeID]
	return key, ok
}

// FindRoute returns a route to dest satisfying req, preferring a live cache
// entry and falling back to the optimizer over every currently active peer.
// dest only participates in the cache key: with single-hop routing, the
// chosen next hop is whichever active peer best satisfies req, not
// necessarily a peer whose NodeID equals dest.
func (r *Router) FindRoute(dest types.NodeID, req Requirements) (*Route, error) {
	if route, ok := r.cachedRoute(dest, req); ok {
		return route, nil
	}

	key := dest.String() + canonicalHash(req).String()
	v, err, _ := r.lookupGroup.Do(key, func() (interface{}, error) {
		if route, ok := r.cachedRoute(dest, req); ok {
			return route, nil
		}
		return r.selectAndCacheRoute(dest, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Route), nil
}

// selectAndCacheRoute runs the optimizer over every currently active peer
// and records the result, both as a tracked Route and a cache entry.
func (r *Router) selectAndCacheRoute(dest types.NodeID, req Requirements) (*Route, error) {
	candidates := r.reg.ListActive()
	best, err := SelectPeer(candidates, req)
	if err != nil {
		return nil, err
	}

	route := &Route{
		RouteID:       uuid.NewString(),
		HopList:       []types.NodeID{best.NodeID},
		LatencyMs:     best.Bandwidth.LatencyMs,
		BandwidthMbps: candidateBandwidth(best),
		Cost:          candidateCost(best),
		EncryptedFlag: req.RequireEncryption,
		ExpiresAt:     now().Add(r.routeTTL),
	}

	r.mu.Lock()
	r.routes[route.RouteID] = route
	r.mu.Unlock()
	r.cache.put(dest, req, route.RouteID, route.HopList)

	r.publish(eventbus.Event{Kind: eventbus.RouteCreated, NodeID: best.NodeID, RouteID: route.RouteID, At: now()})
	return route, nil
}

func (r *Router) cachedRoute(dest types.NodeID, req Requirements) (*Route, bool) {
	routeID, ok := r.cache.get(dest, req)
	if !ok {
		return nil, false
	}
	r.mu.RLock()
	route, ok := r.routes[routeID]
	r.mu.RUnlock()
	if !ok || !route.Valid(now()) || !r.hopsActive(route) {
		return nil, false
	}
	return route, true
}

func (r *Router) hopsActive(route *Route) bool {
	for _, hop := range route.HopList {
		p := r.reg.Get(hop)
		if p == nil || !p.IsActive() {
			return false
		}
	}
	return true
}

// Forward validates the route, applies AEAD when encrypted_flag is set,
// hands the packet to send, and books bytes_used. It logs a non-fatal
// warning once usage crosses the bandwidth threshold.
func (r *Router) Forward(routeID string, payload []byte) error {
	r.mu.RLock()
	route, ok := r.routes[routeID]
	r.mu.RUnlock()
	if !ok {
		return errs.New(errs.RouteNotFound, routeID, nil)
	}
	if !route.Valid(now()) {
		return errs.New(errs.RouteExpired, routeID, nil)
	}
	if !r.hopsActive(route) {
		return errs.New(errs.RoutePeerGone, routeID, nil)
	}
	next := route.Destination()

	out := payload
	if route.EncryptedFlag {
		key, ok := r.tunnelKey(next)
		if !ok {
			return errs.New(errs.CryptoAuthFail, next.String(), nil)
		}
		nonce, ciphertext, err := crypto.Seal(key, payload)
		if err != nil {
			return errs.New(errs.CryptoAuthFail, next.String(), err)
		}
		out = append(nonce, ciphertext...)
	}

	if err := r.send(next, out); err != nil {
		r.recordOutcome(next, false)
		return err
	}
	r.recordOutcome(next, true)

	r.mu.Lock()
	route.BytesUsed += uint64(len(payload))
	bytesUsed, bandwidth := route.BytesUsed, route.BandwidthMbps
	r.mu.Unlock()

	if bandwidth > 0 && float64(bytesUsed) > bandwidthWarnThreshold*bandwidth {
		log.Routing.Warn().
			Str("route_id", routeID).
			Uint64("bytes_used", bytesUsed).
			Float64("bandwidth_mbps", bandwidth).
			Msg("route bandwidth threshold exceeded")
	}

	r.publish(eventbus.Event{Kind: eventbus.PacketForwarded, NodeID: next, RouteID: routeID, Bytes: uint64(len(payload)), At: now()})
	return nil
}

// Release removes a route outright, e.g. when the session manager
// determines no session still references it. Unlike the PeerDropped path
// this is a capacity decision rather than a peer-loss one, so it emits no
// RouteRemoved event: the caller already knows the route is going away. A
// stale cache entry pointing at routeID self-heals on the next FindRoute,
// since cachedRoute treats a missing route id as a cache miss.
func (r *Router) Release(routeID string) {
	r.mu.Lock()
	delete(r.routes, routeID)
	r.mu.Unlock()
}

// Get returns the route for routeID, or nil if unknown.
func (r *Router) Get(routeID string) *Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.routes[routeID]
}

// List returns every route currently tracked, valid or not.
func (r *Router) List() []*Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, route)
	}
	return out
}

func (r *Router) runInvalidationLoop(dropped <-chan eventbus.Event, cancelDropped func(), bwReport <-chan eventbus.Event, cancelBW func()) {
	defer cancelDropped()
	defer cancelBW()

	for {
		select {
		case e, ok := <-dropped:
			if !ok {
				return
			}
			r.onPeerDropped(e.NodeID)
		case e, ok := <-bwReport:
			if !ok {
				return
			}
			r.cache.invalidateHop(e.NodeID)
		case <-r.done:
			return
		}
	}
}

// onPeerDropped removes every route hopping through nodeID and evicts its
// cache entries, emitting RouteRemoved for each route dropped.
func (r *Router) onPeerDropped(nodeID types.NodeID) {
	r.mu.Lock()
	var removed []string
	for id, route := range r.routes {
		if containsHop(route.HopList, nodeID) {
			removed = append(removed, id)
			delete(r.routes, id)
		}
	}
	r.mu.Unlock()

	r.cache.invalidateHop(nodeID)
	for _, id := range removed {
		r.publish(eventbus.Event{Kind: eventbus.RouteRemoved, RouteID: id, NodeID: nodeID, At: now()})
	}
}

// forwardStats is the running success/failure count behind a peer's
// reputation. Reputation is a pure function of this ratio blended with the
// peer's heartbeat-derived uptime, never something the peer reports
// about itself.
type forwardStats struct {
	success int
	failure int
}

// recordOutcome updates nodeID's forwarding stats and recomputes its
// reputation in the registry.
func (r *Router) recordOutcome(nodeID types.NodeID, ok bool) {
	r.statsMu.Lock()
	s, exists := r.stats[nodeID]
	if !exists {
		s = &forwardStats{}
		r.stats[nodeID] = s
	}
	if ok {
		s.success++
	} else {
		s.failure++
	}
	successRate := float64(s.success) / float64(s.success+s.failure)
	r.statsMu.Unlock()

	uptime := 0.0
	if p := r.reg.Get(nodeID); p != nil {
		uptime = p.Bandwidth.UptimePct / 100
	}
	r.reg.SetReputation(nodeID, 0.7*successRate+0.3*uptime)
}

func containsHop(hops []types.NodeID, nodeID types.NodeID) bool {
	for _, h := range hops {
		if h == nodeID {
			return true
		}
	}
	return false
}

func (r *Router) publish(e eventbus.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}

// Stop ends the invalidation loop. Safe to call more than once.
func (r *Router) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

var now = time.Now
