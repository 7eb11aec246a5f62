package routing

import (
	"encoding/binary"
	"math"

	"github.com/Klingon-tech/networkneuron/pkg/crypto"
	"github.com/Klingon-tech/networkneuron/pkg/types"
	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultCacheMax is the default route cache size from §6.
const defaultCacheMax = 1000

// cacheKey is (destination, canonical_hash(requirements)).
type cacheKey struct {
	dest    types.NodeID
	reqHash types.Hash
}

// canonicalHash returns a deterministic hash of a requirements query, used
// as half of the cache key so two logically identical queries always hit
// the same cache slot regardless of field ordering in memory.
func canonicalHash(req Requirements) types.Hash {
	var buf []byte
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(req.MinBandwidth))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(req.MaxLatency))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(req.MaxCost))
	if req.RequireEncryption {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, []byte(req.normalizedAlgorithm())...)
	buf = append(buf, 0)
	for _, r := range req.Regions {
		buf = append(buf, []byte(r)...)
		buf = append(buf, 0)
	}
	return crypto.Hash(buf)
}

// routeCache is an LRU mapping a (destination, requirements) query to the
// route id that last satisfied it. The Route itself is the Router's
// responsibility; the cache only ever holds an id so eviction never
// silently diverges from the route's source of truth.
type routeCache struct {
	lru *lru.Cache[cacheKey, string]

	// hopIndex lets invalidation by hop (on BandwidthReport) find every
	// cache entry touching a given node without scanning the whole cache.
	hopIndex map[types.NodeID]map[cacheKey]struct{}
}

func newRouteCache(max int) (*routeCache, error) {
	if max <= 0 {
		max = defaultCacheMax
	}
	c, err := lru.New[cacheKey, string](max)
	if err != nil {
		return nil, err
	}
	return &routeCache{lru: c, hopIndex: make(map[types.NodeID]map[cacheKey]struct{})}, nil
}

func (c *routeCache) get(dest types.NodeID, req Requirements) (string, bool) {
	return c.lru.Get(cacheKey{dest: dest, reqHash: canonicalHash(req)})
}

func (c *routeCache) put(dest types.NodeID, req Requirements, routeID string, hops []types.NodeID) {
	key := cacheKey{dest: dest, reqHash: canonicalHash(req)}
	c.lru.Add(key, routeID)
	for _, hop := range hops {
		if c.hopIndex[hop] == nil {
			c.hopIndex[hop] = make(map[cacheKey]struct{})
		}
		c.hopIndex[hop][key] = struct{}{}
	}
}

// invalidateHop removes every cache entry that touches nodeID.
func (c *routeCache) invalidateHop(nodeID types.NodeID) {
	keys := c.hopIndex[nodeID]
	for key := range keys {
		c.lru.Remove(key)
	}
	delete(c.hopIndex, nodeID)
}

func (c *routeCache) len() int {
	return c.lru.Len()
}
