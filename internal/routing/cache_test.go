package routing

import (
	"testing"

	"github.com/Klingon-tech/networkneuron/pkg/types"
)

func TestRouteCache_PutGet_RoundTrips(t *testing.T) {
	c, err := newRouteCache(10)
	if err != nil {
		t.Fatalf("newRouteCache: %v", err)
	}
	dest := types.NodeID{0x1}
	hop := types.NodeID{0x2}
	req := Requirements{Algorithm: AlgorithmBalanced}

	c.put(dest, req, "route-1", []types.NodeID{hop})

	got, ok := c.get(dest, req)
	if !ok || got != "route-1" {
		t.Fatalf("expected cache hit for route-1, got %q ok=%v", got, ok)
	}
}

func TestRouteCache_DifferentRequirements_DifferentKeys(t *testing.T) {
	c, _ := newRouteCache(10)
	dest := types.NodeID{0x1}

	c.put(dest, Requirements{Algorithm: AlgorithmLowestLatency}, "route-lat", nil)
	c.put(dest, Requirements{Algorithm: AlgorithmHighestBandwidth}, "route-bw", nil)

	if got, ok := c.get(dest, Requirements{Algorithm: AlgorithmLowestLatency}); !ok || got != "route-lat" {
		t.Errorf("expected route-lat, got %q ok=%v", got, ok)
	}
	if got, ok := c.get(dest, Requirements{Algorithm: AlgorithmHighestBandwidth}); !ok || got != "route-bw" {
		t.Errorf("expected route-bw, got %q ok=%v", got, ok)
	}
}

func TestRouteCache_InvalidateHop_RemovesOnlyAffectedEntries(t *testing.T) {
	c, _ := newRouteCache(10)
	destA := types.NodeID{0xA}
	destB := types.NodeID{0xB}
	hop1 := types.NodeID{0x1}
	hop2 := types.NodeID{0x2}

	c.put(destA, Requirements{}, "route-a", []types.NodeID{hop1})
	c.put(destB, Requirements{}, "route-b", []types.NodeID{hop2})

	c.invalidateHop(hop1)

	if _, ok := c.get(destA, Requirements{}); ok {
		t.Error("expected route-a to be invalidated")
	}
	if _, ok := c.get(destB, Requirements{}); !ok {
		t.Error("route-b should be unaffected by hop1's invalidation")
	}
}

func TestRouteCache_Eviction_RespectsMax(t *testing.T) {
	c, err := newRouteCache(2)
	if err != nil {
		t.Fatalf("newRouteCache: %v", err)
	}
	c.put(types.NodeID{0x1}, Requirements{}, "r1", nil)
	c.put(types.NodeID{0x2}, Requirements{}, "r2", nil)
	c.put(types.NodeID{0x3}, Requirements{}, "r3", nil)

	if c.len() != 2 {
		t.Errorf("expected len 2 after exceeding max, got %d", c.len())
	}
	if _, ok := c.get(types.NodeID{0x1}, Requirements{}); ok {
		t.Error("expected the oldest entry to be evicted")
	}
}
