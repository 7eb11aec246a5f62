// Package routing implements path selection, the route cache, and
// forwarding: the component that owns every active Route.
package routing

import (
	"time"

	"github.com/Klingon-tech/networkneuron/pkg/types"
)

// Algorithm selects which scoring policy the optimizer applies.
type Algorithm string

const (
	AlgorithmShortest         Algorithm = "shortest"
	AlgorithmLowestLatency    Algorithm = "lowest_latency"
	AlgorithmHighestBandwidth Algorithm = "highest_bandwidth"
	AlgorithmBalanced         Algorithm = "balanced"
)

// Requirements is an optional filter and scoring policy for a route query.
type Requirements struct {
	MinBandwidth      float64
	MaxLatency        float64
	MaxCost           float64
	Regions           []string
	RequireEncryption bool
	Algorithm         Algorithm
}

// normalizedAlgorithm returns req.Algorithm, defaulting to balanced when
// unset so callers never need to special-case the zero value.
func (r Requirements) normalizedAlgorithm() Algorithm {
	if r.Algorithm == "" {
		return AlgorithmBalanced
	}
	return r.Algorithm
}

// Route is a single-hop (currently) path from this node to a destination
// peer. HopList is kept as an ordered slice so multi-hop routing is an
// additive extension rather than a type change.
type Route struct {
	RouteID       string
	HopList       []types.NodeID
	LatencyMs     float64
	BandwidthMbps float64
	Cost          float64
	EncryptedFlag bool
	ExpiresAt     time.Time
	BytesUsed     uint64
}

// Valid reports whether the route has not expired. Hop liveness is checked
// separately by the Router against the registry, since Route itself has no
// reference back to peer state.
func (r *Route) Valid(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// Destination returns the final hop, i.e. the peer traffic is ultimately
// addressed to.
func (r *Route) Destination() types.NodeID {
	if len(r.HopList) == 0 {
		return types.NodeID{}
	}
	return r.HopList[len(r.HopList)-1]
}
