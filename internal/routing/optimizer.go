package routing

import (
	"github.com/Klingon-tech/networkneuron/internal/errs"
	"github.com/Klingon-tech/networkneuron/internal/registry"
)

// bwNormCap and latNormCap are the normalization ceilings from §4.4:
// bandwidth is capped to 1.0 at 100 Mbps, latency at 1.0 at 1000 ms.
const (
	bwNormCap  = 100.0
	latNormCap = 1000.0
)

func bwNorm(mbps float64) float64 {
	n := mbps / bwNormCap
	if n > 1 {
		return 1
	}
	if n < 0 {
		return 0
	}
	return n
}

func latNorm(ms float64) float64 {
	n := ms / latNormCap
	if n > 1 {
		return 1
	}
	if n < 0 {
		return 0
	}
	return n
}

func candidateBandwidth(p *registry.Peer) float64 {
	return p.Bandwidth.DownloadMbps
}

func candidateCost(p *registry.Peer) float64 {
	if p.Bandwidth.DownloadMbps <= 0 {
		return p.Bandwidth.LatencyMs
	}
	return p.Bandwidth.LatencyMs / p.Bandwidth.DownloadMbps
}

// passesHardFilters applies the requirement filters that must hold
// regardless of algorithm: min_bandwidth, max_latency, max_cost, regions.
func passesHardFilters(p *registry.Peer, req Requirements) bool {
	if !p.IsActive() {
		return false
	}
	if req.MinBandwidth > 0 && candidateBandwidth(p) < req.MinBandwidth {
		return false
	}
	if req.MaxLatency > 0 && p.Bandwidth.LatencyMs > req.MaxLatency {
		return false
	}
	if req.MaxCost > 0 && candidateCost(p) > req.MaxCost {
		return false
	}
	if len(req.Regions) > 0 && !containsRegion(req.Regions, p.Region) {
		return false
	}
	return true
}

func containsRegion(regions []string, region string) bool {
	for _, r := range regions {
		if r == region {
			return true
		}
	}
	return false
}

// scoreFunc ranks candidates for a given algorithm; higher wins.
type scoreFunc func(p *registry.Peer) float64

func scoreFor(algo Algorithm) scoreFunc {
	switch algo {
	case AlgorithmShortest:
		return func(p *registry.Peer) float64 {
			return candidateBandwidth(p) - p.Bandwidth.LatencyMs
		}
	case AlgorithmLowestLatency:
		return func(p *registry.Peer) float64 {
			return -p.Bandwidth.LatencyMs
		}
	case AlgorithmHighestBandwidth:
		return func(p *registry.Peer) float64 {
			return candidateBandwidth(p)
		}
	default: // balanced
		return func(p *registry.Peer) float64 {
			return 0.4*bwNorm(candidateBandwidth(p)) +
				0.3*(1-latNorm(p.Bandwidth.LatencyMs)) +
				0.2*p.Reputation +
				0.1*(p.Bandwidth.UptimePct/100)
		}
	}
}

// SelectPeer picks the single best candidate for req out of the active
// peers that pass every hard filter. Deterministic given the same input:
// ties break by lower NodeID, lexicographically.
func SelectPeer(candidates []*registry.Peer, req Requirements) (*registry.Peer, error) {
	score := scoreFor(req.normalizedAlgorithm())

	var best *registry.Peer
	var bestScore float64

	for _, p := range candidates {
		if !passesHardFilters(p, req) {
			continue
		}
		s := score(p)
		if best == nil || s > bestScore || (s == bestScore && p.NodeID.Less(best.NodeID)) {
			best = p
			bestScore = s
		}
	}

	if best == nil {
		return nil, errs.New(errs.RouteNotFound, "", nil)
	}
	return best, nil
}
