package routing

import (
	"testing"

	"github.com/Klingon-tech/networkneuron/internal/errs"
	"github.com/Klingon-tech/networkneuron/internal/registry"
	"github.com/Klingon-tech/networkneuron/pkg/types"
)

func testPeer(b byte, bw, lat, rep, uptime float64) *registry.Peer {
	var id types.NodeID
	id[0] = b
	return &registry.Peer{
		NodeID:     id,
		Region:     "us-east",
		Reputation: rep,
		State:      registry.StateActive,
		Bandwidth: registry.BandwidthProfile{
			DownloadMbps: bw,
			LatencyMs:    lat,
			UptimePct:    uptime,
		},
	}
}

func TestSelectPeer_Balanced_PicksHighestWeightedScore(t *testing.T) {
	candidates := []*registry.Peer{
		testPeer(1, 100, 50, 0.95, 99),
		testPeer(2, 50, 100, 0.85, 95),
		testPeer(3, 200, 25, 0.98, 99),
	}
	best, err := SelectPeer(candidates, Requirements{Algorithm: AlgorithmBalanced})
	if err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}
	if best.NodeID[0] != 3 {
		t.Errorf("expected node 3 to win balanced scoring, got node %d", best.NodeID[0])
	}
}

func TestSelectPeer_LowestLatency(t *testing.T) {
	candidates := []*registry.Peer{
		testPeer(1, 10, 200, 0.5, 80),
		testPeer(2, 10, 20, 0.5, 80),
	}
	best, err := SelectPeer(candidates, Requirements{Algorithm: AlgorithmLowestLatency})
	if err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}
	if best.NodeID[0] != 2 {
		t.Errorf("expected node 2 (lower latency) to win, got node %d", best.NodeID[0])
	}
}

func TestSelectPeer_HighestBandwidth(t *testing.T) {
	candidates := []*registry.Peer{
		testPeer(1, 10, 20, 0.5, 80),
		testPeer(2, 90, 20, 0.5, 80),
	}
	best, err := SelectPeer(candidates, Requirements{Algorithm: AlgorithmHighestBandwidth})
	if err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}
	if best.NodeID[0] != 2 {
		t.Errorf("expected node 2 (higher bandwidth) to win, got node %d", best.NodeID[0])
	}
}

func TestSelectPeer_FiltersInactivePeers(t *testing.T) {
	inactive := testPeer(1, 100, 10, 0.9, 99)
	inactive.State = registry.StateQuarantined
	active := testPeer(2, 10, 10, 0.1, 10)

	best, err := SelectPeer([]*registry.Peer{inactive, active}, Requirements{})
	if err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}
	if best.NodeID[0] != 2 {
		t.Error("expected the only active peer to be selected")
	}
}

func TestSelectPeer_MinBandwidthFilter(t *testing.T) {
	low := testPeer(1, 5, 10, 0.9, 99)
	high := testPeer(2, 150, 10, 0.1, 10)

	best, err := SelectPeer([]*registry.Peer{low, high}, Requirements{MinBandwidth: 100})
	if err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}
	if best.NodeID[0] != 2 {
		t.Error("expected the peer meeting min_bandwidth to be selected")
	}
}

func TestSelectPeer_NoCandidatesPassFilters_ReturnsRouteNotFound(t *testing.T) {
	p := testPeer(1, 5, 999, 0.1, 10)
	_, err := SelectPeer([]*registry.Peer{p}, Requirements{MaxLatency: 10})
	if !errs.Is(err, errs.RouteNotFound) {
		t.Fatalf("expected RouteNotFound, got %v", err)
	}
}

func TestSelectPeer_RegionFilter(t *testing.T) {
	euPeer := testPeer(1, 100, 10, 0.9, 99)
	euPeer.Region = "eu-west"
	usPeer := testPeer(2, 50, 10, 0.5, 80)
	usPeer.Region = "us-east"

	best, err := SelectPeer([]*registry.Peer{euPeer, usPeer}, Requirements{Regions: []string{"us-east"}})
	if err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}
	if best.NodeID[0] != 2 {
		t.Error("expected the us-east peer to be selected")
	}
}

func TestSelectPeer_TieBreaksByLowestNodeID(t *testing.T) {
	a := testPeer(5, 50, 50, 0.5, 80)
	b := testPeer(2, 50, 50, 0.5, 80)

	best, err := SelectPeer([]*registry.Peer{a, b}, Requirements{Algorithm: AlgorithmBalanced})
	if err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}
	if best.NodeID[0] != 2 {
		t.Errorf("expected the lower NodeID to win the tie, got node %d", best.NodeID[0])
	}
}
