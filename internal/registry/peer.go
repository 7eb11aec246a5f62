// Package registry tracks connected and discovered peers and owns the
// peer state machine: discovered → connecting → handshaking → active ⇄
// quarantined → dropped.
package registry

import (
	"time"

	"github.com/Klingon-tech/networkneuron/pkg/types"
)

// State is a peer's position in the connection lifecycle.
type State string

const (
	StateDiscovered  State = "discovered"
	StateConnecting  State = "connecting"
	StateHandshaking State = "handshaking"
	StateActive      State = "active"
	StateQuarantined State = "quarantined"
	StateDropped     State = "dropped"
)

// BandwidthProfile describes a peer's advertised and observed link quality.
type BandwidthProfile struct {
	UploadMbps   float64
	DownloadMbps float64
	LatencyMs    float64
	UptimePct    float64
	CapacityMbps float64
}

// Peer is a registry record for one node in the mesh.
type Peer struct {
	NodeID       types.NodeID
	Address      string
	PublicKey    []byte
	Capabilities []string
	Region       string
	Bandwidth    BandwidthProfile
	Reputation   float64 // in [0,1], updated by the router on forwarding outcomes

	ConnectedAt time.Time // zero if never connected
	LastSeen    time.Time
	State       State

	missedHeartbeats int
}

// IsActive reports whether the peer is currently usable for routing.
func (p *Peer) IsActive() bool {
	return p.State == StateActive
}
