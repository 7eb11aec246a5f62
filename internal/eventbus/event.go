// Package eventbus is the coordinator's typed event bus: a bounded,
// multi-subscriber broadcast used to decouple the registry, router,
// session manager, accounting, and reward engine from each other.
package eventbus

import (
	"time"

	"github.com/Klingon-tech/networkneuron/pkg/types"
)

// Kind identifies the category of an Event.
type Kind string

const (
	PeerConnected       Kind = "peer_connected"
	PeerDropped         Kind = "peer_dropped"
	HandshakeOk         Kind = "handshake_ok"
	HandshakeErr        Kind = "handshake_err"
	RouteCreated        Kind = "route_created"
	RouteRemoved        Kind = "route_removed"
	PacketForwarded     Kind = "packet_forwarded"
	SessionOpened       Kind = "session_opened"
	SessionClosed       Kind = "session_closed"
	BandwidthReport     Kind = "bandwidth_report"
	RewardDistributed   Kind = "reward_distributed"
	RewardPoolExhausted Kind = "reward_pool_exhausted"
)

// Event is a single occurrence published on the bus. Only the fields
// relevant to Kind are populated; the rest are zero values.
type Event struct {
	Kind Kind
	At   time.Time

	NodeID    types.NodeID
	RouteID   string
	SessionID string

	Bytes    uint64
	Sessions int

	Err error

	// Reward/exhaustion payloads.
	Amount uint64
	Period string
}
