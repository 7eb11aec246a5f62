package transport

import (
	"encoding/json"
	"time"

	"github.com/Klingon-tech/networkneuron/internal/eventbus"
	"github.com/Klingon-tech/networkneuron/internal/log"
	"github.com/Klingon-tech/networkneuron/internal/registry"
	"github.com/Klingon-tech/networkneuron/pkg/types"
	"github.com/Klingon-tech/networkneuron/pkg/wire"
)

type heartbeatPayload struct {
	Bandwidth registry.BandwidthProfile `json:"bandwidth_profile"`
}

// runKeepaliveLoop sends a heartbeat to every connected peer on
// cfg.KeepaliveInterval and sweeps the registry for peers that missed their
// window, escalating quarantine/drop exactly as the registry defines.
func (t *Transport) runKeepaliveLoop() {
	ticker := time.NewTicker(t.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.broadcastHeartbeat()
			t.reg.SweepMissedHeartbeats()
		}
	}
}

func (t *Transport) broadcastHeartbeat() {
	payload, err := json.Marshal(heartbeatPayload{Bandwidth: localBandwidthProfile()})
	if err != nil {
		log.Transport.Warn().Err(err).Msg("marshal heartbeat payload")
		return
	}

	t.mu.RLock()
	peers := make([]types.NodeID, 0, len(t.links))
	for id := range t.links {
		peers = append(peers, id)
	}
	t.mu.RUnlock()

	for _, id := range peers {
		e := wire.NewEnvelope(wire.TypeHeartbeat, t.localID, id, payload)
		if err := t.Send(id, e); err != nil {
			log.Transport.Debug().Err(err).Str("peer", id.String()).Msg("heartbeat send failed")
		}
	}
}

func (t *Transport) handleHeartbeat(from types.NodeID, e *wire.Envelope) {
	var hb heartbeatPayload
	if err := json.Unmarshal(e.Payload, &hb); err != nil {
		log.Transport.Debug().Err(err).Str("peer", from.String()).Msg("bad heartbeat payload")
		return
	}
	if err := t.reg.OnHeartbeat(from, hb.Bandwidth); err != nil {
		log.Transport.Debug().Err(err).Str("peer", from.String()).Msg("heartbeat rejected")
		return
	}
	if t.bus != nil {
		t.bus.Publish(eventbus.Event{Kind: eventbus.BandwidthReport, NodeID: from, At: time.Now()})
	}
}

// localBandwidthProfile reports this node's own observed link quality for
// the heartbeat we send to peers.
func localBandwidthProfile() registry.BandwidthProfile {
	return registry.BandwidthProfile{UptimePct: 100}
}
