package coordinator

import (
	"encoding/binary"
	"fmt"
)

// A DataPacket's wire envelope carries no route_id field (per pkg/wire's
// canonical {type, msg_id, timestamp, source_id, dest_id, payload,
// signature} shape), but an intermediate relay calling Router.Forward
// needs to know which route a packet continues along. tagRoute/untagRoute
// prepend a length-prefixed route_id to the envelope payload so a hop can
// recover it without widening the signed wire format itself.
func tagRoute(routeID string, payload []byte) []byte {
	out := make([]byte, 2+len(routeID)+len(payload))
	binary.BigEndian.PutUint16(out[:2], uint16(len(routeID)))
	copy(out[2:], routeID)
	copy(out[2+len(routeID):], payload)
	return out
}

func untagRoute(data []byte) (routeID string, payload []byte, err error) {
	if len(data) < 2 {
		return "", nil, fmt.Errorf("route-tagged payload too short")
	}
	n := int(binary.BigEndian.Uint16(data[:2]))
	if len(data) < 2+n {
		return "", nil, fmt.Errorf("route-tagged payload truncated")
	}
	return string(data[2 : 2+n]), data[2+n:], nil
}
