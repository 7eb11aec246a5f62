// Package session binds client sessions to routes. The session manager is
// the single writer of Session records, the way the peer registry is the
// single writer of Peer records and the router is the single writer of
// Routes.
package session

import "time"

// Session is a client-scoped binding of a route to a client id.
type Session struct {
	SessionID        string
	ClientID         string
	RouteID          string
	StartedAt        time.Time
	EndedAt          time.Time // zero while active
	BytesTransferred uint64
	ActiveFlag       bool
}

// IsActive reports whether the session has not yet been closed.
func (s *Session) IsActive() bool {
	return s.ActiveFlag
}
