// Package errs defines the typed error taxonomy shared across the relay
// mesh core. Every error surfaced across a component boundary carries a
// Kind plus the id of the subject it concerns, so callers can branch on
// cause without parsing message strings and every log line can include
// both fields per policy.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure. Kinds are grouped by the component
// that raises them, matching the taxonomy in the protocol design.
type Kind string

const (
	// Crypto errors.
	CryptoAuthFail Kind = "crypto.auth_fail"
	CryptoKeyGen   Kind = "crypto.keygen"
	CryptoSign     Kind = "crypto.sign"
	CryptoVerify   Kind = "crypto.verify"

	// Wire codec errors.
	WireUnknownType  Kind = "wire.unknown_type"
	WireBadSignature Kind = "wire.bad_signature"
	WireReplay       Kind = "wire.replay"
	WireDecode       Kind = "wire.decode"

	// Peer errors.
	PeerDialFail      Kind = "peer.dial_fail"
	PeerHandshakeFail Kind = "peer.handshake_fail"
	PeerQuarantined   Kind = "peer.quarantined"
	PeerDropped       Kind = "peer.dropped"

	// Route errors.
	RouteNotFound Kind = "route.not_found"
	RouteExpired  Kind = "route.expired"
	RoutePeerGone Kind = "route.peer_gone"
	RouteCongested Kind = "route.congested"
	RouteInvalid  Kind = "route.invalid"

	// Session errors.
	SessionNotFound  Kind = "session.not_found"
	SessionNotActive Kind = "session.not_active"

	// Ledger errors.
	LedgerInsufficientBalance    Kind = "ledger.insufficient_balance"
	LedgerInsufficientStake      Kind = "ledger.insufficient_stake"
	LedgerMinStakeNotMet         Kind = "ledger.min_stake_not_met"
	LedgerInsufficientRewardPool Kind = "ledger.insufficient_reward_pool"
	LedgerBadSignature           Kind = "ledger.bad_signature"

	Config   Kind = "config"
	TimedOut Kind = "timed_out"
	Internal Kind = "internal"
)

// Error is the core error type. Subject is the id of whatever the error
// concerns — a peer id, route id, session id, or tx id — so a log line can
// always report "what kind, about what" without string parsing.
type Error struct {
	Kind    Kind
	Subject string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Subject, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error for the given kind and subject, wrapping cause (which
// may be nil).
func New(kind Kind, subject string, cause error) *Error {
	return &Error{Kind: kind, Subject: subject, Err: cause}
}

// Is reports whether err is an *Error of the given kind, unwrapping through
// any wrapper chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
