// Package transport dials, accepts, and maintains peer connections: the
// handshake, the per-peer send/recv loops, and the keepalive sweep that
// feeds the peer registry's quarantine/drop escalation.
package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Klingon-tech/networkneuron/internal/errs"
	"github.com/Klingon-tech/networkneuron/internal/eventbus"
	"github.com/Klingon-tech/networkneuron/internal/log"
	"github.com/Klingon-tech/networkneuron/internal/registry"
	"github.com/Klingon-tech/networkneuron/pkg/crypto"
	"github.com/Klingon-tech/networkneuron/pkg/types"
	"github.com/Klingon-tech/networkneuron/pkg/wire"
)

// Config configures a Transport.
type Config struct {
	ListenAddr        string
	BootstrapPeers    []string
	KeepaliveInterval time.Duration
	Capabilities      []string
	Region            string
}

// Handler processes a decoded, verified, non-replayed envelope from a peer.
type Handler func(from types.NodeID, e *wire.Envelope)

// TunnelKeyHandler receives the derived symmetric tunnel key for peer,
// computed once a handshake completes successfully.
type TunnelKeyHandler func(peer types.NodeID, key []byte)

// Transport owns every live connection to a peer and the handshake,
// keepalive, and replay-protection machinery around it.
type Transport struct {
	cfg           Config
	identity      *crypto.PrivateKey
	tunnelKeypair *crypto.X25519Keypair
	localID       types.NodeID
	reg           *registry.Registry
	bus           *eventbus.Bus
	guard         *wire.ReplayGuard

	mu    sync.RWMutex
	links map[types.NodeID]*link
	keys  map[types.NodeID][]byte // known public keys, populated at handshake

	listener   net.Listener
	handler    Handler
	tunnelKeyH TunnelKeyHandler
	done       chan struct{}
}

// New returns a Transport ready to Start. It generates this node's
// handshake-lifetime X25519 keypair, used to derive a per-peer tunnel key
// with every peer it handshakes with.
func New(cfg Config, identity *crypto.PrivateKey, localID types.NodeID, reg *registry.Registry, bus *eventbus.Bus) (*Transport, error) {
	tunnelKeypair, err := crypto.GenerateX25519Keypair()
	if err != nil {
		return nil, fmt.Errorf("generate tunnel keypair: %w", err)
	}
	return &Transport{
		cfg:           cfg,
		identity:      identity,
		tunnelKeypair: tunnelKeypair,
		localID:       localID,
		reg:           reg,
		bus:           bus,
		guard:         wire.NewReplayGuard(),
		links:         make(map[types.NodeID]*link),
		keys:          make(map[types.NodeID][]byte),
		done:          make(chan struct{}),
	}, nil
}

// SetHandler registers the callback invoked for every accepted inbound
// envelope, across every peer.
func (t *Transport) SetHandler(h Handler) {
	t.handler = h
}

// SetTunnelKeyHandler registers the callback invoked with the derived
// tunnel key every time a handshake completes, in either direction.
func (t *Transport) SetTunnelKeyHandler(h TunnelKeyHandler) {
	t.tunnelKeyH = h
}

// Start begins listening and dials any configured bootstrap peers.
func (t *Transport) Start() error {
	addr, err := listenAddr(t.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("resolve listen_addr: %w", err)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	t.listener = ln

	go t.acceptLoop()
	go t.guard.RunPruneLoop(t.done)
	if t.cfg.KeepaliveInterval > 0 {
		go t.runKeepaliveLoop()
	}

	for _, addr := range t.cfg.BootstrapPeers {
		addr := addr
		go func() {
			if err := t.Dial(addr); err != nil {
				log.Transport.Warn().Err(err).Str("addr", addr).Msg("bootstrap dial failed")
			}
		}()
	}
	return nil
}

// Addr returns the address the transport is listening on. Only valid after
// Start returns successfully.
func (t *Transport) Addr() string {
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

// Stop closes the listener and every live link.
func (t *Transport) Stop() error {
	close(t.done)
	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}
	t.mu.Lock()
	for id, l := range t.links {
		l.Close()
		delete(t.links, id)
	}
	t.mu.Unlock()
	return err
}

func (t *Transport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				log.Transport.Warn().Err(err).Msg("accept failed")
				continue
			}
		}
		go t.handleIncoming(conn)
	}
}

func (t *Transport) handleIncoming(conn net.Conn) {
	remoteID, info, err := acceptHandshake(conn, t.identity, t.tunnelKeypair, t.localID, t.cfg.Capabilities, t.cfg.Region)
	if err != nil {
		log.Transport.Debug().Err(err).Str("addr", conn.RemoteAddr().String()).Msg("inbound handshake failed")
		conn.Close()
		return
	}
	t.reg.OnConnect(remoteID, conn.RemoteAddr().String())
	if herr := t.reg.OnHandshakeResult(remoteID, info.PublicKey, nil); herr != nil {
		conn.Close()
		return
	}
	t.establishTunnelKey(remoteID, info.TunnelPublicKey)
	t.attachLink(remoteID, info.PublicKey, conn)
}

// Dial connects to addr, completes a handshake, and registers the resulting
// link under the peer's node id.
func (t *Transport) Dial(addr string) error {
	resolved, err := dialAddr(addr)
	if err != nil {
		return err
	}
	conn, err := net.Dial("tcp", resolved)
	if err != nil {
		return errs.New(errs.PeerDialFail, addr, err)
	}

	remoteID, info, err := dialHandshake(conn, t.identity, t.tunnelKeypair, t.localID, t.cfg.Capabilities, t.cfg.Region)
	if err != nil {
		conn.Close()
		return errs.New(errs.PeerHandshakeFail, addr, err)
	}

	t.reg.OnConnect(remoteID, addr)
	if herr := t.reg.OnHandshakeResult(remoteID, info.PublicKey, nil); herr != nil {
		conn.Close()
		return herr
	}
	t.establishTunnelKey(remoteID, info.TunnelPublicKey)
	t.attachLink(remoteID, info.PublicKey, conn)
	return nil
}

// establishTunnelKey derives the symmetric key for remoteID and hands it to
// the registered TunnelKeyHandler (the router, via coordinator wiring). A
// derivation failure is logged and leaves no tunnel key installed, so any
// route requiring encryption to this peer surfaces CryptoError{AuthFail}
// on forward rather than silently sending unencrypted traffic.
func (t *Transport) establishTunnelKey(remoteID types.NodeID, peerTunnelKey []byte) {
	if t.tunnelKeyH == nil {
		return
	}
	key, err := deriveTunnelKey(t.tunnelKeypair, t.localID, remoteID, peerTunnelKey)
	if err != nil {
		log.Transport.Warn().Err(err).Str("peer", remoteID.String()).Msg("tunnel key derivation failed")
		return
	}
	t.tunnelKeyH(remoteID, key)
}

func (t *Transport) attachLink(remoteID types.NodeID, publicKey []byte, conn net.Conn) {
	l := newLink(conn)

	t.mu.Lock()
	if old, ok := t.links[remoteID]; ok {
		old.Close()
	}
	t.links[remoteID] = l
	t.keys[remoteID] = publicKey
	t.mu.Unlock()

	go l.writeLoop()
	go l.readLoop(func(data []byte) {
		t.dispatch(remoteID, data)
	})
}

func (t *Transport) dispatch(remoteID types.NodeID, data []byte) {
	t.mu.RLock()
	pubKey := t.keys[remoteID]
	t.mu.RUnlock()

	e, err := wire.Accept(data, pubKey, t.guard)
	if err != nil {
		log.Transport.Debug().Err(err).Str("peer", remoteID.String()).Msg("rejected inbound envelope")
		t.reg.Quarantine(remoteID)
		return
	}
	if e.Type == wire.TypeHeartbeat {
		t.handleHeartbeat(remoteID, e)
		return
	}
	if t.handler != nil {
		t.handler(remoteID, e)
	}
}

// Send signs and transmits an envelope to the given peer.
func (t *Transport) Send(to types.NodeID, e *wire.Envelope) error {
	if err := e.Sign(t.identity); err != nil {
		return err
	}
	data, err := wire.Encode(e)
	if err != nil {
		return err
	}

	t.mu.RLock()
	l, ok := t.links[to]
	t.mu.RUnlock()
	if !ok {
		return errs.New(errs.RoutePeerGone, to.String(), nil)
	}
	return l.send(data)
}

// Disconnect closes and forgets the link to a peer, e.g. on registry drop.
func (t *Transport) Disconnect(nodeID types.NodeID) {
	t.mu.Lock()
	l, ok := t.links[nodeID]
	delete(t.links, nodeID)
	delete(t.keys, nodeID)
	t.mu.Unlock()
	if ok {
		l.Close()
	}
	t.guard.Forget(nodeID)
}
