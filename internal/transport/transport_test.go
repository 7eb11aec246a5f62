package transport

import (
	"testing"
	"time"

	"github.com/Klingon-tech/networkneuron/internal/eventbus"
	"github.com/Klingon-tech/networkneuron/internal/registry"
	"github.com/Klingon-tech/networkneuron/pkg/crypto"
	"github.com/Klingon-tech/networkneuron/pkg/types"
	"github.com/Klingon-tech/networkneuron/pkg/wire"
)

func newTestNode(t *testing.T) (*Transport, types.NodeID, *crypto.PrivateKey) {
	t.Helper()
	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	id := crypto.NodeIDFromPubKey(pk.PublicKey())
	reg := registry.New(eventbus.New(), nil, time.Minute, 2)
	tr, err := New(Config{ListenAddr: "127.0.0.1:0"}, pk, id, reg, eventbus.New())
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	if err := tr.Start(); err != nil {
		t.Fatalf("start transport: %v", err)
	}
	t.Cleanup(func() { tr.Stop() })
	return tr, id, pk
}

func TestTransport_DialHandshakeAndSend(t *testing.T) {
	serverTr, serverID, _ := newTestNode(t)
	clientTr, clientID, _ := newTestNode(t)

	received := make(chan *wire.Envelope, 1)
	serverTr.SetHandler(func(from types.NodeID, e *wire.Envelope) {
		if from == clientID {
			received <- e
		}
	})

	if err := clientTr.Dial(serverTr.Addr()); err != nil {
		t.Fatalf("dial: %v", err)
	}

	// Give the server side a moment to attach its link after the handshake.
	time.Sleep(100 * time.Millisecond)

	e := wire.NewEnvelope(wire.TypeDataPacket, clientID, serverID, []byte("payload"))
	if err := clientTr.Send(serverID, e); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got := <-received:
		if string(got.Payload) != "payload" {
			t.Errorf("got payload %q", got.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the server to receive the envelope")
	}
}

func TestTransport_DialEstablishesMatchingTunnelKeys(t *testing.T) {
	serverTr, serverID, _ := newTestNode(t)
	clientTr, clientID, _ := newTestNode(t)

	serverKeys := make(chan []byte, 1)
	clientKeys := make(chan []byte, 1)
	serverTr.SetTunnelKeyHandler(func(peer types.NodeID, key []byte) {
		if peer == clientID {
			serverKeys <- key
		}
	})
	clientTr.SetTunnelKeyHandler(func(peer types.NodeID, key []byte) {
		if peer == serverID {
			clientKeys <- key
		}
	})

	if err := clientTr.Dial(serverTr.Addr()); err != nil {
		t.Fatalf("dial: %v", err)
	}

	var serverKey, clientKey []byte
	select {
	case serverKey = <-serverKeys:
	case <-time.After(2 * time.Second):
		t.Fatal("server never derived a tunnel key")
	}
	select {
	case clientKey = <-clientKeys:
	case <-time.After(2 * time.Second):
		t.Fatal("client never derived a tunnel key")
	}

	if string(serverKey) != string(clientKey) {
		t.Fatal("dialer and acceptor derived different tunnel keys")
	}
}

func TestTransport_DispatchQuarantinesPeerOnRejectedEnvelope(t *testing.T) {
	serverTr, _, _ := newTestNode(t)
	clientTr, clientID, _ := newTestNode(t)

	if err := clientTr.Dial(serverTr.Addr()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if got := serverTr.reg.Get(clientID).State; got != registry.StateActive {
		t.Fatalf("expected client to be active on the server's registry, got %s", got)
	}

	serverTr.dispatch(clientID, []byte("not a valid envelope"))

	if got := serverTr.reg.Get(clientID).State; got != registry.StateQuarantined {
		t.Fatalf("expected dispatch to quarantine the peer on a rejected envelope, got %s", got)
	}
}

func TestTransport_SendToUnknownPeerFails(t *testing.T) {
	tr, _, _ := newTestNode(t)
	unknown := types.NodeID{0xAA}
	e := wire.NewEnvelope(wire.TypeDataPacket, types.NodeID{}, unknown, []byte("x"))
	if err := tr.Send(unknown, e); err == nil {
		t.Error("expected an error sending to an unknown peer")
	}
}

func TestTransport_DialUnreachableAddrFails(t *testing.T) {
	tr, _, _ := newTestNode(t)
	if err := tr.Dial("127.0.0.1:1"); err == nil {
		t.Error("expected a dial failure against a closed port")
	}
}
