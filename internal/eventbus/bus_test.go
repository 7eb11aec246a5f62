package eventbus

import (
	"testing"
	"time"

	"github.com/Klingon-tech/networkneuron/pkg/types"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe(PeerConnected)
	defer cancel()

	var id types.NodeID
	id[0] = 0xAB
	b.Publish(Event{Kind: PeerConnected, NodeID: id, At: time.Unix(0, 0)})

	select {
	case e := <-ch:
		if e.Kind != PeerConnected || e.NodeID != id {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_DifferentKindsIndependent(t *testing.T) {
	b := New()
	connCh, cancel1 := b.Subscribe(PeerConnected)
	defer cancel1()
	dropCh, cancel2 := b.Subscribe(PeerDropped)
	defer cancel2()

	b.Publish(Event{Kind: PeerConnected})

	select {
	case <-connCh:
	case <-time.After(time.Second):
		t.Fatal("expected PeerConnected delivery")
	}

	select {
	case <-dropCh:
		t.Fatal("PeerDropped subscriber should not receive a PeerConnected event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_FullBufferDropsWithoutBlocking(t *testing.T) {
	b := New()
	_, cancel := b.Subscribe(BandwidthReport)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish(Event{Kind: BandwidthReport, Bytes: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe(RouteCreated)
	cancel()

	b.Publish(Event{Kind: RouteCreated})

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
}

func TestBus_CloseClosesAllSubscribers(t *testing.T) {
	b := New()
	ch, _ := b.Subscribe(SessionOpened)
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close")
	}

	// Publish after Close must not panic.
	b.Publish(Event{Kind: SessionOpened})
}
