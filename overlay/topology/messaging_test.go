package topology

import (
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/syncwaretechnologies/ataraxia/overlay/auth"
	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/overlaytest"
	"github.com/syncwaretechnologies/ataraxia/overlay/peer"
	"github.com/syncwaretechnologies/ataraxia/overlay/reqreply"
	"github.com/syncwaretechnologies/ataraxia/overlay/wire"
)

// newIdlePeer builds a real *peer.Peer wired to one end of an
// overlaytest.Pipe, used purely as a sendable/observable endpoint:
// Peer.Send forwards to its transport regardless of negotiation state,
// and a Client-role peer never speaks first, so it stays silent on the
// wire until the test feeds it something. The opposite PipeTransport
// end is returned for the test to observe what Messaging sends. The
// caller is responsible for calling Disconnect before any goleak
// assertion, since Peer owns a background goroutine.
func newIdlePeer(t *testing.T) (*peer.Peer, *overlaytest.PipeTransport) {
	t.Helper()
	a, b := overlaytest.Pipe()
	cfg := core.DefaultConfig(core.NewNodeId([]byte("irrelevant-self")))
	p := peer.New(peer.Client, cfg, a, auth.NewRegistry())
	return p, b
}

func TestMessaging_SendTransmitsDataFrame(t *testing.T) {
	defer goleak.VerifyNone(t)

	self := id("self")
	target := id("target")
	nextP, observeFromNextHop := newIdlePeer(t)
	defer nextP.Disconnect(core.Manual)

	rr := reqreply.New(time.Second)
	m := NewMessaging(self, rr, func(to core.NodeId) (*peer.Peer, int, bool) {
		if to.Equal(target) {
			return nextP, 3, true
		}
		return nil, 0, false
	})

	_, err := m.Send(target, "greet", []byte("hi"), func() {}, func(error) {})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case f := <-observeFromNextHop.Frames():
		if f.Type != wire.Data {
			t.Fatalf("expected a Data frame, got %v", f.Type)
		}
		var msg wire.DataMsg
		if err := wire.Decode(f, &msg); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if core.NewNodeId(msg.Target) != target {
			t.Fatalf("expected target %v, got %v", target, core.NewNodeId(msg.Target))
		}
		if string(msg.Payload) != "hi" {
			t.Fatalf("expected payload 'hi', got %q", msg.Payload)
		}
		if len(msg.Path) != 1 || core.NewNodeId(msg.Path[0]) != self {
			t.Fatalf("expected path [self], got %v", msg.Path)
		}
	case <-time.After(time.Second):
		t.Fatalf("next hop never observed a Data frame")
	}
}

func TestMessaging_SendWithNoRouteFailsImmediately(t *testing.T) {
	rr := reqreply.New(time.Second)
	m := NewMessaging(id("self"), rr, func(core.NodeId) (*peer.Peer, int, bool) {
		return nil, 0, false
	})

	_, err := m.Send(id("target"), "greet", nil, func() {}, func(error) {})
	if err != ErrNoRoute {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestMessaging_HandleFrameDeliversToSelfAndAcksBack(t *testing.T) {
	defer goleak.VerifyNone(t)

	self := id("self")
	source := id("source")
	backPeer, observeBack := newIdlePeer(t)
	defer backPeer.Disconnect(core.Manual)

	rr := reqreply.New(time.Second)
	m := NewMessaging(self, rr, func(to core.NodeId) (*peer.Peer, int, bool) {
		if to.Equal(source) {
			return backPeer, 1, true
		}
		return nil, 0, false
	})

	var delivered MessageEvent
	m.OnMessage(func(ev MessageEvent) { delivered = ev })

	f, err := wire.Encode(wire.Data, wire.DataMsg{
		Source:    source.Bytes(),
		Target:    self.Bytes(),
		RequestId: 7,
		Type:      "greet",
		Path:      [][]byte{source.Bytes()},
		Payload:   []byte("hi"),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m.HandleFrame(f)

	if delivered.Type != "greet" || string(delivered.Payload) != "hi" || delivered.Source != source {
		t.Fatalf("unexpected delivered event: %+v", delivered)
	}

	select {
	case ackFrame := <-observeBack.Frames():
		if ackFrame.Type != wire.DataAck {
			t.Fatalf("expected a DataAck frame, got %v", ackFrame.Type)
		}
		var ack wire.DataAckMsg
		if err := wire.Decode(ackFrame, &ack); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if ack.RequestId != 7 {
			t.Fatalf("expected RequestId 7, got %d", ack.RequestId)
		}
	case <-time.After(time.Second):
		t.Fatalf("originating hop never observed a DataAck")
	}
}

func TestMessaging_HandleFrameForwardsWhenNotTarget(t *testing.T) {
	defer goleak.VerifyNone(t)

	self := id("mid")
	source := id("source")
	target := id("target")
	forwardPeer, observeForward := newIdlePeer(t)
	defer forwardPeer.Disconnect(core.Manual)

	rr := reqreply.New(time.Second)
	m := NewMessaging(self, rr, func(to core.NodeId) (*peer.Peer, int, bool) {
		if to.Equal(target) {
			return forwardPeer, 1, true
		}
		return nil, 0, false
	})

	f, err := wire.Encode(wire.Data, wire.DataMsg{
		Source:    source.Bytes(),
		Target:    target.Bytes(),
		RequestId: 1,
		Type:      "greet",
		Path:      [][]byte{source.Bytes()},
		Payload:   []byte("hi"),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m.HandleFrame(f)

	select {
	case fwd := <-observeForward.Frames():
		var msg wire.DataMsg
		if err := wire.Decode(fwd, &msg); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if len(msg.Path) != 2 || core.NewNodeId(msg.Path[1]) != self {
			t.Fatalf("expected the forwarding hop to append itself to the path, got %v", msg.Path)
		}
	case <-time.After(time.Second):
		t.Fatalf("next hop never observed the forwarded Data frame")
	}
}

func TestMessaging_HandleFrameRejectsNoRouteWhenForwardingFails(t *testing.T) {
	self := id("mid")

	rr := reqreply.New(time.Second)
	m := NewMessaging(self, rr, func(core.NodeId) (*peer.Peer, int, bool) {
		return nil, 0, false
	})

	rejected := make(chan error, 1)
	id7 := rr.Prepare(func(interface{}) { t.Fatalf("resolve should not fire") }, func(err error) { rejected <- err })

	f, err := wire.Encode(wire.Data, wire.DataMsg{
		Source:    self.Bytes(), // the "no route" reject routes straight back to self
		Target:    id("unreachable").Bytes(),
		RequestId: id7,
		Type:      "greet",
		// self is kept out of the path so loop detection does not fire
		// before the next-hop lookup.
		Path: [][]byte{id("upstream").Bytes()},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m.HandleFrame(f)

	select {
	case err := <-rejected:
		if err != ErrNoRouteRemote {
			t.Fatalf("expected ErrNoRouteRemote, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("reject never fired")
	}
}

func TestMessaging_HandleFrameDetectsLoop(t *testing.T) {
	self := id("self")

	rr := reqreply.New(time.Second)
	m := NewMessaging(self, rr, func(core.NodeId) (*peer.Peer, int, bool) {
		return nil, 0, false
	})

	rejected := make(chan error, 1)
	id9 := rr.Prepare(func(interface{}) { t.Fatalf("resolve should not fire") }, func(err error) { rejected <- err })

	f, err := wire.Encode(wire.Data, wire.DataMsg{
		Source:    self.Bytes(),
		Target:    id("somewhere").Bytes(),
		RequestId: id9,
		Type:      "greet",
		// self already appears in the path: this frame looped back.
		Path: [][]byte{self.Bytes(), id("a").Bytes()},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m.HandleFrame(f)

	select {
	case err := <-rejected:
		if err != ErrLoop {
			t.Fatalf("expected ErrLoop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("loop reject never fired")
	}
}
