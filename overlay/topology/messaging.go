package topology

import (
	"errors"

	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/peer"
	"github.com/syncwaretechnologies/ataraxia/overlay/reqreply"
	"github.com/syncwaretechnologies/ataraxia/overlay/wire"
)

// ErrNoRoute is returned by Messaging.Send when no path to target is
// currently known.
var ErrNoRoute = errors.New("topology: no route to target")

// ErrLoop and ErrNoRouteRemote are the two DataReject causes a remote
// hop can report back to the originator (spec.md §6's reject codes,
// §7's rejection vocabulary).
var (
	ErrLoop          = errors.New("topology: loop detected")
	ErrNoRouteRemote = errors.New("topology: remote hop has no route")
)

func errForRejectCode(code wire.RejectCode) error {
	if code == wire.RejectLoop {
		return ErrLoop
	}
	return ErrNoRouteRemote
}

// MessageEvent is delivered to Messaging's OnMessage subscribers for
// every Data frame addressed to self, regardless of origin.
type MessageEvent struct {
	Source  core.NodeId
	Type    string
	Payload []byte
}

// Messaging implements source-routed application delivery (spec.md
// §4.6): a Send records the full forward path as it is built hop by
// hop, relies on reqreply.Helper for the pending-ack promise, and
// every intermediate hop either forwards Data one step further or
// answers with DataAck/DataReject routed back along the reversed
// path.
type Messaging struct {
	self core.NodeId
	rr   *reqreply.Helper

	nextHop func(core.NodeId) (p *peer.Peer, latencyMs int, ok bool)

	onMsg core.Signal[MessageEvent]
}

// NewMessaging builds a Messaging layer. nextHop resolves a target id
// to the Peer the next hop towards it should be sent over, exactly the
// signature Routing.NextHop exposes.
func NewMessaging(self core.NodeId, rr *reqreply.Helper, nextHop func(core.NodeId) (*peer.Peer, int, bool)) *Messaging {
	return &Messaging{self: self, rr: rr, nextHop: nextHop}
}

// OnMessage fires for every Data frame delivered to self.
func (m *Messaging) OnMessage(fn func(MessageEvent)) core.Subscription {
	return m.onMsg.Subscribe(fn)
}

// Send originates a new message to target, blocking the caller's
// resolve/reject callbacks until the destination acks, a hop rejects,
// or reqreply's timeout elapses (spec.md §4.8). It returns the
// allocated request id so callers can correlate log lines. If no route
// is known, it returns ErrNoRoute without calling reject; if the first
// send fails, that error is both passed to reject and returned. Later
// failures are delivered via reject only.
func (m *Messaging) Send(target core.NodeId, msgType string, payload []byte, resolve func(), reject func(error)) (uint32, error) {
	nextP, _, ok := m.nextHop(target)
	if !ok {
		return 0, ErrNoRoute
	}

	id := m.rr.Prepare(func(interface{}) { resolve() }, reject)
	data := wire.DataMsg{
		Source:    m.self.Bytes(),
		Target:    target.Bytes(),
		RequestId: id,
		Type:      msgType,
		Path:      [][]byte{m.self.Bytes()},
		Payload:   payload,
	}
	if err := nextP.Send(wire.Data, data); err != nil {
		m.rr.RegisterError(id, err)
		return id, err
	}
	return id, nil
}

// HandleFrame dispatches one Data/DataAck/DataReject frame.
func (m *Messaging) HandleFrame(f wire.Frame) {
	switch f.Type {
	case wire.Data:
		m.handleData(f)
	case wire.DataAck:
		m.handleAck(f)
	case wire.DataReject:
		m.handleReject(f)
	}
}

func (m *Messaging) handleData(f wire.Frame) {
	var msg wire.DataMsg
	if err := wire.Decode(f, &msg); err != nil {
		return
	}
	target := core.NewNodeId(msg.Target)
	source := core.NewNodeId(msg.Source)

	// Loop detection: if self already appears in the recorded path,
	// this frame has already passed through here once before
	// (spec.md §4.6, §8).
	for _, hop := range msg.Path {
		if core.NewNodeId(hop).Equal(m.self) {
			m.rejectBack(msg, wire.RejectLoop)
			return
		}
	}

	if target.Equal(m.self) {
		m.onMsg.Emit(MessageEvent{Source: source, Type: msg.Type, Payload: msg.Payload})
		m.ackBack(msg)
		return
	}

	nextP, _, ok := m.nextHop(target)
	if !ok {
		m.rejectBack(msg, wire.RejectNoRoute)
		return
	}
	forwarded := msg
	forwarded.Path = append(append([][]byte(nil), msg.Path...), m.self.Bytes())
	if err := nextP.Send(wire.Data, forwarded); err != nil {
		m.rejectBack(msg, wire.RejectNoRoute)
	}
}

// ackBack and rejectBack walk the recorded path back one hop at a
// time: each hop removes the last id on the path (the hop it received
// the Data from) and forwards the frame to that hop, until it reaches
// the originator,
// who resolves/rejects the pending Send via reqreply (spec.md §4.6).
func (m *Messaging) ackBack(msg wire.DataMsg) {
	ack := wire.DataAckMsg{RequestId: msg.RequestId, Target: msg.Source, Path: msg.Path}
	m.routeBackAck(ack)
}

func (m *Messaging) rejectBack(msg wire.DataMsg, code wire.RejectCode) {
	rej := wire.DataRejectMsg{RequestId: msg.RequestId, Target: msg.Source, Path: msg.Path, Code: code}
	m.routeBackReject(rej)
}

func (m *Messaging) routeBackAck(ack wire.DataAckMsg) {
	if core.NewNodeId(ack.Target).Equal(m.self) {
		m.rr.RegisterReply(ack.RequestId, nil)
		return
	}
	path := ack.Path
	if len(path) == 0 {
		return
	}
	prevHop := core.NewNodeId(path[len(path)-1])
	p, ok := m.nextHop2(prevHop)
	if !ok {
		return
	}
	ack.Path = path[:len(path)-1]
	_ = p.Send(wire.DataAck, ack)
}

func (m *Messaging) routeBackReject(rej wire.DataRejectMsg) {
	if core.NewNodeId(rej.Target).Equal(m.self) {
		m.rr.RegisterError(rej.RequestId, errForRejectCode(rej.Code))
		return
	}
	path := rej.Path
	if len(path) == 0 {
		return
	}
	prevHop := core.NewNodeId(path[len(path)-1])
	p, ok := m.nextHop2(prevHop)
	if !ok {
		return
	}
	rej.Path = path[:len(path)-1]
	_ = p.Send(wire.DataReject, rej)
}

// nextHop2 resolves the directly-connected Peer for a one-hop-away
// node id; the reverse path only ever names direct neighbors of the
// current hop, so this only ever needs the routing table's first-hop
// entries, never a multi-hop lookup. Reusing Routing.NextHop works
// because a direct neighbor's shortest path to itself is always the
// directly connected Peer.
func (m *Messaging) nextHop2(id core.NodeId) (*peer.Peer, bool) {
	p, _, ok := m.nextHop(id)
	return p, ok
}

func (m *Messaging) handleAck(f wire.Frame) {
	var msg wire.DataAckMsg
	if err := wire.Decode(f, &msg); err != nil {
		return
	}
	m.routeBackAck(msg)
}

func (m *Messaging) handleReject(f wire.Frame) {
	var msg wire.DataRejectMsg
	if err := wire.Decode(f, &msg); err != nil {
		return
	}
	m.routeBackReject(msg)
}
