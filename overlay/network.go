package overlay

import (
	"errors"

	"github.com/syncwaretechnologies/ataraxia/overlay/auth"
	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/peer"
	"github.com/syncwaretechnologies/ataraxia/overlay/reqreply"
	"github.com/syncwaretechnologies/ataraxia/overlay/topology"
)

// ErrNoRoute, ErrLoop, ErrNoRouteRemote and ErrTimedOut are Network's
// public rejection vocabulary for Send, mirroring spec.md §6's
// `no_route`, `loop`, and `timeout` completion reasons. `peer_rejected`
// names an application-level negative acknowledgement this engine's
// single-ack/reject Messaging layer has no frame for — see DESIGN.md's
// Open Question notes; callers building a request/response protocol on
// top of Send should encode rejection in their own payload instead.
var (
	ErrNoRoute       = topology.ErrNoRoute
	ErrLoop          = topology.ErrLoop
	ErrNoRouteRemote = topology.ErrNoRouteRemote
	ErrTimedOut      = reqreply.ErrTimedOut
)

// Message is delivered to Network's OnMessage subscribers.
type Message struct {
	Source  NodeId
	Type    string
	Payload []byte
}

// Network is the application-facing facade spec.md §6 describes: it
// owns the Topology orchestrator and every Peer created against this
// node, exposing availability events and source-routed send/receive
// without requiring callers to touch peer/topology internals directly.
type Network struct {
	cfg      *Config
	registry *auth.Registry
	topo     *topology.Topology

	onAvailable   core.Signal[NodeId]
	onUnavailable core.Signal[NodeId]
	onMessage     core.Signal[Message]
}

// NewNetwork builds a Network for cfg.NetworkId, authenticating new
// links with registry.
func NewNetwork(cfg *Config, registry *auth.Registry) *Network {
	n := &Network{
		cfg:      cfg,
		registry: registry,
		topo:     topology.New(cfg),
	}
	n.topo.Routing().OnAvailable(func(node *topology.TopologyNode) {
		n.onAvailable.Emit(node.Id())
	})
	n.topo.Routing().OnUnavailable(func(node *topology.TopologyNode) {
		n.onUnavailable.Emit(node.Id())
	})
	n.topo.Messaging().OnMessage(func(ev topology.MessageEvent) {
		n.onMessage.Emit(Message{Source: ev.Source, Type: ev.Type, Payload: ev.Payload})
	})
	return n
}

// OnNodeAvailable fires once per node becoming reachable via the
// routing table, including indirectly via multiple hops.
func (n *Network) OnNodeAvailable(fn func(NodeId)) Subscription {
	return n.onAvailable.Subscribe(fn)
}

// OnNodeUnavailable fires once per node becoming unreachable.
func (n *Network) OnNodeUnavailable(fn func(NodeId)) Subscription {
	return n.onUnavailable.Subscribe(fn)
}

// OnMessage fires for every application Data frame addressed to self.
func (n *Network) OnMessage(fn func(Message)) Subscription {
	return n.onMessage.Subscribe(fn)
}

// AddPeer brings up a Peer over an already-established Transport and
// tracks it in the topology once it reaches Active. role determines
// which side of the negotiation handshake it plays (spec.md §4.1).
func (n *Network) AddPeer(role peer.Role, trans Transport) *peer.Peer {
	p := peer.New(role, n.cfg, trans, n.registry)
	n.topo.Track(p)
	return p
}

// Send delivers payload of the given application type to target,
// routed hop by hop over whatever path the routing table currently
// prefers. resolve is called once the destination acknowledges
// receipt. Send returns ErrNoRoute, without calling reject, when no
// route to target is known locally; once the message is on its way,
// reject is called with ErrLoop, ErrNoRouteRemote or ErrTimedOut if
// delivery cannot complete (spec.md §6, §4.6).
func (n *Network) Send(target NodeId, msgType string, payload []byte, resolve func(), reject func(error)) error {
	if target.IsZero() {
		return errors.New("overlay: cannot send to the zero NodeId")
	}
	_, err := n.topo.Messaging().Send(target, msgType, payload, resolve, reject)
	return err
}
