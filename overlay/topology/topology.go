package topology

import (
	"sync"
	"time"

	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/log"
	"github.com/syncwaretechnologies/ataraxia/overlay/peer"
	"github.com/syncwaretechnologies/ataraxia/overlay/reqreply"
	"github.com/syncwaretechnologies/ataraxia/overlay/wire"
)

// PeerDetails tracks everything Topology needs to unwind when a
// tracked Peer disconnects: its event subscriptions and the set of
// node ids it currently advertises routing for, so RemoveRouting can be
// applied across all of them (spec.md §4.7).
type PeerDetails struct {
	Peer       *peer.Peer
	disconnSub core.Subscription
	frameSub   core.Subscription
	advertised map[core.NodeId]struct{}
}

// Topology is the orchestrator tying a live set of Peers to the
// routing graph: it tracks Peer lifecycle (spec.md §4.7), rebuilds
// self's adjacency, reconciles gossip (NodeSummary/NodeRequest/
// NodeDetails) and drives Routing recomputation and Messaging
// delivery.
type Topology struct {
	self     core.NodeId
	endpoint bool
	log      log.Logger

	routing   *Routing
	messaging *Messaging
	rr        *reqreply.Helper

	coalesceWait time.Duration

	mu        sync.Mutex
	peers     map[core.NodeId]*PeerDetails
	nodes     map[core.NodeId]*TopologyNode
	order     []core.NodeId
	broadcast *time.Timer
}

// New builds a Topology for self. endpoint nodes never send
// NodeSummary broadcasts (spec.md §4.5 "Endpoint nodes never advertise
// routing") but otherwise fully participate: they still process
// inbound gossip and compute their own outbound routes.
func New(cfg *core.Config) *Topology {
	self := cfg.NetworkId
	t := &Topology{
		self:         self,
		endpoint:     cfg.Endpoint,
		log:          cfg.Logger,
		routing:      NewRouting(self),
		rr:           reqreply.New(cfg.RequestReplyTimeout),
		coalesceWait: cfg.BroadcastCoalesceWait,
		peers:        make(map[core.NodeId]*PeerDetails),
		nodes:        make(map[core.NodeId]*TopologyNode),
	}
	t.messaging = NewMessaging(self, t.rr, t.routing.NextHop)
	t.nodeLocked(self)
	return t
}

// Routing exposes the shortest-path layer, e.g. for OnAvailable/
// OnUnavailable subscriptions.
func (t *Topology) Routing() *Routing { return t.routing }

// Messaging exposes the application-delivery layer.
func (t *Topology) Messaging() *Messaging { return t.messaging }

// nodeLocked returns the TopologyNode for id, creating it (and
// recording insertion order) if unseen. Caller holds mu.
func (t *Topology) nodeLocked(id core.NodeId) *TopologyNode {
	n, ok := t.nodes[id]
	if !ok {
		n = NewTopologyNode(id)
		t.nodes[id] = n
		t.order = append(t.order, id)
	}
	return n
}

func (t *Topology) peerForLocked(id core.NodeId) (*peer.Peer, bool) {
	pd, ok := t.peers[id]
	if !ok {
		return nil, false
	}
	return pd.Peer, true
}

// Track wires a Peer into the topology: once it reaches Active,
// addPeer registers it and its own OnDisconnect/OnFrame subscriptions
// drive removePeer and gossip dispatch (spec.md §4.7). A peer that
// never reaches Active (negotiation failure) needs no cleanup here,
// since it was never added.
func (t *Topology) Track(p *peer.Peer) {
	p.OnActive(func(p *peer.Peer) {
		t.addPeer(p)
	})
}

func (t *Topology) addPeer(p *peer.Peer) {
	remote := p.RemoteId()

	t.mu.Lock()
	if _, exists := t.peers[remote]; exists {
		// A second connection to an already-tracked peer; the
		// existing (older) connection wins (spec.md §4.7 leaves
		// simultaneous-connection resolution to the application, this
		// engine keeps the first).
		t.mu.Unlock()
		p.Disconnect(core.Manual)
		return
	}

	pd := &PeerDetails{Peer: p, advertised: make(map[core.NodeId]struct{})}
	pd.disconnSub = p.OnDisconnect(func(ev peer.DisconnectEvent) { t.removePeer(ev.Peer) })
	pd.frameSub = p.OnFrame(func(ev peer.FrameEvent) { t.dispatchFrame(ev.Peer, ev.Frame) })
	t.peers[remote] = pd

	node := t.nodeLocked(remote)
	node.SetDirect(true)

	t.rebuildSelfLocked()
	t.markDirtyAndScheduleLocked()
	t.mu.Unlock()

	t.log.Infof("topology: peer %s active", remote)
}

func (t *Topology) removePeer(p *peer.Peer) {
	remote := p.RemoteId()

	t.mu.Lock()
	pd, ok := t.peers[remote]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.peers, remote)
	for id := range pd.advertised {
		if n, ok := t.nodes[id]; ok {
			n.RemoveRouting(p)
		}
	}
	if n, ok := t.nodes[remote]; ok {
		n.SetDirect(false)
	}
	t.rebuildSelfLocked()
	t.markDirtyAndScheduleLocked()
	t.mu.Unlock()

	pd.disconnSub.Unsubscribe()
	pd.frameSub.Unsubscribe()

	t.log.Infof("topology: peer %s disconnected", remote)
}

// rebuildSelfLocked recomputes self's outgoing edge set from every
// currently Active, directly-connected peer's latency (spec.md §4.4).
// A peer with no recorded latency sample yet contributes weight 0;
// once a ping round trip lands, the next rebuild picks up the real
// measured latency.
func (t *Topology) rebuildSelfLocked() {
	edges := make(map[core.NodeId]int, len(t.peers))
	for id, pd := range t.peers {
		lat, err := pd.Peer.Latency()
		if err != nil {
			lat = 0
		}
		edges[id] = lat
	}
	self := t.nodeLocked(t.self)
	self.RebuildSelf(edges)
}

func (t *Topology) markDirtyAndScheduleLocked() {
	t.routing.MarkDirty()
	t.refreshLocked()
	t.scheduleBroadcastLocked()
}

func (t *Topology) refreshLocked() {
	nodes := make([]*TopologyNode, len(t.order))
	for i, id := range t.order {
		nodes[i] = t.nodes[id]
	}
	t.routing.Refresh(nodes, func(id core.NodeId) (*peer.Peer, bool) {
		return t.peerForLocked(id)
	})
}

// scheduleBroadcastLocked coalesces repeated graph changes into a
// single NodeSummary fan-out after coalesceWait (spec.md §4.7,
// "broadcast coalescing: 100ms"). Endpoint nodes never broadcast.
func (t *Topology) scheduleBroadcastLocked() {
	if t.endpoint {
		return
	}
	if t.broadcast != nil {
		return
	}
	t.broadcast = time.AfterFunc(t.coalesceWait, func() {
		t.mu.Lock()
		t.broadcast = nil
		summary := t.buildSummaryLocked()
		peers := make([]*peer.Peer, 0, len(t.peers))
		for _, pd := range t.peers {
			peers = append(peers, pd.Peer)
		}
		t.mu.Unlock()

		for _, p := range peers {
			_ = p.Send(wire.NodeSummary, summary)
		}
	})
}

func (t *Topology) buildSummaryLocked() wire.NodeSummaryMsg {
	self := t.nodes[t.self]
	msg := wire.NodeSummaryMsg{OwnVersion: self.Version()}
	for _, id := range t.order {
		n := t.nodes[id]
		if !n.HasOutgoing() {
			continue
		}
		msg.Nodes = append(msg.Nodes, wire.NodeVersion{Id: id.Bytes(), Version: n.Version()})
	}
	return msg
}

// dispatchFrame routes one Active-state frame from p to the gossip
// handlers or Messaging, per its type.
func (t *Topology) dispatchFrame(p *peer.Peer, f wire.Frame) {
	switch f.Type {
	case wire.NodeSummary:
		t.handleNodeSummary(p, f)
	case wire.NodeRequest:
		t.handleNodeRequest(p, f)
	case wire.NodeDetails:
		t.handleNodeDetails(p, f)
	case wire.Data, wire.DataAck, wire.DataReject:
		t.messaging.HandleFrame(f)
	}
}
