// Package topology implements the overlay's topology layer: per-node
// routing records (TopologyNode), shortest-path computation (Routing),
// source-routed application delivery (Messaging) and the gossip
// orchestrator that ties them to a live set of Peers (spec.md §4.4-§4.7).
package topology

import (
	"sync"

	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/peer"
)

// TopologyNode is the per-known-node routing record (spec.md §3, §4.4):
// one exists for every node the mesh has learned about, including
// self. Its outgoing set is the adjacency Dijkstra walks; its sources
// map tracks provenance (which locally-connected peer last told us
// about this node, at what version) so a peer disconnecting or
// omitting this node from a later NodeSummary can have its
// contribution removed without discarding data reported by other
// peers at a newer version.
type TopologyNode struct {
	mu       sync.Mutex
	id       core.NodeId
	version  uint32
	direct   bool
	outgoing map[core.NodeId]int
	sources  map[*peer.Peer]uint32
}

// NewTopologyNode creates a node record with version 0 and no edges.
func NewTopologyNode(id core.NodeId) *TopologyNode {
	return &TopologyNode{
		id:       id,
		outgoing: make(map[core.NodeId]int),
		sources:  make(map[*peer.Peer]uint32),
	}
}

func (n *TopologyNode) Id() core.NodeId { return n.id }

func (n *TopologyNode) Version() uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.version
}

func (n *TopologyNode) Direct() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.direct
}

// SetDirect flips the direct flag (spec.md §3: "direct: reachable via
// a currently-connected peer").
func (n *TopologyNode) SetDirect(direct bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.direct = direct
}

// Outgoing returns a snapshot copy of the node's current adjacency.
func (n *TopologyNode) Outgoing() map[core.NodeId]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[core.NodeId]int, len(n.outgoing))
	for k, v := range n.outgoing {
		out[k] = v
	}
	return out
}

// HasOutgoing reports whether the node currently has at least one
// outgoing edge, the condition spec.md §4.7 uses to decide whether a
// node is worth mentioning in a NodeSummary.
func (n *TopologyNode) HasOutgoing() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.outgoing) > 0
}

// UpdateRouting replaces the adjacency last advertised by p with
// neighbors at the given version (spec.md §4.4). The most-recent
// version wins wholesale (this is not a per-peer merge): a report at a
// version older than what is already known updates provenance
// bookkeeping only, so RemoveRouting can still later drop p's
// contribution, but never regresses the accepted adjacency. It
// returns true iff the node's effective outgoing set or any weight
// changed.
func (n *TopologyNode) UpdateRouting(p *peer.Peer, version uint32, neighbors map[core.NodeId]int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sources[p] = version

	if version < n.version {
		return false
	}
	if version == n.version && mapsEqual(n.outgoing, neighbors) {
		return false
	}

	changed := !mapsEqual(n.outgoing, neighbors)
	n.version = version
	n.outgoing = copyMap(neighbors)
	return changed
}

// RemoveRouting drops p's contribution to this node's provenance. It
// does not retroactively recompute the accepted adjacency from a
// second-best source (spec.md leaves this unspecified; the stale
// adjacency stands until fresher NodeDetails arrive, which in a live
// mesh happens within one gossip round). It returns true iff p had a
// recorded contribution.
func (n *TopologyNode) RemoveRouting(p *peer.Peer) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.sources[p]; !ok {
		return false
	}
	delete(n.sources, p)
	return true
}

// RebuildSelf replaces self's outgoing set wholesale from the current
// set of Active peers (spec.md §4.4: "self node's outgoing set is
// rebuilt ... rebuilding mutates version := version + 1 if it
// differs"). It returns true iff the set changed, in which case the
// caller observes the bumped version via Version().
func (n *TopologyNode) RebuildSelf(edges map[core.NodeId]int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if mapsEqual(n.outgoing, edges) {
		return false
	}
	n.outgoing = copyMap(edges)
	n.version++
	return true
}

func copyMap(m map[core.NodeId]int) map[core.NodeId]int {
	out := make(map[core.NodeId]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mapsEqual(a, b map[core.NodeId]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
