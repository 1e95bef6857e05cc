package topology

import (
	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/peer"
	"github.com/syncwaretechnologies/ataraxia/overlay/wire"
)

// handleNodeSummary compares the sender's advertised (id, version)
// pairs against what is locally known. Anything missing or stale is
// requested; anything this peer previously told us about but no
// longer mentions, and that we have no direct link to, has its
// contribution withdrawn (spec.md §4.7).
func (t *Topology) handleNodeSummary(p *peer.Peer, f wire.Frame) {
	var msg wire.NodeSummaryMsg
	if err := wire.Decode(f, &msg); err != nil {
		return
	}

	remote := p.RemoteId()

	t.mu.Lock()
	pd, ok := t.peers[remote]
	if !ok {
		t.mu.Unlock()
		return
	}

	seen := make(map[core.NodeId]struct{}, len(msg.Nodes))
	var want [][]byte
	for _, nv := range msg.Nodes {
		id := core.NewNodeId(nv.Id)
		seen[id] = struct{}{}
		if id.Equal(t.self) {
			continue
		}
		n, exists := t.nodes[id]
		if !exists || n.Version() < nv.Version || !n.HasOutgoing() {
			want = append(want, nv.Id)
		}
	}

	// The sender's own reported version is the only signal we have of
	// a stale record once its outgoing set has dropped to zero, since
	// buildSummaryLocked omits nodes with no outgoing edges from Nodes
	// entirely (spec.md §4.7: "if the peer's own reported ownVersion
	// exceeds the local record of that peer, include it").
	if _, alreadyWanted := seen[remote]; !alreadyWanted {
		if n := t.nodeLocked(remote); n.Version() < msg.OwnVersion {
			want = append(want, remote.Bytes())
		}
	}

	// Nodes pd previously advertised but this summary omits: drop its
	// contribution unless we also have a direct link to that node.
	removed := false
	for id := range pd.advertised {
		if _, stillThere := seen[id]; stillThere {
			continue
		}
		if n, exists := t.nodes[id]; exists {
			if n.Direct() {
				continue
			}
			if n.RemoveRouting(p) {
				delete(pd.advertised, id)
				removed = true
			}
		}
	}
	if removed {
		t.routing.MarkDirty()
		t.refreshLocked()
	}
	t.mu.Unlock()

	if len(want) > 0 {
		_ = p.Send(wire.NodeRequest, wire.NodeRequestMsg{Nodes: want})
	}
}

// handleNodeRequest answers with NodeDetails for every requested id we
// actually know something about (spec.md §4.7).
func (t *Topology) handleNodeRequest(p *peer.Peer, f wire.Frame) {
	var msg wire.NodeRequestMsg
	if err := wire.Decode(f, &msg); err != nil {
		return
	}

	t.mu.Lock()
	var details []wire.NodeDetail
	for _, raw := range msg.Nodes {
		id := core.NewNodeId(raw)
		n, ok := t.nodes[id]
		if !ok || !n.HasOutgoing() {
			continue
		}
		out := n.Outgoing()
		neighbors := make([]wire.Neighbor, 0, len(out))
		for nid, lat := range out {
			neighbors = append(neighbors, wire.Neighbor{Id: nid.Bytes(), Latency: uint32(lat)})
		}
		details = append(details, wire.NodeDetail{Id: id.Bytes(), Version: n.Version(), Neighbors: neighbors})
	}
	t.mu.Unlock()

	if len(details) == 0 {
		return
	}
	_ = p.Send(wire.NodeDetails, wire.NodeDetailsMsg{Nodes: details})
}

// handleNodeDetails applies every reported node's adjacency via
// UpdateRouting, refusing to let gossip overwrite self's own record
// (spec.md §4.4, §4.7), and marks routing dirty if anything changed.
func (t *Topology) handleNodeDetails(p *peer.Peer, f wire.Frame) {
	var msg wire.NodeDetailsMsg
	if err := wire.Decode(f, &msg); err != nil {
		return
	}

	remote := p.RemoteId()

	t.mu.Lock()
	pd, ok := t.peers[remote]
	if !ok {
		t.mu.Unlock()
		return
	}

	changed := false
	for _, detail := range msg.Nodes {
		id := core.NewNodeId(detail.Id)
		if id.Equal(t.self) {
			continue
		}
		neighbors := make(map[core.NodeId]int, len(detail.Neighbors))
		for _, nb := range detail.Neighbors {
			nbId := core.NewNodeId(nb.Id)
			neighbors[nbId] = int(nb.Latency)
			// Every neighbor gets a record, so Routing can report it
			// available as soon as a path to it exists.
			t.nodeLocked(nbId)
		}
		n := t.nodeLocked(id)
		if n.UpdateRouting(p, detail.Version, neighbors) {
			changed = true
		}
		pd.advertised[id] = struct{}{}
	}

	if changed {
		t.routing.MarkDirty()
		t.refreshLocked()
		t.scheduleBroadcastLocked()
	}
	t.mu.Unlock()
}
