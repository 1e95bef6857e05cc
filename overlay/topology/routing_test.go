package topology

import (
	"testing"

	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/peer"
)

// buildNode is a small helper for constructing a TopologyNode with a
// fixed, already-accepted adjacency, bypassing UpdateRouting's
// version/provenance bookkeeping since these tests only exercise
// Routing.Refresh.
func buildNode(t *testing.T, nid core.NodeId, edges map[core.NodeId]int) *TopologyNode {
	t.Helper()
	n := NewTopologyNode(nid)
	n.RebuildSelf(edges)
	return n
}

func TestRouting_DirectNeighborIsOneHop(t *testing.T) {
	self := id("s")
	a := id("a")

	r := NewRouting(self)
	nodes := []*TopologyNode{
		buildNode(t, self, map[core.NodeId]int{a: 7}),
		buildNode(t, a, nil),
	}
	peerA := new(peer.Peer)
	peerFor := func(target core.NodeId) (*peer.Peer, bool) {
		if target.Equal(a) {
			return peerA, true
		}
		return nil, false
	}

	r.Refresh(nodes, peerFor)

	p, lat, ok := r.NextHop(a)
	if !ok {
		t.Fatalf("expected a to be reachable")
	}
	if p != peerA {
		t.Fatalf("expected next hop to be peerA")
	}
	if lat != 7 {
		t.Fatalf("expected path latency 7, got %d", lat)
	}
}

func TestRouting_MultiHopPrefersShortestPath(t *testing.T) {
	self, a, b, c := id("s"), id("a"), id("b"), id("c")

	r := NewRouting(self)
	nodes := []*TopologyNode{
		buildNode(t, self, map[core.NodeId]int{a: 1, b: 1}),
		buildNode(t, a, map[core.NodeId]int{c: 10}),
		buildNode(t, b, map[core.NodeId]int{c: 1}),
		buildNode(t, c, nil),
	}
	peerA, peerB := new(peer.Peer), new(peer.Peer)
	peerFor := func(target core.NodeId) (*peer.Peer, bool) {
		switch {
		case target.Equal(a):
			return peerA, true
		case target.Equal(b):
			return peerB, true
		}
		return nil, false
	}

	r.Refresh(nodes, peerFor)

	p, lat, ok := r.NextHop(c)
	if !ok {
		t.Fatalf("expected c to be reachable")
	}
	if p != peerB {
		t.Fatalf("expected the shorter s->b->c path (via peerB), got a different next hop")
	}
	if lat != 2 {
		t.Fatalf("expected path latency 2 (1+1), got %d", lat)
	}
}

func TestRouting_TieBreaksOnLexicographicFirstHop(t *testing.T) {
	self := id("s")
	// "aa" < "bb" lexicographically; both paths have equal total cost.
	fhLo, fhHi := id("aa"), id("bb")
	target := id("target")

	r := NewRouting(self)
	nodes := []*TopologyNode{
		buildNode(t, self, map[core.NodeId]int{fhLo: 1, fhHi: 1}),
		buildNode(t, fhLo, map[core.NodeId]int{target: 1}),
		buildNode(t, fhHi, map[core.NodeId]int{target: 1}),
		buildNode(t, target, nil),
	}
	peerLo, peerHi := new(peer.Peer), new(peer.Peer)
	peerFor := func(t2 core.NodeId) (*peer.Peer, bool) {
		switch {
		case t2.Equal(fhLo):
			return peerLo, true
		case t2.Equal(fhHi):
			return peerHi, true
		}
		return nil, false
	}

	r.Refresh(nodes, peerFor)

	p, _, ok := r.NextHop(target)
	if !ok {
		t.Fatalf("expected target to be reachable")
	}
	if p != peerLo {
		t.Fatalf("expected the lexicographically-lower first hop (peerLo) to win the tie")
	}
}

func TestRouting_UnreachableNodeReportsNotOk(t *testing.T) {
	self, isolated := id("s"), id("isolated")
	r := NewRouting(self)
	nodes := []*TopologyNode{
		buildNode(t, self, nil),
		buildNode(t, isolated, nil),
	}
	r.Refresh(nodes, func(core.NodeId) (*peer.Peer, bool) { return nil, false })

	if _, _, ok := r.NextHop(isolated); ok {
		t.Fatalf("expected an isolated node to be unreachable")
	}
}

func TestRouting_RefreshIsNoopUnlessDirty(t *testing.T) {
	self, a := id("s"), id("a")
	r := NewRouting(self)
	nodes := []*TopologyNode{
		buildNode(t, self, map[core.NodeId]int{a: 1}),
		buildNode(t, a, nil),
	}
	peerA := new(peer.Peer)
	calls := 0
	peerFor := func(core.NodeId) (*peer.Peer, bool) { calls++; return peerA, true }

	r.Refresh(nodes, peerFor)
	firstCalls := calls
	if firstCalls == 0 {
		t.Fatalf("expected the first (dirty) Refresh to call peerFor at least once")
	}

	r.Refresh(nodes, peerFor)
	if calls != firstCalls {
		t.Fatalf("expected a non-dirty Refresh to be a no-op, calls grew from %d to %d", firstCalls, calls)
	}
}

func TestRouting_OnAvailableAndOnUnavailableFireOnReachabilityChange(t *testing.T) {
	self, a := id("s"), id("a")
	r := NewRouting(self)
	peerA := new(peer.Peer)

	var available, unavailable []core.NodeId
	r.OnAvailable(func(n *TopologyNode) { available = append(available, n.Id()) })
	r.OnUnavailable(func(n *TopologyNode) { unavailable = append(unavailable, n.Id()) })

	nodes := []*TopologyNode{
		buildNode(t, self, map[core.NodeId]int{a: 1}),
		buildNode(t, a, nil),
	}
	r.Refresh(nodes, func(core.NodeId) (*peer.Peer, bool) { return peerA, true })
	if len(available) != 1 || !available[0].Equal(a) {
		t.Fatalf("expected a to fire OnAvailable once, got %v", available)
	}

	// a becomes unreachable: self no longer has an edge to it.
	nodes = []*TopologyNode{
		buildNode(t, self, nil),
		buildNode(t, a, nil),
	}
	r.MarkDirty()
	r.Refresh(nodes, func(core.NodeId) (*peer.Peer, bool) { return peerA, true })
	if len(unavailable) != 1 || !unavailable[0].Equal(a) {
		t.Fatalf("expected a to fire OnUnavailable once it became unreachable, got %v", unavailable)
	}
}
