package topology

import (
	"testing"

	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/peer"
)

func id(s string) core.NodeId { return core.NewNodeId([]byte(s)) }

func TestTopologyNode_UpdateRoutingNewerVersionWins(t *testing.T) {
	n := NewTopologyNode(id("n1"))
	p := new(peer.Peer)

	changed := n.UpdateRouting(p, 1, map[core.NodeId]int{id("a"): 5})
	if !changed {
		t.Fatalf("first UpdateRouting should report a change")
	}
	if n.Version() != 1 {
		t.Fatalf("expected version 1, got %d", n.Version())
	}

	changed = n.UpdateRouting(p, 2, map[core.NodeId]int{id("a"): 5, id("b"): 3})
	if !changed {
		t.Fatalf("newer version with a different adjacency should report a change")
	}
	if n.Version() != 2 {
		t.Fatalf("expected version 2, got %d", n.Version())
	}
	out := n.Outgoing()
	if len(out) != 2 || out[id("a")] != 5 || out[id("b")] != 3 {
		t.Fatalf("unexpected outgoing set: %v", out)
	}
}

func TestTopologyNode_UpdateRoutingOlderVersionDoesNotRegress(t *testing.T) {
	n := NewTopologyNode(id("n1"))
	p := new(peer.Peer)

	n.UpdateRouting(p, 5, map[core.NodeId]int{id("a"): 1})
	changed := n.UpdateRouting(p, 2, map[core.NodeId]int{id("z"): 99})
	if changed {
		t.Fatalf("an older-version report must not change the accepted adjacency")
	}
	if n.Version() != 5 {
		t.Fatalf("version should remain 5, got %d", n.Version())
	}
	out := n.Outgoing()
	if len(out) != 1 || out[id("a")] != 1 {
		t.Fatalf("adjacency should remain the version-5 set, got %v", out)
	}
}

func TestTopologyNode_UpdateRoutingSameVersionNoChangeIsNotReported(t *testing.T) {
	n := NewTopologyNode(id("n1"))
	p := new(peer.Peer)

	n.UpdateRouting(p, 3, map[core.NodeId]int{id("a"): 1})
	changed := n.UpdateRouting(p, 3, map[core.NodeId]int{id("a"): 1})
	if changed {
		t.Fatalf("reporting the same version and adjacency again should not be a change")
	}
}

func TestTopologyNode_RemoveRoutingTracksProvenanceOnly(t *testing.T) {
	n := NewTopologyNode(id("n1"))
	p1 := new(peer.Peer)
	p2 := new(peer.Peer)

	n.UpdateRouting(p1, 1, map[core.NodeId]int{id("a"): 1})

	if !n.RemoveRouting(p1) {
		t.Fatalf("expected RemoveRouting to report p1 had a contribution")
	}
	if n.RemoveRouting(p1) {
		t.Fatalf("a second RemoveRouting for the same peer should report false")
	}
	if n.RemoveRouting(p2) {
		t.Fatalf("RemoveRouting for a peer with no contribution should report false")
	}

	// Adjacency is not retroactively recomputed.
	out := n.Outgoing()
	if len(out) != 1 || out[id("a")] != 1 {
		t.Fatalf("expected stale adjacency to remain until fresher data arrives, got %v", out)
	}
}

func TestTopologyNode_RebuildSelfBumpsVersionOnlyWhenChanged(t *testing.T) {
	n := NewTopologyNode(id("self"))

	if !n.RebuildSelf(map[core.NodeId]int{id("a"): 10}) {
		t.Fatalf("first rebuild should report a change")
	}
	if n.Version() != 1 {
		t.Fatalf("expected version 1, got %d", n.Version())
	}

	if n.RebuildSelf(map[core.NodeId]int{id("a"): 10}) {
		t.Fatalf("rebuilding with an identical edge set should not report a change")
	}
	if n.Version() != 1 {
		t.Fatalf("version should stay at 1 when nothing changed, got %d", n.Version())
	}

	if !n.RebuildSelf(map[core.NodeId]int{id("a"): 10, id("b"): 20}) {
		t.Fatalf("rebuilding with an added edge should report a change")
	}
	if n.Version() != 2 {
		t.Fatalf("expected version 2, got %d", n.Version())
	}
}

func TestTopologyNode_HasOutgoing(t *testing.T) {
	n := NewTopologyNode(id("n1"))
	if n.HasOutgoing() {
		t.Fatalf("a fresh node should have no outgoing edges")
	}
	n.RebuildSelf(map[core.NodeId]int{id("a"): 1})
	if !n.HasOutgoing() {
		t.Fatalf("expected outgoing edges after RebuildSelf")
	}
}

func TestTopologyNode_SetDirect(t *testing.T) {
	n := NewTopologyNode(id("n1"))
	if n.Direct() {
		t.Fatalf("a fresh node should not be direct")
	}
	n.SetDirect(true)
	if !n.Direct() {
		t.Fatalf("expected Direct() true after SetDirect(true)")
	}
	n.SetDirect(false)
	if n.Direct() {
		t.Fatalf("expected Direct() false after SetDirect(false)")
	}
}
