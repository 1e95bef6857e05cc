package topology

import (
	"container/heap"
	"sync"

	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/peer"
)

// hop is the routing outcome for one reachable target (spec.md §3:
// "result is a mapping NodeId -> (nextHopPeer, pathLatency)").
type hop struct {
	nextHop     *peer.Peer
	firstHopId  core.NodeId
	pathLatency int
}

// Routing computes shortest paths from self over the current set of
// TopologyNodes (spec.md §4.5). It is marked dirty by Topology on any
// graph change and recomputes lazily on the next Refresh call.
type Routing struct {
	self core.NodeId

	mu           sync.Mutex
	dirty        bool
	hops         map[core.NodeId]hop
	wasReachable map[core.NodeId]bool

	onAvailable   core.Signal[*TopologyNode]
	onUnavailable core.Signal[*TopologyNode]
}

// NewRouting builds a Routing for the given self id.
func NewRouting(self core.NodeId) *Routing {
	return &Routing{
		self:         self,
		hops:         make(map[core.NodeId]hop),
		wasReachable: make(map[core.NodeId]bool),
		dirty:        true,
	}
}

// MarkDirty schedules a recomputation on the next Refresh.
func (r *Routing) MarkDirty() {
	r.mu.Lock()
	r.dirty = true
	r.mu.Unlock()
}

// OnAvailable fires once per node transitioning from unreachable (or
// unknown) to reachable.
func (r *Routing) OnAvailable(fn func(*TopologyNode)) core.Subscription {
	return r.onAvailable.Subscribe(fn)
}

// OnUnavailable fires once per node transitioning from reachable to
// unreachable.
func (r *Routing) OnUnavailable(fn func(*TopologyNode)) core.Subscription {
	return r.onUnavailable.Subscribe(fn)
}

// NextHop returns the Peer to forward traffic for target through, and
// the accumulated path latency, or ok=false if target is unreachable.
func (r *Routing) NextHop(target core.NodeId) (p *peer.Peer, latencyMs int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, exists := r.hops[target]
	if !exists || h.nextHop == nil {
		return nil, 0, false
	}
	return h.nextHop, h.pathLatency, true
}

// Refresh recomputes shortest paths if dirty. nodes is every known
// TopologyNode in stable insertion order; peerFor resolves a node id
// to its locally Active Peer, used to turn "first hop id" into an
// actual sendable Peer. Refresh is a no-op, producing no events, if
// the graph has not changed since the last call (spec.md §8).
func (r *Routing) Refresh(nodes []*TopologyNode, peerFor func(core.NodeId) (*peer.Peer, bool)) {
	r.mu.Lock()
	if !r.dirty {
		r.mu.Unlock()
		return
	}
	r.dirty = false
	r.mu.Unlock()

	order := make(map[core.NodeId]int, len(nodes))
	byId := make(map[core.NodeId]*TopologyNode, len(nodes))
	for i, n := range nodes {
		order[n.Id()] = i
		byId[n.Id()] = n
	}

	dist := make(map[core.NodeId]int)
	firstHop := make(map[core.NodeId]core.NodeId)
	visited := make(map[core.NodeId]bool)

	pq := &priorityQueue{}
	heap.Init(pq)
	dist[r.self] = 0
	heap.Push(pq, &pqItem{id: r.self, dist: 0, firstHop: core.NoId, order: order[r.self]})

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*pqItem)
		if visited[cur.id] {
			continue
		}
		if d, ok := dist[cur.id]; ok && d != cur.dist {
			continue
		}
		visited[cur.id] = true

		node, ok := byId[cur.id]
		if !ok {
			continue
		}
		for neighborId, weight := range node.Outgoing() {
			if visited[neighborId] {
				continue
			}
			newDist := cur.dist + weight
			var newFirstHop core.NodeId
			if cur.id.Equal(r.self) {
				newFirstHop = neighborId
			} else {
				newFirstHop = cur.firstHop
			}

			existingDist, known := dist[neighborId]
			better := !known || newDist < existingDist
			tie := known && newDist == existingDist && newFirstHop.Less(firstHop[neighborId])
			if better || tie {
				dist[neighborId] = newDist
				firstHop[neighborId] = newFirstHop
				heap.Push(pq, &pqItem{id: neighborId, dist: newDist, firstHop: newFirstHop, order: order[neighborId]})
			}
		}
	}

	newHops := make(map[core.NodeId]hop, len(dist))
	newReachable := make(map[core.NodeId]bool, len(dist))
	for id, d := range dist {
		if id.Equal(r.self) {
			continue
		}
		fh := firstHop[id]
		p, ok := peerFor(fh)
		if !ok {
			continue
		}
		newHops[id] = hop{nextHop: p, firstHopId: fh, pathLatency: d}
		newReachable[id] = true
	}

	r.mu.Lock()
	oldReachable := r.wasReachable
	r.hops = newHops
	r.wasReachable = newReachable
	r.mu.Unlock()

	for id := range newReachable {
		if !oldReachable[id] {
			if n, ok := byId[id]; ok {
				r.onAvailable.Emit(n)
			}
		}
	}
	for id := range oldReachable {
		if !newReachable[id] {
			if n, ok := byId[id]; ok {
				r.onUnavailable.Emit(n)
			}
		}
	}
}

// --- priority queue ---

type pqItem struct {
	id       core.NodeId
	dist     int
	firstHop core.NodeId
	order    int
}

type priorityQueue []*pqItem

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	if !a.firstHop.Equal(b.firstHop) {
		return a.firstHop.Less(b.firstHop)
	}
	return a.order < b.order
}

func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *priorityQueue) Push(x interface{}) {
	*q = append(*q, x.(*pqItem))
}

func (q *priorityQueue) Pop() interface{} {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}
