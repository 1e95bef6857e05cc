// Package core holds the overlay's foundational types — NodeId,
// Config, Signal, Transport — shared by every other package
// in this module, following the teacher's pkg/mcast/core layering
// (types and interfaces in one package, behavior layered on top).
package core

import "encoding/hex"

// NodeId is an opaque immutable byte string identifying a participant
// in the mesh. Equality and hashing are by value across the whole byte
// string; the textual form produced by String exists only for logs.
//
// NodeId holds a single string field so that the zero value is a valid
// map/set key and two NodeIds built from equal bytes always compare
// equal, regardless of construction path.
type NodeId struct {
	bytes string
}

// NoId is the distinguished "unknown" NodeId. A zero-value NodeId is
// always equal to NoId.
var NoId = NodeId{}

// NewNodeId builds a NodeId from a raw byte slice. The slice is copied
// (via the string conversion) so later mutation of b does not alias the
// returned id.
func NewNodeId(b []byte) NodeId {
	if len(b) == 0 {
		return NoId
	}
	return NodeId{bytes: string(b)}
}

// Bytes returns the raw byte representation of the id.
func (n NodeId) Bytes() []byte {
	return []byte(n.bytes)
}

// IsZero reports whether n is the distinguished "unknown" value.
func (n NodeId) IsZero() bool {
	return n.bytes == ""
}

// Equal reports value equality between two NodeIds.
func (n NodeId) Equal(other NodeId) bool {
	return n.bytes == other.bytes
}

// String renders a stable hex encoding for logs. It is never used for
// equality or hashing.
func (n NodeId) String() string {
	if n.IsZero() {
		return "<unknown>"
	}
	return hex.EncodeToString([]byte(n.bytes))
}

// Less provides the lexicographic ordering spec.md uses for routing
// tie-breaks ("lexicographic NodeId of the next hop").
func (n NodeId) Less(other NodeId) bool {
	return n.bytes < other.bytes
}
