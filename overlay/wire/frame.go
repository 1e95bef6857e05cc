// Package wire defines the overlay's frame schema (spec.md §6) and its
// CBOR encoding, independent of any particular transport.
package wire

import "fmt"

// FrameType is the closed set of typed frames a Peer exchanges.
type FrameType uint8

const (
	Hello FrameType = iota + 1
	Select
	Auth
	AuthData
	Ok
	Reject
	Begin
	Ping
	Pong
	Bye
	Data
	DataAck
	DataReject
	NodeSummary
	NodeRequest
	NodeDetails
)

func (t FrameType) String() string {
	switch t {
	case Hello:
		return "Hello"
	case Select:
		return "Select"
	case Auth:
		return "Auth"
	case AuthData:
		return "AuthData"
	case Ok:
		return "Ok"
	case Reject:
		return "Reject"
	case Begin:
		return "Begin"
	case Ping:
		return "Ping"
	case Pong:
		return "Pong"
	case Bye:
		return "Bye"
	case Data:
		return "Data"
	case DataAck:
		return "DataAck"
	case DataReject:
		return "DataReject"
	case NodeSummary:
		return "NodeSummary"
	case NodeRequest:
		return "NodeRequest"
	case NodeDetails:
		return "NodeDetails"
	default:
		return fmt.Sprintf("FrameType(%d)", uint8(t))
	}
}

// Frame is the envelope every transport sends/receives: a type tag plus
// the CBOR-encoded body matching one of the structs below.
type Frame struct {
	Type FrameType
	Body []byte
}

// HelloMsg / SelectMsg carry an id, the sender's protocol version
// (spec.md §1, §4.1) and a capability set. Capability negotiation is
// unused by this engine (spec.md §9 Open Question) but the field is
// preserved on the wire.
type HelloMsg struct {
	Id           []byte   `cbor:"1,keyasint"`
	Capabilities []string `cbor:"2,keyasint"`
	Version      uint32   `cbor:"3,keyasint"`
}

type SelectMsg struct {
	Id           []byte   `cbor:"1,keyasint"`
	Capabilities []string `cbor:"2,keyasint"`
	Version      uint32   `cbor:"3,keyasint"`
}

type AuthMsg struct {
	Method string `cbor:"1,keyasint"`
	Data   []byte `cbor:"2,keyasint"`
}

type AuthDataMsg struct {
	Data []byte `cbor:"1,keyasint"`
}

// OkMsg, RejectMsg, BeginMsg, PingMsg, PongMsg, ByeMsg carry no fields.
type OkMsg struct{}
type RejectMsg struct{}
type BeginMsg struct{}
type PingMsg struct{}
type PongMsg struct{}
type ByeMsg struct{}

// NodeVersion is one entry of a NodeSummary/NodeDetails id+version pair.
type NodeVersion struct {
	Id      []byte `cbor:"1,keyasint"`
	Version uint32 `cbor:"2,keyasint"`
}

type NodeSummaryMsg struct {
	OwnVersion uint32        `cbor:"1,keyasint"`
	Nodes      []NodeVersion `cbor:"2,keyasint"`
}

type NodeRequestMsg struct {
	Nodes [][]byte `cbor:"1,keyasint"`
}

// Neighbor is one outgoing edge (neighbor id, latency in ms).
type Neighbor struct {
	Id      []byte `cbor:"1,keyasint"`
	Latency uint32 `cbor:"2,keyasint"`
}

// NodeDetail is the full routing record for one node: its version and
// its current outgoing edge set.
type NodeDetail struct {
	Id        []byte     `cbor:"1,keyasint"`
	Version   uint32     `cbor:"2,keyasint"`
	Neighbors []Neighbor `cbor:"3,keyasint"`
}

type NodeDetailsMsg struct {
	Nodes []NodeDetail `cbor:"1,keyasint"`
}

type DataMsg struct {
	Source    []byte   `cbor:"1,keyasint"`
	Target    []byte   `cbor:"2,keyasint"`
	RequestId uint32   `cbor:"3,keyasint"`
	Type      string   `cbor:"4,keyasint"`
	Path      [][]byte `cbor:"5,keyasint"`
	Payload   []byte   `cbor:"6,keyasint"`
}

// RejectCode is the closed set of reasons a DataReject can carry.
type RejectCode uint8

const (
	RejectLoop RejectCode = iota + 1
	RejectNoRoute
)

func (c RejectCode) String() string {
	switch c {
	case RejectLoop:
		return "loop"
	case RejectNoRoute:
		return "no_route"
	default:
		return "unknown"
	}
}

type DataAckMsg struct {
	RequestId uint32   `cbor:"1,keyasint"`
	Target    []byte   `cbor:"2,keyasint"`
	Path      [][]byte `cbor:"3,keyasint"`
}

type DataRejectMsg struct {
	RequestId uint32     `cbor:"1,keyasint"`
	Target    []byte     `cbor:"2,keyasint"`
	Path      [][]byte   `cbor:"3,keyasint"`
	Code      RejectCode `cbor:"4,keyasint"`
}
