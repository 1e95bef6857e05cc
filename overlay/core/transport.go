package core

import "github.com/syncwaretechnologies/ataraxia/overlay/wire"

// DisconnectReason is the closed set of reasons a link goes down.
type DisconnectReason uint8

const (
	Manual DisconnectReason = iota + 1
	NegotiationFailed
	AuthReject
	PingTimeout
	TransportError
)

func (r DisconnectReason) String() string {
	switch r {
	case Manual:
		return "Manual"
	case NegotiationFailed:
		return "NegotiationFailed"
	case AuthReject:
		return "AuthReject"
	case PingTimeout:
		return "PingTimeout"
	case TransportError:
		return "TransportError"
	default:
		return "Unknown"
	}
}

// Transport is the minimal interface a link implementation supplies,
// consumed by Peer (spec.md §6). It is deliberately thin: connect/
// accept is the transport's own concern, this interface only covers
// the already-established duplex link.
type Transport interface {
	// Send transmits one typed frame. Payload must be one of the
	// wire.*Msg structs matching t.
	Send(t wire.FrameType, payload interface{}) error

	// Frames yields inbound frames in arrival order. The channel is
	// closed when the link goes down, for any reason.
	Frames() <-chan wire.Frame

	// Disconnect tears the link down with the given reason. It is
	// safe to call more than once; only the first call has effect.
	Disconnect(reason DisconnectReason)
}
