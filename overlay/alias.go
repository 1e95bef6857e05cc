package overlay

import "github.com/syncwaretechnologies/ataraxia/overlay/core"

// These aliases keep the application-facing surface (NodeId, Config,
// Subscription, Transport, DisconnectReason) reachable as overlay.X even
// though the underlying definitions live in overlay/core to avoid an
// import cycle with overlay/topology, which Network depends on.
type (
	NodeId           = core.NodeId
	Config           = core.Config
	Subscription     = core.Subscription
	Transport        = core.Transport
	DisconnectReason = core.DisconnectReason
)

const (
	Manual            = core.Manual
	NegotiationFailed = core.NegotiationFailed
	AuthReject        = core.AuthReject
	PingTimeout       = core.PingTimeout
	TransportError    = core.TransportError
	ProtocolVersion   = core.ProtocolVersion
)

var (
	NoId          = core.NoId
	NewNodeId     = core.NewNodeId
	DefaultConfig = core.DefaultConfig
)
