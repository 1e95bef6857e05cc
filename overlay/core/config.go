package core

import (
	"time"

	"github.com/syncwaretechnologies/ataraxia/overlay/log"
)

// ProtocolVersion is the version this engine negotiates. Bumped
// whenever the wire schema changes incompatibly.
const ProtocolVersion uint32 = 1

// Config holds the tunables and collaborators every component is built
// from, grounded on the teacher's mcast.BaseConfiguration /
// mcast.DefaultConfiguration shape: a plain struct with a Default
// constructor filling sane defaults.
type Config struct {
	// NetworkId is this node's own NodeId.
	NetworkId NodeId

	// Endpoint nodes never advertise routing and never forward
	// traffic for others (spec.md §4.5).
	Endpoint bool

	// AuthProviders is the ordered list of method ids a client tries,
	// in exactly this order (spec.md §4.2).
	AuthProviders []string

	NegotiationTimeout    time.Duration
	PingInterval          time.Duration
	PingCheckInterval     time.Duration
	RequestReplyTimeout   time.Duration
	BroadcastCoalesceWait time.Duration

	Logger log.Logger
}

// DefaultConfig fills every timing default spec.md specifies:
// negotiation 5s, ping 30s, ping-check 5s, request-reply 30s,
// broadcast coalescing 100ms.
func DefaultConfig(networkId NodeId) *Config {
	return &Config{
		NetworkId:             networkId,
		AuthProviders:         nil,
		NegotiationTimeout:    5 * time.Second,
		PingInterval:          30 * time.Second,
		PingCheckInterval:     5 * time.Second,
		RequestReplyTimeout:   30 * time.Second,
		BroadcastCoalesceWait: 100 * time.Millisecond,
		Logger:                log.NewDefaultLogger(),
	}
}
