// Package ipc implements core.Transport over a Unix-domain-socket
// or net.Pipe connection for same-machine processes (spec.md §1's
// "machine-local IPC" transport). It shares the length-prefixed CBOR
// framing used by transport/tcp, since a net.Conn is a net.Conn
// regardless of the underlying address family.
package ipc

import (
	"net"

	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/log"
	"github.com/syncwaretechnologies/ataraxia/overlay/transport/tcp"
	"github.com/syncwaretechnologies/ataraxia/overlay/wire"
)

// Transport adapts a Unix-domain-socket or in-process net.Pipe
// connection to core.Transport, reusing transport/tcp's
// length-prefixed framing unchanged.
type Transport struct {
	inner *tcp.Transport
}

// New wraps an already-established net.Conn (typically from
// net.DialUnix/net.ListenUnix, or net.Pipe for same-process tests).
func New(conn net.Conn, logger log.Logger) *Transport {
	return &Transport{inner: tcp.New(conn, logger)}
}

func (t *Transport) Send(ft wire.FrameType, payload interface{}) error {
	return t.inner.Send(ft, payload)
}

func (t *Transport) Frames() <-chan wire.Frame {
	return t.inner.Frames()
}

func (t *Transport) Disconnect(reason core.DisconnectReason) {
	t.inner.Disconnect(reason)
}
