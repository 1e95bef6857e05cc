// Package tcp implements core.Transport over a plain net.Conn,
// length-prefixing each CBOR-encoded frame, grounded on the teacher's
// core.ReliableTransport: a constructor that takes a logger, spawns a
// poll goroutine, and exposes a receive channel plus a context-based
// shutdown.
package tcp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/log"
	"github.com/syncwaretechnologies/ataraxia/overlay/wire"
)

// maxFrameBytes bounds a single frame to guard against a corrupt or
// hostile length prefix driving an unbounded allocation.
const maxFrameBytes = 16 << 20

// Transport adapts a net.Conn to core.Transport.
type Transport struct {
	conn net.Conn
	log  log.Logger

	producer chan wire.Frame
	ctx      context.Context
	cancel   context.CancelFunc

	writeMu sync.Mutex
	mu      sync.Mutex
	closed  bool
}

// New wraps an already-established net.Conn (accepted or dialed by the
// caller; connection setup is outside this engine's scope per
// spec.md §6) and starts its read loop.
func New(conn net.Conn, logger log.Logger) *Transport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		conn:     conn,
		log:      logger,
		producer: make(chan wire.Frame, 64),
		ctx:      ctx,
		cancel:   cancel,
	}
	go t.poll()
	return t
}

// Send length-prefixes and writes one encoded frame. Peer sends from
// several goroutines (its own reader, ping timers, topology broadcasts,
// forwarded messages), so writeMu keeps each prefix and body together.
func (t *Transport) Send(ft wire.FrameType, payload interface{}) error {
	f, err := wire.Encode(ft, payload)
	if err != nil {
		return err
	}
	data, err := wire.MarshalFrame(f)
	if err != nil {
		return err
	}
	if len(data) > maxFrameBytes {
		return fmt.Errorf("tcp: outbound frame too large: %d bytes", len(data))
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(data)))
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.conn.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("tcp: write length prefix: %w", err)
	}
	if _, err := t.conn.Write(data); err != nil {
		return fmt.Errorf("tcp: write frame: %w", err)
	}
	return nil
}

// Frames exposes inbound decoded frames.
func (t *Transport) Frames() <-chan wire.Frame {
	return t.producer
}

// Disconnect closes the underlying connection and stops poll. Safe to
// call more than once.
func (t *Transport) Disconnect(reason core.DisconnectReason) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	if err := t.conn.Close(); err != nil {
		t.log.Debugf("tcp: close: %v", err)
	}
}

// poll reads length-prefixed frames until the connection errors or
// Disconnect cancels the context, then closes producer so the owning
// Peer's read loop observes the disconnect.
func (t *Transport) poll() {
	defer close(t.producer)
	for {
		var lenPrefix [4]byte
		if _, err := io.ReadFull(t.conn, lenPrefix[:]); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				t.log.Debugf("tcp: read length prefix: %v", err)
			}
			return
		}
		n := binary.BigEndian.Uint32(lenPrefix[:])
		if n > maxFrameBytes {
			t.log.Warnf("tcp: inbound frame too large: %d bytes", n)
			return
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(t.conn, data); err != nil {
			t.log.Debugf("tcp: read frame body: %v", err)
			return
		}
		f, err := wire.UnmarshalFrame(data)
		if err != nil {
			t.log.Warnf("tcp: malformed frame: %v", err)
			continue
		}
		select {
		case t.producer <- f:
		case <-t.ctx.Done():
			return
		}
	}
}
