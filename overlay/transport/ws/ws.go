// Package ws implements core.Transport over a gorilla/websocket
// connection: one binary message per frame, no additional length
// framing needed since WebSocket already delimits messages.
package ws

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/log"
	"github.com/syncwaretechnologies/ataraxia/overlay/wire"
)

// Transport adapts a *websocket.Conn to core.Transport.
type Transport struct {
	conn *websocket.Conn
	log  log.Logger

	producer chan wire.Frame
	ctx      context.Context
	cancel   context.CancelFunc

	writeMu sync.Mutex
	mu      sync.Mutex
	closed  bool
}

// New wraps an already-established websocket connection (the HTTP
// upgrade/dial handshake is outside this engine's scope) and starts
// its read loop.
func New(conn *websocket.Conn, logger log.Logger) *Transport {
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

// Send encodes payload and writes it as one binary WebSocket message.
func (t *Transport) Send(ft wire.FrameType, payload interface{}) error {
	f, err := wire.Encode(ft, payload)
	if err != nil {
		return err
	}
	data, err := wire.MarshalFrame(f)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Frames exposes inbound decoded frames.
func (t *Transport) Frames() <-chan wire.Frame {
	return t.producer
}

// Disconnect closes the underlying connection. Safe to call more than
// once.
func (t *Transport) Disconnect(reason core.DisconnectReason) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	_ = t.conn.Close()
}

func (t *Transport) poll() {
	defer close(t.producer)
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			t.log.Debugf("ws: read: %v", err)
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		f, err := wire.UnmarshalFrame(data)
		if err != nil {
			t.log.Warnf("ws: malformed frame: %v", err)
			continue
		}
		select {
		case t.producer <- f:
		case <-t.ctx.Done():
			return
		}
	}
}
