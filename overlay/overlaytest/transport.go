// Package overlaytest provides in-memory test doubles for exercising
// the negotiation and topology layers without a real transport,
// grounded on the teacher's test/testing.go helpers (TestInvoker,
// WaitThisOrTimeout, PrintStackTrace).
package overlaytest

import (
	"sync"

	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/wire"
)

// PipeTransport is an in-memory core.Transport backed by a pair of
// buffered channels, linked to a twin PipeTransport by Pipe.
type PipeTransport struct {
	out chan<- wire.Frame
	in  chan wire.Frame

	mu     sync.Mutex
	closed bool

	onDisconnect func(core.DisconnectReason)
}

// Pipe builds two linked PipeTransports, as if a and b were opposite
// ends of one connection.
func Pipe() (a, b *PipeTransport) {
	ab := make(chan wire.Frame, 64)
	ba := make(chan wire.Frame, 64)
	a = &PipeTransport{out: ab, in: ba}
	b = &PipeTransport{out: ba, in: ab}
	return a, b
}

// Send encodes payload and pushes it onto the pipe. It never blocks
// indefinitely: the pipe is generously buffered for test traffic
// volumes, and Send returns an error rather than deadlocking if the
// other end never drains.
func (p *PipeTransport) Send(t wire.FrameType, payload interface{}) error {
	f, err := wire.Encode(t, payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errClosed
	}
	select {
	case p.out <- f:
		return nil
	default:
		return errFull
	}
}

// Frames exposes the inbound channel directly. Disconnect closes this
// end's outbound channel, which is the twin's inbound channel; this
// end's own inbound channel is closed only when the twin disconnects.
func (p *PipeTransport) Frames() <-chan wire.Frame {
	return p.in
}

// Disconnect closes the transport. Safe to call more than once.
func (p *PipeTransport) Disconnect(reason core.DisconnectReason) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	cb := p.onDisconnect
	p.mu.Unlock()
	close(p.out)
	if cb != nil {
		cb(reason)
	}
}

// OnDisconnect registers a callback invoked when this end disconnects,
// used by tests asserting on DisconnectReason propagation.
func (p *PipeTransport) OnDisconnect(fn func(core.DisconnectReason)) {
	p.mu.Lock()
	p.onDisconnect = fn
	p.mu.Unlock()
}

type pipeError string

func (e pipeError) Error() string { return string(e) }

const (
	errClosed = pipeError("overlaytest: pipe closed")
	errFull   = pipeError("overlaytest: pipe full")
)
