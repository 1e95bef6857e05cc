// Package peer implements the per-connection negotiation and
// keep-alive state machine described in spec.md §4.1-§4.3: it brings a
// raw Transport to an authenticated, ping-monitored Active peer and
// then forwards every post-negotiation frame to its subscribers.
package peer

import (
	"sync"
	"time"

	"github.com/syncwaretechnologies/ataraxia/overlay/auth"
	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/failure"
	"github.com/syncwaretechnologies/ataraxia/overlay/log"
	"github.com/syncwaretechnologies/ataraxia/overlay/wire"
)

// Peer is the local representation of one bidirectional link.
// Exactly one exists per accepted or initiated connection. All fields
// below the mutex line are guarded by mu; the concurrency model is a
// per-peer mutex (spec.md §5). Negotiation handlers drop the lock for
// each transport send (sendUnlocked) and re-check p.closed after
// retaking it. Auth-flow calls (InitialMessage, ReceiveInitial,
// ReceiveData, Destroy) and the transport's Disconnect are made with
// mu held.
type Peer struct {
	role   Role
	self   core.NodeId
	trans  core.Transport
	auth   *auth.Registry
	cfg    *core.Config
	log    log.Logger
	detect *failure.Detector

	onActive     core.Signal[*Peer]
	onDisconnect core.Signal[DisconnectEvent]
	onFrame      core.Signal[FrameEvent]

	mu             sync.Mutex
	state          State
	remoteId       core.NodeId
	closed         bool
	latency        latencyTracker
	latencyStart   time.Time
	lastPingSentAt time.Time

	clientProviders []string // remaining configured provider ids to try
	clientFlow      auth.ClientFlow
	clientProvider  string
	serverFlow      auth.ServerFlow

	negotiationTimer *time.Timer
	pingTimer        *time.Timer
	pingCheckTimer   *time.Timer

	done chan struct{}
}

// DisconnectEvent is delivered to OnDisconnect subscribers.
type DisconnectEvent struct {
	Peer   *Peer
	Reason core.DisconnectReason
}

// FrameEvent is delivered to OnFrame subscribers for every
// post-negotiation frame (everything except Ping/Pong/Bye, which the
// Peer itself consumes).
type FrameEvent struct {
	Peer  *Peer
	Frame wire.Frame
}

// New builds a Peer for an already-established Transport and starts
// its negotiation sequence. role determines whether HELLO is emitted
// immediately (Server) or waited for (Client, spec.md §4.1).
func New(role Role, cfg *core.Config, trans core.Transport, registry *auth.Registry) *Peer {
	p := &Peer{
		role:   role,
		self:   cfg.NetworkId,
		trans:  trans,
		auth:   registry,
		cfg:    cfg,
		log:    cfg.Logger,
		detect: failure.New(),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// State returns the current negotiation state.
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// RemoteId returns the other side's NodeId, valid once known (after
// HELLO/SELECT exchange); core.NoId before that.
func (p *Peer) RemoteId() core.NodeId {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remoteId
}

// Latency returns the integer mean of recorded round-trip samples, or
// ErrNoLatencySamples if none have been recorded yet.
func (p *Peer) Latency() (int, error) {
	return p.latency.mean()
}

// OnActive fires exactly once, when the peer transitions to Active.
func (p *Peer) OnActive(fn func(*Peer)) core.Subscription {
	return p.onActive.Subscribe(fn)
}

// OnDisconnect fires exactly once, when the peer tears down for any
// reason.
func (p *Peer) OnDisconnect(fn func(DisconnectEvent)) core.Subscription {
	return p.onDisconnect.Subscribe(fn)
}

// OnFrame fires for every frame received while Active other than
// Ping/Pong/Bye, which the Peer consumes itself.
func (p *Peer) OnFrame(fn func(FrameEvent)) core.Subscription {
	return p.onFrame.Subscribe(fn)
}

// Send transmits one application frame, e.g. Data/DataAck/DataReject
// or gossip frames. Only Active peers should be sent application
// traffic; spec.md §7 says send failures during Active are logged and
// do not tear the peer down.
func (p *Peer) Send(t wire.FrameType, payload interface{}) error {
	if err := p.trans.Send(t, payload); err != nil {
		p.log.Warnf("peer %s: send %s failed: %v", p.remoteId, t, err)
		return err
	}
	return nil
}

// Disconnect tears the peer down with the given reason. When reason is
// Manual (spec.md §9's Open Question), a Bye frame is emitted
// best-effort before the transport is closed; other reasons close the
// transport without a Bye.
func (p *Peer) Disconnect(reason core.DisconnectReason) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if reason == core.Manual {
		p.mu.Unlock()
		_ = p.trans.Send(wire.Bye, wire.ByeMsg{})
		p.mu.Lock()
	}
	p.teardownLocked(reason)
	p.mu.Unlock()
}

// run is the peer's single reader goroutine: it drains transport
// frames and dispatches them under the peer mutex. It exits when the
// transport's frame channel closes, which happens on any disconnect.
func (p *Peer) run() {
	p.mu.Lock()
	if p.role == Server {
		p.state = WaitingForSelect
		p.armNegotiationTimerLocked()
		p.mu.Unlock()
		if err := p.Send(wire.Hello, wire.HelloMsg{Id: p.self.Bytes(), Version: core.ProtocolVersion}); err != nil {
			p.mu.Lock()
			if !p.closed {
				p.abortLocked(core.NegotiationFailed)
			}
			p.mu.Unlock()
		}
	} else {
		p.state = WaitingForHello
		p.latencyStart = time.Now()
		p.armNegotiationTimerLocked()
		p.mu.Unlock()
	}

	frames := p.trans.Frames()
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				p.mu.Lock()
				p.teardownLocked(core.TransportError)
				p.mu.Unlock()
				return
			}
			p.mu.Lock()
			if p.closed {
				p.mu.Unlock()
				continue
			}
			p.handleFrameLocked(f)
			p.mu.Unlock()
		case <-p.done:
			return
		}
	}
}

// teardownLocked releases every timer, subscription-relevant resource
// and auth flow, exactly once, on every exit path (spec.md §5).
// Caller holds mu.
func (p *Peer) teardownLocked(reason core.DisconnectReason) {
	if p.closed {
		return
	}
	p.closed = true
	if p.negotiationTimer != nil {
		p.negotiationTimer.Stop()
	}
	if p.pingTimer != nil {
		p.pingTimer.Stop()
	}
	if p.pingCheckTimer != nil {
		p.pingCheckTimer.Stop()
	}
	if p.serverFlow != nil {
		p.serverFlow.Destroy()
		p.serverFlow = nil
	}
	p.clientFlow = nil
	close(p.done)
	p.trans.Disconnect(reason)

	p.mu.Unlock()
	p.onDisconnect.Emit(DisconnectEvent{Peer: p, Reason: reason})
	p.mu.Lock()
}

// abortLocked is teardownLocked under the NegotiationFailed/AuthReject
// vocabulary §7 uses for protocol-level failures during negotiation.
func (p *Peer) abortLocked(reason core.DisconnectReason) {
	p.teardownLocked(reason)
}

func (p *Peer) armNegotiationTimerLocked() {
	if p.negotiationTimer != nil {
		p.negotiationTimer.Stop()
	}
	p.negotiationTimer = time.AfterFunc(p.cfg.NegotiationTimeout, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed || p.state == Active {
			return
		}
		p.abortLocked(core.NegotiationFailed)
	})
}

func (p *Peer) transitionToActiveLocked() {
	p.state = Active
	if p.negotiationTimer != nil {
		p.negotiationTimer.Stop()
	}
	p.armPingTimersLocked()
	p.mu.Unlock()
	p.onActive.Emit(p)
	p.mu.Lock()
}
