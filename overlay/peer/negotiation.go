package peer

import (
	"github.com/syncwaretechnologies/ataraxia/overlay/auth"
	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/wire"
)

// sendUnlocked is the suspension-point helper: it releases mu for the
// duration of the transport call and re-takes it before returning, so
// no critical section spans the send (spec.md §5). Callers must check
// p.closed after it returns, since teardown may have raced in.
func (p *Peer) sendUnlocked(t wire.FrameType, payload interface{}) error {
	p.mu.Unlock()
	err := p.trans.Send(t, payload)
	p.mu.Lock()
	return err
}

// handleFrameLocked dispatches one inbound frame. Caller holds mu.
func (p *Peer) handleFrameLocked(f wire.Frame) {
	switch f.Type {
	case wire.Ping:
		if p.state != Active {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		p.detect.Heartbeat()
		if err := p.sendUnlocked(wire.Pong, wire.PongMsg{}); err != nil {
			p.log.Debugf("peer %s: pong send failed: %v", p.remoteId, err)
		}
		return
	case wire.Pong:
		if p.state != Active {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		p.recordPingLatencyLocked()
		return
	case wire.Bye:
		p.teardownLocked(core.Manual)
		return
	}

	if p.state == Active {
		p.mu.Unlock()
		p.onFrame.Emit(FrameEvent{Peer: p, Frame: f})
		p.mu.Lock()
		return
	}

	// Still negotiating: any other negotiation frame rearms the
	// deadline (spec.md §4.1).
	p.armNegotiationTimerLocked()

	if p.role == Server {
		p.handleServerFrameLocked(f)
	} else {
		p.handleClientFrameLocked(f)
	}
}

// --- Server role sequence (spec.md §4.1) ---

func (p *Peer) handleServerFrameLocked(f wire.Frame) {
	switch p.state {
	case WaitingForSelect:
		if f.Type != wire.Select {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		var msg wire.SelectMsg
		if err := wire.Decode(f, &msg); err != nil {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		remote := core.NewNodeId(msg.Id)
		if remote.Equal(p.self) || remote.IsZero() {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		if msg.Version != core.ProtocolVersion {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		p.remoteId = remote
		p.state = WaitingForAuth
		if err := p.sendUnlocked(wire.Ok, wire.OkMsg{}); err != nil || p.closed {
			if !p.closed {
				p.abortLocked(core.NegotiationFailed)
			}
			return
		}

	case WaitingForAuth:
		if f.Type != wire.Auth {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		var msg wire.AuthMsg
		if err := wire.Decode(f, &msg); err != nil {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		provider, ok := p.auth.GetProvider(msg.Method)
		if !ok {
			if err := p.sendUnlocked(wire.Reject, wire.RejectMsg{}); err != nil || p.closed {
				if !p.closed {
					p.abortLocked(core.NegotiationFailed)
				}
			}
			return
		}
		flow, ok := provider.CreateServerFlow(auth.Context{})
		if !ok {
			if err := p.sendUnlocked(wire.Reject, wire.RejectMsg{}); err != nil || p.closed {
				if !p.closed {
					p.abortLocked(core.NegotiationFailed)
				}
			}
			return
		}
		p.serverFlow = flow
		reply, err := flow.ReceiveInitial(msg.Data)
		if err != nil {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		p.actOnServerReplyLocked(reply)

	case WaitingForAuthData:
		if f.Type != wire.AuthData {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		var msg wire.AuthDataMsg
		if err := wire.Decode(f, &msg); err != nil {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		if p.serverFlow == nil {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		reply, err := p.serverFlow.ReceiveData(msg.Data)
		if err != nil {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		p.actOnServerReplyLocked(reply)

	case WaitingForBegin:
		if f.Type != wire.Begin {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		p.transitionToActiveLocked()

	default:
		p.abortLocked(core.NegotiationFailed)
	}
}

// actOnServerReplyLocked applies a ServerFlow's reply per spec.md
// §4.2. Caller holds mu.
func (p *Peer) actOnServerReplyLocked(reply auth.ServerReply) {
	switch reply.Kind {
	case auth.ServerOk:
		p.serverFlow.Destroy()
		p.serverFlow = nil
		p.state = WaitingForBegin
		if err := p.sendUnlocked(wire.Ok, wire.OkMsg{}); err != nil || p.closed {
			if !p.closed {
				p.abortLocked(core.NegotiationFailed)
			}
		}
	case auth.ServerReject:
		p.serverFlow.Destroy()
		p.serverFlow = nil
		p.state = WaitingForAuth
		if err := p.sendUnlocked(wire.Reject, wire.RejectMsg{}); err != nil || p.closed {
			if !p.closed {
				p.abortLocked(core.NegotiationFailed)
			}
		}
	case auth.ServerData:
		if len(reply.Data) == 0 {
			// A Data reply with empty bytes is a protocol error
			// (spec.md §4.2).
			p.abortLocked(core.NegotiationFailed)
			return
		}
		p.state = WaitingForAuthData
		if err := p.sendUnlocked(wire.AuthData, wire.AuthDataMsg{Data: reply.Data}); err != nil || p.closed {
			if !p.closed {
				p.abortLocked(core.NegotiationFailed)
			}
		}
	default:
		p.abortLocked(core.NegotiationFailed)
	}
}

// --- Client role sequence (spec.md §4.1) ---

func (p *Peer) handleClientFrameLocked(f wire.Frame) {
	switch p.state {
	case WaitingForHello:
		if f.Type != wire.Hello {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		var msg wire.HelloMsg
		if err := wire.Decode(f, &msg); err != nil {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		remote := core.NewNodeId(msg.Id)
		if remote.Equal(p.self) || remote.IsZero() {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		if msg.Version != core.ProtocolVersion {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		p.remoteId = remote
		p.latency.record(int(elapsedMs(p.latencyStart)))
		p.state = WaitingForSelectAck
		p.latencyStart = nowFn()
		if err := p.sendUnlocked(wire.Select, wire.SelectMsg{Id: p.self.Bytes(), Version: core.ProtocolVersion}); err != nil || p.closed {
			if !p.closed {
				p.abortLocked(core.NegotiationFailed)
			}
		}

	case WaitingForSelectAck:
		switch f.Type {
		case wire.Ok:
			p.latency.record(int(elapsedMs(p.latencyStart)))
			p.clientProviders = append([]string(nil), p.cfg.AuthProviders...)
			p.state = WaitingForAuthAck
			p.beginNextProviderLocked()
		case wire.Reject:
			p.abortLocked(core.NegotiationFailed)
		default:
			p.abortLocked(core.NegotiationFailed)
		}

	case WaitingForAuthAck:
		switch f.Type {
		case wire.AuthData:
			var msg wire.AuthDataMsg
			if err := wire.Decode(f, &msg); err != nil {
				p.abortLocked(core.NegotiationFailed)
				return
			}
			if p.clientFlow == nil {
				p.abortLocked(core.NegotiationFailed)
				return
			}
			reply, err := p.clientFlow.ReceiveData(msg.Data)
			if err != nil {
				p.abortLocked(core.NegotiationFailed)
				return
			}
			p.actOnClientReplyLocked(reply, wire.AuthData)
		case wire.Ok:
			p.clientFlow = nil
			p.transitionToActiveLocked()
			if p.closed {
				return
			}
			if err := p.sendUnlocked(wire.Begin, wire.BeginMsg{}); err != nil {
				p.log.Debugf("peer %s: begin send failed: %v", p.remoteId, err)
			}
		case wire.Reject:
			p.clientFlow = nil
			p.beginNextProviderLocked()
		default:
			p.abortLocked(core.NegotiationFailed)
		}

	default:
		p.abortLocked(core.NegotiationFailed)
	}
}

// beginNextProviderLocked pops the next configured provider id and
// starts its client flow, skipping providers that cannot create one.
// If the configured list is exhausted, the peer aborts with
// AuthReject (spec.md §4.2, §7).
func (p *Peer) beginNextProviderLocked() {
	for len(p.clientProviders) > 0 {
		id := p.clientProviders[0]
		p.clientProviders = p.clientProviders[1:]
		provider, ok := p.auth.GetProvider(id)
		if !ok {
			continue
		}
		flow, ok := provider.CreateClientFlow(auth.Context{})
		if !ok {
			continue
		}
		p.clientFlow = flow
		p.clientProvider = id
		reply, err := flow.InitialMessage()
		if err != nil {
			p.abortLocked(core.NegotiationFailed)
			return
		}
		p.actOnClientReplyLocked(reply, wire.Auth)
		return
	}
	p.abortLocked(core.AuthReject)
}

// actOnClientReplyLocked applies a ClientFlow's reply. Caller holds mu.
// sendAs is wire.Auth for the first message of a provider attempt
// (which must carry the method id) and wire.AuthData for every
// subsequent message of the same attempt.
func (p *Peer) actOnClientReplyLocked(reply auth.ClientReply, sendAs wire.FrameType) {
	switch reply.Kind {
	case auth.ClientData:
		var err error
		if sendAs == wire.Auth {
			err = p.sendUnlocked(wire.Auth, wire.AuthMsg{Method: p.clientProvider, Data: reply.Data})
		} else {
			err = p.sendUnlocked(wire.AuthData, wire.AuthDataMsg{Data: reply.Data})
		}
		if err != nil || p.closed {
			if !p.closed {
				p.abortLocked(core.NegotiationFailed)
			}
		}
	case auth.ClientReject:
		p.beginNextProviderLocked()
	default:
		p.abortLocked(core.NegotiationFailed)
	}
}
