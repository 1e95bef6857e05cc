package peer

import (
	"time"

	"github.com/syncwaretechnologies/ataraxia/overlay/core"
	"github.com/syncwaretechnologies/ataraxia/overlay/wire"
)

// armPingTimersLocked starts the 30s ping-send ticker and the 5s
// failure-detector poll, both cancelled on disconnect (spec.md §4.3,
// §5). Caller holds mu.
func (p *Peer) armPingTimersLocked() {
	p.schedulePingLocked()
	p.schedulePingCheckLocked()
}

func (p *Peer) schedulePingLocked() {
	p.pingTimer = time.AfterFunc(p.cfg.PingInterval, p.firePing)
}

func (p *Peer) firePing() {
	p.mu.Lock()
	if p.closed || p.state != Active {
		p.mu.Unlock()
		return
	}
	lastSend := time.Now()
	err := p.sendUnlocked(wire.Ping, wire.PingMsg{})
	if err != nil {
		// Ping/pong failures only propagate as debug; liveness is
		// solely the failure detector's call (spec.md §4.3).
		p.log.Debugf("peer %s: ping send failed: %v", p.remoteId, err)
	}
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.lastPingSentAt = lastSend
	p.schedulePingLocked()
	p.mu.Unlock()
}

func (p *Peer) schedulePingCheckLocked() {
	p.pingCheckTimer = time.AfterFunc(p.cfg.PingCheckInterval, p.firePingCheck)
}

func (p *Peer) firePingCheck() {
	p.mu.Lock()
	if p.closed || p.state != Active {
		p.mu.Unlock()
		return
	}
	if !p.detect.IsAvailable() {
		p.abortLocked(core.PingTimeout)
		return
	}
	p.schedulePingCheckLocked()
	p.mu.Unlock()
}

// recordPingLatencyLocked samples the ping/pong round trip. Caller
// holds mu.
func (p *Peer) recordPingLatencyLocked() {
	if p.lastPingSentAt.IsZero() {
		return
	}
	p.latency.record(int(elapsedMs(p.lastPingSentAt)))
	p.lastPingSentAt = time.Time{}
}
