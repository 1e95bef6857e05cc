// Package reqreply implements RequestReplyHelper (spec.md §4.8): a
// monotonically-allocated request id mapped to a pending promise,
// resolved at most once by a reply or a timeout.
package reqreply

import (
	"errors"
	"sync"
	"time"
)

// ErrTimedOut is the rejection reason used when no reply arrives
// within the configured timeout.
var ErrTimedOut = errors.New("Timed out")

const defaultTimeout = 30 * time.Second

type pending struct {
	resolve func(value interface{})
	reject  func(err error)
	timer   *time.Timer
}

// Helper maps requestId -> pending promise. Safe for concurrent use.
type Helper struct {
	mu      sync.Mutex
	nextId  uint32
	pending map[uint32]*pending
	timeout time.Duration
}

// New builds a Helper using the given default timeout; if d is zero,
// the spec's default of 30s is used.
func New(d time.Duration) *Helper {
	if d <= 0 {
		d = defaultTimeout
	}
	return &Helper{
		pending: make(map[uint32]*pending),
		timeout: d,
	}
}

// Prepare allocates the next request id (monotonic, wrap-around
// tolerated) and arms a timeout that calls reject(ErrTimedOut) if no
// reply arrives first. It returns the id; Release(id) drops the
// pending entry (cancelling its timer) without resolving it, for
// callers that have otherwise consumed the result, or on teardown.
func (h *Helper) Prepare(resolve func(value interface{}), reject func(err error)) uint32 {
	h.mu.Lock()
	id := h.nextId
	h.nextId++
	p := &pending{resolve: resolve, reject: reject}
	h.pending[id] = p
	h.mu.Unlock()

	p.timer = time.AfterFunc(h.timeout, func() {
		h.registerErrorInternal(id, ErrTimedOut)
	})
	return id
}

// RegisterReply resolves id with value. A no-op if id is unknown
// (already resolved, already timed out, or never allocated).
func (h *Helper) RegisterReply(id uint32, value interface{}) {
	h.mu.Lock()
	p, ok := h.pending[id]
	if ok {
		delete(h.pending, id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	p.timer.Stop()
	p.resolve(value)
}

// RegisterError rejects id with err. A no-op if id is unknown.
func (h *Helper) RegisterError(id uint32, err error) {
	h.registerErrorInternal(id, err)
}

func (h *Helper) registerErrorInternal(id uint32, err error) {
	h.mu.Lock()
	p, ok := h.pending[id]
	if ok {
		delete(h.pending, id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	p.timer.Stop()
	p.reject(err)
}

// Release cancels id's timer and drops it without invoking resolve or
// reject, e.g. on owner shutdown where callers are torn down some
// other way.
func (h *Helper) Release(id uint32) {
	h.mu.Lock()
	p, ok := h.pending[id]
	if ok {
		delete(h.pending, id)
	}
	h.mu.Unlock()
	if ok {
		p.timer.Stop()
	}
}

// Pending returns the number of outstanding requests, for tests.
func (h *Helper) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}
