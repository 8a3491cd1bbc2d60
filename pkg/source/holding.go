package source

import (
	"sync"

	"github.com/robotalks/rawlog/pkg/ring"
)

// Holding is the internal holding area of a source which receives bytes
// on its own goroutine. The staging loop keeps it drained by polling.
type Holding struct {
	lock    sync.Mutex
	buf     *ring.Buffer
	dropped uint64
}

// NewHolding creates a Holding of capacity bytes.
func NewHolding(capacity int) (*Holding, error) {
	buf, err := ring.New(capacity)
	if err != nil {
		return nil, err
	}
	return &Holding{buf: buf}, nil
}

// Push appends as much of p as fits, dropping the tail.
func (h *Holding) Push(p []byte) ring.PushResult {
	h.lock.Lock()
	defer h.lock.Unlock()
	res := h.buf.Push(p)
	h.dropped += uint64(res.Dropped)
	return res
}

// Offer appends p only if it fits entirely, so a message is never torn.
func (h *Holding) Offer(p []byte) bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	if len(p) > h.buf.Free() {
		h.dropped += uint64(len(p))
		return false
	}
	h.buf.Push(p)
	return true
}

// Drain removes and returns all queued bytes, nil if empty.
func (h *Holding) Drain() []byte {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.buf.Available() == 0 {
		return nil
	}
	data, _ := h.buf.Extract(h.buf.Available())
	return data
}

// Available returns the queued bytes.
func (h *Holding) Available() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.buf.Available()
}

// HighWaterMark returns the maximum fill level observed.
func (h *Holding) HighWaterMark() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.buf.HighWaterMark()
}

// Dropped returns bytes lost because the holding area was full.
func (h *Holding) Dropped() uint64 {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.dropped
}
