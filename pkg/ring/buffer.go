// Package ring provides the fixed-capacity byte ring used to stage raw
// receiver data between arrival and persistence.
package ring

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCapacity indicates a ring was requested with no storage.
	ErrInvalidCapacity = errors.New("ring: capacity must be positive")
	// ErrUnderflow indicates more bytes were requested than are queued.
	// Callers must check Available first; this is an invariant violation.
	ErrUnderflow = errors.New("ring: extract exceeds available bytes")
)

// PushResult reports how much of an offered slice was queued.
type PushResult struct {
	Accepted int
	Dropped  int
}

// Overflowed indicates part of the offered bytes were discarded.
func (r PushResult) Overflowed() bool {
	return r.Dropped > 0
}

// Buffer is a FIFO byte store with wraparound addressing.
// When full, newly offered bytes are dropped and queued bytes are kept.
// Buffer is not safe for concurrent use.
type Buffer struct {
	buf   []byte
	head  int // next byte to extract
	tail  int // next byte to write
	count int
	hwm   int

	dropped uint64
}

// New creates a Buffer holding at most capacity bytes.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Buffer{buf: make([]byte, capacity)}, nil
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// Available returns the number of queued bytes.
func (b *Buffer) Available() int {
	return b.count
}

// Free returns the number of bytes that can be pushed without loss.
func (b *Buffer) Free() int {
	return len(b.buf) - b.count
}

// HighWaterMark returns the largest fill level ever observed.
func (b *Buffer) HighWaterMark() int {
	return b.hwm
}

// Dropped returns the total bytes discarded by Push since creation.
func (b *Buffer) Dropped() uint64 {
	return b.dropped
}

// Push appends as much of p as fits. Bytes beyond the remaining capacity
// are discarded.
func (b *Buffer) Push(p []byte) (res PushResult) {
	if len(p) == 0 {
		return
	}
	n := len(p)
	if free := b.Free(); n > free {
		res.Dropped = n - free
		b.dropped += uint64(res.Dropped)
		n = free
	}
	res.Accepted = n
	if n == 0 {
		return
	}
	first := copy(b.buf[b.tail:], p[:n])
	if first < n {
		copy(b.buf, p[first:n])
	}
	b.tail = (b.tail + n) % len(b.buf)
	b.count += n
	if b.count > b.hwm {
		b.hwm = b.count
	}
	return
}

// Extract removes exactly n bytes from the front and returns them in a new
// slice. It fails without side effects when n exceeds Available.
func (b *Buffer) Extract(n int) ([]byte, error) {
	if err := b.check(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	b.read(out)
	return out, nil
}

// ExtractInto fills p from the front of the buffer, removing len(p) bytes.
// It fails without side effects when len(p) exceeds Available.
func (b *Buffer) ExtractInto(p []byte) error {
	if err := b.check(len(p)); err != nil {
		return err
	}
	b.read(p)
	return nil
}

// Peek copies up to len(p) queued bytes into p without removing them.
func (b *Buffer) Peek(p []byte) int {
	n := len(p)
	if n > b.count {
		n = b.count
	}
	first := copy(p[:n], b.buf[b.head:])
	if first < n {
		copy(p[first:n], b.buf)
	}
	return n
}

func (b *Buffer) check(n int) error {
	if n < 0 || n > b.count {
		return fmt.Errorf("%w: want %d, have %d", ErrUnderflow, n, b.count)
	}
	return nil
}

func (b *Buffer) read(p []byte) {
	n := len(p)
	if n == 0 {
		return
	}
	first := copy(p, b.buf[b.head:])
	if first < n {
		copy(p[first:], b.buf)
	}
	b.head = (b.head + n) % len(b.buf)
	b.count -= n
}
