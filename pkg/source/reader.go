package source

import (
	"errors"
	"io"
	"sync/atomic"
)

// DefaultChunkSize is the maximum bytes read by a single Poll.
const DefaultChunkSize = 4096

// Reader replays an io.Reader, e.g. a previously captured log file.
// Poll reads synchronously, so the reader must not block for long.
type Reader struct {
	R         io.Reader
	ChunkSize int

	stopped atomic.Bool
	eof     bool
	read    uint64
}

// NewReader creates a Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{R: r, ChunkSize: DefaultChunkSize}
}

// Poll implements staging.Source.
// It returns io.EOF once the underlying reader is exhausted.
func (r *Reader) Poll() ([]byte, error) {
	if r.eof {
		return nil, io.EOF
	}
	if r.stopped.Load() {
		return nil, nil
	}
	size := r.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	buf := make([]byte, size)
	n, err := r.R.Read(buf)
	r.read += uint64(n)
	if errors.Is(err, io.EOF) {
		r.eof = true
	}
	if n == 0 {
		return nil, err
	}
	return buf[:n], err
}

// StopAutoReports implements staging.Source. No further bytes are read.
func (r *Reader) StopAutoReports() error {
	r.stopped.Store(true)
	return nil
}

// BytesRead returns the total bytes consumed from R.
func (r *Reader) BytesRead() uint64 {
	return r.read
}
