package ubx

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/rawlog/pkg/framework"
	"github.com/robotalks/rawlog/pkg/source"
)

// DefaultTimeout is the default inter-byte timeout within a frame.
const DefaultTimeout = 100 * time.Millisecond

const readChunkSize = 1024

// Stats are the receive counters of a Receiver.
type Stats struct {
	Frames         uint64
	Bytes          uint64
	Skipped        uint64
	ChecksumErrors uint64
	Truncated      uint64
	Oversized      uint64
	Dropped        uint64
}

// Receiver reads frames from a receiver port on a background goroutine
// and queues them in its holding area until polled.
type Receiver struct {
	ReadWriter io.ReadWriter
	// Timeout discards a partial frame after a pause in the stream.
	Timeout time.Duration
	// AutoReports are disabled by StopAutoReports.
	AutoReports []MessageID

	holding   *source.Holding
	parser    Parser
	writeLock sync.Mutex
	now       func() time.Time

	frames    atomic.Uint64
	bytes     atomic.Uint64
	skipped   atomic.Uint64
	checksum  atomic.Uint64
	truncated atomic.Uint64
	oversized atomic.Uint64

	lock sync.Mutex
	err  error
	done bool
}

// NewReceiver creates a Receiver.
func NewReceiver(rw io.ReadWriter, holdingSize int) (*Receiver, error) {
	if holdingSize <= 0 {
		holdingSize = source.DefaultHoldingSize
	}
	h, err := source.NewHolding(holdingSize)
	if err != nil {
		return nil, err
	}
	return &Receiver{
		ReadWriter:  rw,
		Timeout:     DefaultTimeout,
		AutoReports: DefaultAutoReports,
		holding:     h,
		now:         time.Now,
	}, nil
}

// Name implements framework.Named.
func (r *Receiver) Name() string {
	return "ubx-receiver"
}

// Run implements framework.Runnable.
func (r *Receiver) Run(ctx context.Context) error {
	r.applyParseResult(r.parser.Reset())
	var err error
	if closer, ok := r.ReadWriter.(io.Closer); ok {
		err = fx.RunWithContextCloser(ctx, closer, r.readLoop)
	} else {
		err = r.readLoop()
	}
	r.lock.Lock()
	r.err, r.done = err, true
	r.lock.Unlock()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (r *Receiver) readLoop() error {
	buf := make([]byte, readChunkSize)
	last := r.now()
	for {
		n, err := r.ReadWriter.Read(buf)
		if n > 0 {
			now := r.now()
			if r.Timeout > 0 && now.Sub(last) > r.Timeout {
				r.applyParseResult(r.parser.Timeout())
			}
			last = now
			for _, b := range buf[:n] {
				r.applyParseResult(r.parser.Parse(b))
			}
		}
		if err != nil {
			return err
		}
	}
}

func (r *Receiver) applyParseResult(pr ParseResult) {
	if pr.Skipped > 0 {
		r.skipped.Add(uint64(pr.Skipped))
	}
	switch {
	case errors.Is(pr.Err, ErrChecksum):
		r.checksum.Add(1)
	case errors.Is(pr.Err, ErrTruncated):
		r.truncated.Add(1)
	case errors.Is(pr.Err, ErrTooLong):
		r.oversized.Add(1)
	}
	if pr.Err != nil {
		glog.V(2).Infof("ubx resync: %v, %d bytes skipped", pr.Err, pr.Skipped)
	}
	if pr.Frame == nil {
		return
	}
	r.frames.Add(1)
	r.bytes.Add(uint64(len(pr.Frame)))
	if glog.V(4) {
		glog.Infof("ubx frame %s, %d bytes", MessageID{pr.Frame[2], pr.Frame[3]}, len(pr.Frame))
	}
	if !r.holding.Offer(pr.Frame) {
		glog.Warningf("holding area full, dropped frame of %d bytes", len(pr.Frame))
	}
}

// Poll implements staging.Source.
func (r *Receiver) Poll() ([]byte, error) {
	if data := r.holding.Drain(); len(data) > 0 {
		return data, nil
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.done {
		return nil, nil
	}
	if errors.Is(r.err, io.EOF) || errors.Is(r.err, context.Canceled) {
		return nil, io.EOF
	}
	return nil, r.err
}

// StopAutoReports implements staging.Source.
// It sets the rate of every auto report message to zero.
func (r *Receiver) StopAutoReports() error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()
	var errs fx.AggregatedError
	for _, msg := range r.AutoReports {
		glog.V(2).Infof("disable auto report %s", msg)
		if _, err := DisableMessage(msg).WriteTo(r.ReadWriter); err != nil {
			errs.Add(err)
		}
	}
	return errs.Aggregate()
}

// Send writes a packet to the receiver.
func (r *Receiver) Send(pkt *Packet) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()
	_, err := pkt.WriteTo(r.ReadWriter)
	return err
}

// Dropped returns bytes lost because the holding area was full.
func (r *Receiver) Dropped() uint64 {
	return r.holding.Dropped()
}

// Stats returns a snapshot of the counters.
func (r *Receiver) Stats() Stats {
	return Stats{
		Frames:         r.frames.Load(),
		Bytes:          r.bytes.Load(),
		Skipped:        r.skipped.Load(),
		ChecksumErrors: r.checksum.Load(),
		Truncated:      r.truncated.Load(),
		Oversized:      r.oversized.Load(),
		Dropped:        r.holding.Dropped(),
	}
}
