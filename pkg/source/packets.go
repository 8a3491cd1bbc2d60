package source

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/rawlog/pkg/comm"
	fx "github.com/robotalks/rawlog/pkg/framework"
)

// DefaultHoldingSize is the holding area of sources with a receive goroutine.
const DefaultHoldingSize = 64 * 1024

// Packets receives packets from a comm.PacketReader in the background and
// queues them whole in a Holding.
type Packets struct {
	Reader comm.PacketReader
	// Closer, if set, is closed to unblock Reader on cancel.
	Closer io.Closer

	holding *Holding
	stopped atomic.Bool
	late    atomic.Uint64

	lock sync.Mutex
	err  error
	done bool
}

// NewPackets creates a Packets source.
func NewPackets(r comm.PacketReader, holdingSize int) (*Packets, error) {
	if holdingSize <= 0 {
		holdingSize = DefaultHoldingSize
	}
	h, err := NewHolding(holdingSize)
	if err != nil {
		return nil, err
	}
	p := &Packets{Reader: r, holding: h}
	if closer, ok := r.(io.Closer); ok {
		p.Closer = closer
	}
	return p, nil
}

// Name implements framework.Named.
func (p *Packets) Name() string {
	return "packets"
}

// Run implements framework.Runnable.
func (p *Packets) Run(ctx context.Context) error {
	fn := func() error {
		for {
			pkt, err := p.Reader.ReadPacket()
			if err != nil {
				return err
			}
			if p.stopped.Load() {
				p.late.Add(uint64(len(pkt)))
			}
			if !p.holding.Offer(pkt) {
				glog.Warningf("holding area full, dropped packet of %d bytes", len(pkt))
			}
		}
	}
	var err error
	if p.Closer != nil {
		err = fx.RunWithContextCloser(ctx, p.Closer, fn)
	} else {
		err = fn()
	}
	p.lock.Lock()
	p.err, p.done = err, true
	p.lock.Unlock()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Poll implements staging.Source. Once the reader stopped and all queued
// bytes are returned, io.EOF or the read error is returned.
func (p *Packets) Poll() ([]byte, error) {
	if data := p.holding.Drain(); len(data) > 0 {
		return data, nil
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.done {
		return nil, nil
	}
	if errors.Is(p.err, io.EOF) || errors.Is(p.err, context.Canceled) {
		return nil, io.EOF
	}
	return nil, p.err
}

// StopAutoReports implements staging.Source.
// The remote end can't be told to stop, so packets still in flight are
// queued as usual and picked up by the final poll.
func (p *Packets) StopAutoReports() error {
	p.stopped.Store(true)
	return nil
}

// Dropped returns bytes lost because the holding area was full.
func (p *Packets) Dropped() uint64 {
	return p.holding.Dropped()
}

// Late returns bytes received after StopAutoReports.
func (p *Packets) Late() uint64 {
	return p.late.Load()
}
