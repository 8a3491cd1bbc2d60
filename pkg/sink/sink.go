// Package sink provides block sinks and sink decorators.
package sink

import (
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/robotalks/rawlog/pkg/staging"
)

// WriteBlockFunc is func form of staging.Sink.
type WriteBlockFunc func([]byte) error

// WriteBlock implements staging.Sink.
func (f WriteBlockFunc) WriteBlock(p []byte) error {
	return f(p)
}

// Tee writes every block to all sinks concurrently.
// The block fails if any sink fails.
type Tee []staging.Sink

// WriteBlock implements staging.Sink.
func (t Tee) WriteBlock(p []byte) error {
	if len(t) == 1 {
		return t[0].WriteBlock(p)
	}
	var g errgroup.Group
	for _, s := range t {
		s := s
		g.Go(func() error { return s.WriteBlock(p) })
	}
	return g.Wait()
}

// Retry retries failed writes a bounded number of times.
type Retry struct {
	Sink    staging.Sink
	Retries int
	Backoff time.Duration

	retried uint64
}

// WriteBlock implements staging.Sink.
func (r *Retry) WriteBlock(p []byte) error {
	err := r.Sink.WriteBlock(p)
	for attempt := 1; err != nil && attempt <= r.Retries; attempt++ {
		glog.Warningf("block write failed, retry %d/%d: %v", attempt, r.Retries, err)
		r.retried++
		if r.Backoff > 0 {
			time.Sleep(r.Backoff * time.Duration(attempt))
		}
		err = r.Sink.WriteBlock(p)
	}
	return err
}

// Retried returns the number of retries made.
func (r *Retry) Retried() uint64 {
	return r.retried
}

// Delay adds latency to every Every-th write, simulating storage stalls.
type Delay struct {
	Sink    staging.Sink
	Latency time.Duration
	Every   int

	count int
	sleep func(time.Duration)
}

// WriteBlock implements staging.Sink.
func (d *Delay) WriteBlock(p []byte) error {
	d.count++
	if d.Every <= 1 || d.count%d.Every == 0 {
		sleep := d.sleep
		if sleep == nil {
			sleep = time.Sleep
		}
		sleep(d.Latency)
	}
	return d.Sink.WriteBlock(p)
}
