package staging

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	fx "github.com/robotalks/rawlog/pkg/framework"
	"github.com/robotalks/rawlog/pkg/ring"
)

// Logger stages bytes from a Source into a ring buffer and commits them
// to a Sink in fixed size blocks.
// It is not safe for concurrent use. All operations are expected to be
// invoked from a single control loop.
type Logger struct {
	cfg      Config
	ring     *ring.Buffer
	src      Source
	sink     Sink
	reporter Reporter
	observer Observer
	monitor  *Monitor
	stats    *WriteStats
	now      func() time.Time
	runID    string

	block     []byte
	committed uint64
	state     State
	err       error
	exhausted bool
}

// Option customizes a Logger.
type Option func(*Logger)

// WithReporter sets the reporting channel.
func WithReporter(r Reporter) Option {
	return func(l *Logger) { l.reporter = r }
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(l *Logger) { l.observer = o }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(l *Logger) { l.runID = id }
}

// New creates a Logger in running state.
func New(cfg Config, src Source, sink Sink, opts ...Option) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil || sink == nil {
		return nil, errors.New("source and sink are required")
	}
	buf, err := ring.New(cfg.Capacity)
	if err != nil {
		return nil, err
	}
	l := &Logger{
		cfg:      cfg,
		ring:     buf,
		src:      src,
		sink:     sink,
		reporter: ReportFunc(func(*Event) {}),
		observer: nopObserver{},
		monitor:  NewMonitor(cfg.ReportInterval, int(float64(cfg.Capacity)*cfg.HighWaterFraction)),
		stats:    NewWriteStats(),
		now:      time.Now,
		runID:    uuid.New().String(),
		block:    make([]byte, cfg.BlockSize),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// RunID identifies this logging session in reports.
func (l *Logger) RunID() string {
	return l.runID
}

// Config returns the configuration.
func (l *Logger) Config() Config {
	return l.cfg
}

// Committed returns the cumulative bytes written to the sink.
func (l *Logger) Committed() uint64 {
	return l.committed
}

// Available returns the bytes queued in the ring.
func (l *Logger) Available() int {
	return l.ring.Available()
}

// HighWaterMark returns the ring high-water mark.
func (l *Logger) HighWaterMark() int {
	return l.ring.HighWaterMark()
}

// Dropped returns the total bytes lost to overflow.
func (l *Logger) Dropped() uint64 {
	return l.ring.Dropped()
}

// State returns the lifecycle state.
func (l *Logger) State() State {
	return l.state
}

// Err returns the error which failed the Logger.
func (l *Logger) Err() error {
	return l.err
}

// Exhausted indicates the source reported end of data.
func (l *Logger) Exhausted() bool {
	return l.exhausted
}

// Stats returns the sink write latency statistics.
func (l *Logger) Stats() *WriteStats {
	return l.stats
}

// Ingest performs a single poll of the source and pushes the bytes into
// the ring. Overflow is reported and is not an error.
func (l *Logger) Ingest() error {
	if l.state.IsTerminal() {
		return ErrStopped
	}
	if l.exhausted {
		return nil
	}
	data, err := l.src.Poll()
	if len(data) > 0 {
		l.push(data)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			glog.Infof("source exhausted")
			l.exhausted = true
			return nil
		}
		return l.fail(&SourceError{Err: err})
	}
	return nil
}

func (l *Logger) push(data []byte) {
	res := l.ring.Push(data)
	l.observer.ObserveRing(l.ring.Available(), l.ring.HighWaterMark(), l.ring.Cap())
	if !res.Overflowed() {
		return
	}
	glog.Warningf("ring overflow: dropped %d of %d bytes", res.Dropped, len(data))
	l.observer.ObserveDropped(res.Dropped)
	ev := l.event(EventOverflow)
	ev.Dropped = res.Dropped
	l.reporter.Report(ev)
}

// Drain commits blocks of exactly BlockSize bytes while enough bytes are
// queued. Ingest is invoked before every extraction so the source keeps
// being drained during slow writes. On return Available() < BlockSize
// unless an error occurred.
func (l *Logger) Drain() error {
	if l.state.IsTerminal() {
		return ErrStopped
	}
	for l.ring.Available() >= l.cfg.BlockSize {
		if err := l.Ingest(); err != nil {
			return err
		}
		if err := l.commit(l.cfg.BlockSize); err != nil {
			return err
		}
	}
	return nil
}

func (l *Logger) commit(n int) error {
	block := l.block[:n]
	if err := l.ring.ExtractInto(block); err != nil {
		return l.fail(err)
	}
	start := l.now()
	err := l.sink.WriteBlock(block)
	elapsed := l.now().Sub(start)
	if err != nil {
		return l.fail(&SinkError{Size: n, Err: err})
	}
	l.committed += uint64(n)
	l.stats.Add(elapsed)
	l.observer.ObserveBlock(n, elapsed)
	l.observer.ObserveRing(l.ring.Available(), l.ring.HighWaterMark(), l.ring.Cap())
	glog.V(3).Infof("committed %d bytes in %v", n, elapsed)
	return nil
}

// Step runs the periodic reporting at time now.
func (l *Logger) Step(now time.Time) {
	report, warn := l.monitor.Check(now, l.ring.HighWaterMark())
	if report {
		l.reporter.Report(l.event(EventProgress))
	}
	if warn {
		glog.Warningf("high-water mark %d exceeds %d of capacity %d",
			l.ring.HighWaterMark(), l.monitor.Threshold(), l.ring.Cap())
		l.reporter.Report(l.event(EventHighWater))
	}
}

// Flush stops the source, waits the grace interval, ingests once more
// and commits everything left including a final partial block.
// It may only be called once, from running state. Canceling ctx shortens
// the grace interval but the residual bytes are still committed.
func (l *Logger) Flush(ctx context.Context) error {
	switch l.state {
	case StateFailed:
		return l.err
	case StateRunning:
	default:
		return ErrStopped
	}
	l.setState(StateDraining)
	glog.Infof("flushing, %d bytes queued", l.ring.Available())

	if !l.exhausted {
		if err := l.src.StopAutoReports(); err != nil {
			glog.Warningf("stop auto reports: %v", err)
		}
		if l.cfg.GraceInterval > 0 {
			timer := time.NewTimer(l.cfg.GraceInterval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				glog.Warningf("grace interval cut short: %v", ctx.Err())
			}
		}
		if err := l.Ingest(); err != nil {
			return err
		}
	}

	for avail := l.ring.Available(); avail > 0; avail = l.ring.Available() {
		n := avail
		if n > l.cfg.BlockSize {
			n = l.cfg.BlockSize
		}
		if err := l.commit(n); err != nil {
			return err
		}
	}

	l.setState(StateStopped)
	glog.Infof("stopped: committed %d bytes, high-water mark %d of %d",
		l.committed, l.ring.HighWaterMark(), l.ring.Cap())
	l.reporter.Report(l.event(EventStopped))
	return nil
}

// Control implements framework.Controller.
// A single iteration ingests, drains and reports. When the source is
// exhausted, a stop is requested so the loop runs Flush.
func (l *Logger) Control(cc fx.ControlContext) error {
	if l.state != StateRunning {
		return nil
	}
	if err := l.Ingest(); err != nil {
		return err
	}
	if err := l.Drain(); err != nil {
		return err
	}
	l.Step(cc.Time())
	if l.exhausted {
		cc.RequestStop()
	}
	return nil
}

// Stop implements framework.Stopper.
func (l *Logger) Stop(ctx context.Context) error {
	if l.state == StateStopped {
		return nil
	}
	return l.Flush(ctx)
}

// AddToLoop implements framework.LoopAdder.
// A source implementing framework.Runnable is run by the loop.
func (l *Logger) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvDrain, l)
	if r, ok := l.src.(fx.Runnable); ok {
		loop.AddRunnable(r)
	}
	if r, ok := l.sink.(fx.Runnable); ok {
		loop.AddRunnable(r)
	}
	if r, ok := l.reporter.(fx.Runnable); ok {
		loop.AddRunnable(r)
	}
}

func (l *Logger) fail(err error) error {
	if l.state == StateFailed {
		return fx.Fatal(l.err)
	}
	l.err = err
	l.setState(StateFailed)
	glog.Errorf("logger failed: %v", err)
	ev := l.event(EventFailed)
	ev.Err = err
	l.reporter.Report(ev)
	return fx.Fatal(err)
}

func (l *Logger) setState(s State) {
	l.state = s
	l.observer.ObserveState(s)
}

func (l *Logger) event(kind EventKind) *Event {
	ev := &Event{
		Kind:          kind,
		RunID:         l.runID,
		Time:          l.now(),
		Committed:     l.committed,
		Available:     l.ring.Available(),
		HighWaterMark: l.ring.HighWaterMark(),
		Capacity:      l.ring.Cap(),
		Threshold:     l.monitor.Threshold(),
	}
	l.stats.fill(ev)
	return ev
}

type nopObserver struct{}

func (nopObserver) ObserveRing(int, int, int)       {}
func (nopObserver) ObserveBlock(int, time.Duration) {}
func (nopObserver) ObserveDropped(int)              {}
func (nopObserver) ObserveState(State)              {}
