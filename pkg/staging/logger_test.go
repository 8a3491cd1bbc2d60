package staging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/rawlog/pkg/framework"
	"github.com/robotalks/rawlog/pkg/ring"
)

type trace []string

func (t *trace) add(s string) {
	if t != nil {
		*t = append(*t, s)
	}
}

type fakeSource struct {
	trace   *trace
	chunks  [][]byte
	err     error
	stopped bool
	stopErr error
}

func (s *fakeSource) feed(p []byte) {
	s.chunks = append(s.chunks, p)
}

func (s *fakeSource) Poll() ([]byte, error) {
	s.trace.add("poll")
	if len(s.chunks) == 0 {
		return nil, s.err
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *fakeSource) StopAutoReports() error {
	s.trace.add("stop")
	s.stopped = true
	return s.stopErr
}

type fakeSink struct {
	trace   *trace
	blocks  [][]byte
	err     error
	onWrite func(n int)
}

func (s *fakeSink) WriteBlock(p []byte) error {
	s.trace.add("write")
	if s.err != nil {
		return s.err
	}
	s.blocks = append(s.blocks, append([]byte(nil), p...))
	if s.onWrite != nil {
		s.onWrite(len(p))
	}
	return nil
}

func (s *fakeSink) sizes() []int {
	sizes := make([]int, len(s.blocks))
	for n, b := range s.blocks {
		sizes[n] = len(b)
	}
	return sizes
}

func (s *fakeSink) data() []byte {
	return bytes.Join(s.blocks, nil)
}

type eventLog struct {
	events []*Event
}

func (e *eventLog) Report(ev *Event) {
	e.events = append(e.events, ev)
}

func (e *eventLog) kinds() []EventKind {
	kinds := make([]EventKind, len(e.events))
	for n, ev := range e.events {
		kinds[n] = ev.Kind
	}
	return kinds
}

func seq(n, start int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte((start + i) % 251)
	}
	return p
}

func testConfig(capacity, blockSize int) Config {
	cfg := DefaultConfig()
	cfg.Capacity = capacity
	cfg.BlockSize = blockSize
	cfg.GraceInterval = 0
	return cfg
}

func newTestLogger(t *testing.T, cfg Config, src *fakeSource, sink *fakeSink, opts ...Option) (*Logger, *eventLog) {
	events := &eventLog{}
	l, err := New(cfg, src, sink, append([]Option{WithReporter(events), WithRunID("test")}, opts...)...)
	require.NoError(t, err)
	return l, events
}

func TestNewInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Config)
	}{
		{"zero capacity", func(c *Config) { c.Capacity = 0 }},
		{"zero block", func(c *Config) { c.BlockSize = 0 }},
		{"block exceeds capacity", func(c *Config) { c.BlockSize = c.Capacity + 1 }},
		{"zero interval", func(c *Config) { c.ReportInterval = 0 }},
		{"fraction above one", func(c *Config) { c.HighWaterFraction = 1.5 }},
		{"negative grace", func(c *Config) { c.GraceInterval = -time.Second }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mod(&cfg)
			_, err := New(cfg, &fakeSource{}, &fakeSink{})
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
	_, err := New(DefaultConfig(), nil, &fakeSink{})
	require.Error(t, err)
}

func TestDrainSingleBlock(t *testing.T) {
	src, sink := &fakeSource{}, &fakeSink{}
	l, _ := newTestLogger(t, testConfig(1024, 512), src, sink)
	src.feed(seq(600, 0))

	require.NoError(t, l.Ingest())
	require.Equal(t, 600, l.Available())
	require.NoError(t, l.Drain())
	require.Equal(t, []int{512}, sink.sizes())
	require.Equal(t, seq(512, 0), sink.blocks[0])
	require.EqualValues(t, 512, l.Committed())
	require.Equal(t, 88, l.Available())
	require.Equal(t, StateRunning, l.State())
}

func TestIngestOverflow(t *testing.T) {
	src, sink := &fakeSource{}, &fakeSink{}
	l, events := newTestLogger(t, testConfig(512, 512), src, sink)
	src.feed(seq(700, 0))

	require.NoError(t, l.Ingest())
	require.Equal(t, 512, l.Available())
	require.EqualValues(t, 188, l.Dropped())
	require.Equal(t, []EventKind{EventOverflow}, events.kinds())
	require.Equal(t, 188, events.events[0].Dropped)
	require.True(t, events.events[0].Kind.IsWarning())

	require.NoError(t, l.Drain())
	require.Equal(t, seq(512, 0), sink.data())
}

func TestFlushResidual(t *testing.T) {
	var tr trace
	src, sink := &fakeSource{trace: &tr}, &fakeSink{trace: &tr}
	l, events := newTestLogger(t, testConfig(1024, 512), src, sink)
	src.feed(seq(300, 0))
	require.NoError(t, l.Ingest())
	require.NoError(t, l.Drain())
	require.Empty(t, sink.blocks)

	require.NoError(t, l.Flush(context.Background()))
	require.True(t, src.stopped)
	require.Equal(t, []int{300}, sink.sizes())
	require.EqualValues(t, 300, l.Committed())
	require.Equal(t, 0, l.Available())
	require.Equal(t, StateStopped, l.State())
	require.Equal(t, []string{"poll", "stop", "poll", "write"}, []string(tr))

	last := events.events[len(events.events)-1]
	require.Equal(t, EventStopped, last.Kind)
	require.EqualValues(t, 300, last.Committed)
	require.Equal(t, 300, last.HighWaterMark)
	require.EqualValues(t, 1, last.Blocks)

	require.ErrorIs(t, l.Flush(context.Background()), ErrStopped)
	require.ErrorIs(t, l.Ingest(), ErrStopped)
	require.ErrorIs(t, l.Drain(), ErrStopped)
	require.NoError(t, l.Stop(context.Background()))
}

func TestFlushIngestsInFlightBytes(t *testing.T) {
	src, sink := &fakeSource{}, &fakeSink{}
	l, _ := newTestLogger(t, testConfig(2048, 512), src, sink)
	src.feed(seq(100, 0))
	require.NoError(t, l.Ingest())
	// arrives during the grace interval
	src.feed(seq(1100, 100))

	require.NoError(t, l.Flush(context.Background()))
	require.Equal(t, []int{512, 512, 176}, sink.sizes())
	require.Equal(t, seq(1200, 0), sink.data())
}

func TestFlushGraceCanceled(t *testing.T) {
	src, sink := &fakeSource{stopErr: errors.New("no ack")}, &fakeSink{}
	cfg := testConfig(1024, 512)
	cfg.GraceInterval = time.Hour
	l, _ := newTestLogger(t, cfg, src, sink)
	src.feed(seq(10, 0))
	require.NoError(t, l.Ingest())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, l.Flush(ctx))
	require.Equal(t, []int{10}, sink.sizes())
	require.Equal(t, StateStopped, l.State())
}

func TestDrainIngestsBeforeEveryBlock(t *testing.T) {
	var tr trace
	src, sink := &fakeSource{trace: &tr}, &fakeSink{trace: &tr}
	l, events := newTestLogger(t, testConfig(1024, 256), src, sink)
	src.feed(seq(800, 0))
	require.NoError(t, l.Ingest())

	// bytes keep arriving while the sink stalls, up to the free space
	// at drain start.
	arrivals := []int{100, 100, 24}
	offset := 800
	sink.onWrite = func(int) {
		if len(arrivals) == 0 {
			return
		}
		src.feed(seq(arrivals[0], offset))
		offset += arrivals[0]
		arrivals = arrivals[1:]
	}

	require.NoError(t, l.Drain())
	require.Empty(t, events.events)
	require.Zero(t, l.Dropped())
	require.Less(t, l.Available(), 256)
	require.Equal(t, []string{
		"poll",
		"poll", "write",
		"poll", "write",
		"poll", "write",
	}, []string(tr))
	require.EqualValues(t, 768, l.Committed())
	require.Equal(t, seq(768, 0), sink.data())

	require.NoError(t, l.Flush(context.Background()))
	require.Equal(t, seq(1024, 0), sink.data())
	require.Zero(t, l.Dropped())
}

func TestDrainLeavesLessThanBlock(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	src, sink := &fakeSource{}, &fakeSink{}
	l, _ := newTestLogger(t, testConfig(4096, 512), src, sink)
	var pushed int
	for i := 0; i < 200; i++ {
		n := rnd.Intn(1500)
		src.feed(seq(n, pushed))
		pushed += n
		require.NoError(t, l.Ingest())
		require.NoError(t, l.Drain())
		require.Less(t, l.Available(), 512)
	}
	require.Zero(t, l.Dropped())
	require.NoError(t, l.Flush(context.Background()))
	require.EqualValues(t, pushed, l.Committed())
	require.Equal(t, seq(pushed, 0), sink.data())
}

func TestSinkFailureIsFatal(t *testing.T) {
	boom := errors.New("card removed")
	src, sink := &fakeSource{}, &fakeSink{err: boom}
	l, events := newTestLogger(t, testConfig(1024, 512), src, sink)
	src.feed(seq(600, 0))
	require.NoError(t, l.Ingest())

	err := l.Drain()
	require.True(t, fx.IsFatal(err))
	require.ErrorIs(t, err, boom)
	var sinkErr *SinkError
	require.ErrorAs(t, err, &sinkErr)
	require.Equal(t, 512, sinkErr.Size)

	require.Equal(t, StateFailed, l.State())
	require.ErrorIs(t, l.Err(), boom)
	require.Equal(t, []EventKind{EventFailed}, events.kinds())
	require.ErrorIs(t, events.events[0].Err, boom)
	require.Zero(t, l.Committed())

	require.ErrorIs(t, l.Ingest(), ErrStopped)
	require.ErrorIs(t, l.Flush(context.Background()), boom)
}

func TestSourceFailureIsFatal(t *testing.T) {
	boom := errors.New("port closed")
	src, sink := &fakeSource{err: boom}, &fakeSink{}
	l, _ := newTestLogger(t, testConfig(1024, 512), src, sink)
	err := l.Ingest()
	require.True(t, fx.IsFatal(err))
	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	require.Equal(t, StateFailed, l.State())
}

func TestUnderflowIsFatal(t *testing.T) {
	l, _ := newTestLogger(t, testConfig(1024, 512), &fakeSource{}, &fakeSink{})
	err := l.commit(10)
	require.True(t, fx.IsFatal(err))
	require.ErrorIs(t, err, ring.ErrUnderflow)
	require.Equal(t, StateFailed, l.State())
}

func TestStepReports(t *testing.T) {
	src, sink := &fakeSource{}, &fakeSink{}
	cfg := testConfig(1024, 512)
	cfg.HighWaterFraction = 0.5
	l, events := newTestLogger(t, cfg, src, sink)
	t0 := time.Unix(1000, 0)

	l.Step(t0)
	require.Empty(t, events.events)

	src.feed(seq(600, 0))
	require.NoError(t, l.Ingest())
	require.NoError(t, l.Drain())
	l.Step(t0.Add(500 * time.Millisecond))
	require.Empty(t, events.events)

	l.Step(t0.Add(time.Second))
	require.Equal(t, []EventKind{EventProgress, EventHighWater}, events.kinds())
	ev := events.events[1]
	require.Equal(t, 600, ev.HighWaterMark)
	require.Equal(t, 512, ev.Threshold)
	require.EqualValues(t, 512, ev.Committed)
	require.Equal(t, "test", ev.RunID)

	l.Step(t0.Add(2 * time.Second))
	require.Equal(t, []EventKind{EventProgress, EventHighWater, EventProgress}, events.kinds())
}

type observation struct {
	blocks  int
	dropped int
	states  []State
}

func (o *observation) ObserveRing(int, int, int)       {}
func (o *observation) ObserveBlock(int, time.Duration) { o.blocks++ }
func (o *observation) ObserveDropped(n int)            { o.dropped += n }
func (o *observation) ObserveState(s State)            { o.states = append(o.states, s) }

func TestObserver(t *testing.T) {
	obs := &observation{}
	src, sink := &fakeSource{}, &fakeSink{}
	l, _ := newTestLogger(t, testConfig(1024, 256), src, sink, WithObserver(obs))
	src.feed(seq(1100, 0))
	require.NoError(t, l.Ingest())
	require.NoError(t, l.Drain())
	require.NoError(t, l.Flush(context.Background()))
	require.Equal(t, 4, obs.blocks)
	require.Equal(t, 76, obs.dropped)
	require.Equal(t, []State{StateDraining, StateStopped}, obs.states)
}

func TestLoopRunsUntilSourceExhausted(t *testing.T) {
	src, sink := &fakeSource{err: io.EOF}, &fakeSink{}
	l, events := newTestLogger(t, testConfig(2048, 512), src, sink)
	src.feed(seq(700, 0))
	src.feed(seq(600, 700))

	loop := fx.NewLoop()
	loop.Interval = time.Millisecond
	loop.Add(l)
	require.NoError(t, loop.Run(context.Background()))

	require.False(t, src.stopped)
	require.Equal(t, StateStopped, l.State())
	require.Equal(t, []int{512, 512, 276}, sink.sizes())
	require.Equal(t, seq(1300, 0), sink.data())
	require.Equal(t, EventStopped, events.events[len(events.events)-1].Kind)
}

func TestLoopStopsOnSinkFailure(t *testing.T) {
	boom := errors.New("io error")
	src, sink := &fakeSource{}, &fakeSink{err: boom}
	l, _ := newTestLogger(t, testConfig(1024, 512), src, sink)
	src.feed(seq(512, 0))

	loop := fx.NewLoop()
	loop.Interval = time.Millisecond
	loop.Add(l)
	err := loop.Run(context.Background())
	require.True(t, fx.IsFatal(err))
	require.ErrorIs(t, err, boom)
	require.False(t, src.stopped)
	require.Equal(t, StateFailed, l.State())
}

func TestWriteStats(t *testing.T) {
	s := NewWriteStats()
	require.Zero(t, s.Quantile(0.5))
	for i := 1; i <= 100; i++ {
		s.Add(time.Duration(i) * time.Millisecond)
	}
	require.EqualValues(t, 100, s.Count())
	require.Equal(t, 100*time.Millisecond, s.Max())
	require.InDelta(t, float64(50*time.Millisecond), float64(s.Quantile(0.5)), float64(2*time.Millisecond))
	require.InDelta(t, float64(99*time.Millisecond), float64(s.Quantile(0.99)), float64(3*time.Millisecond))
}

func TestEventKindNames(t *testing.T) {
	for _, k := range []EventKind{EventProgress, EventOverflow, EventHighWater, EventStopped, EventFailed} {
		parsed, ok := ParseEventKind(k.String())
		require.True(t, ok)
		require.Equal(t, k, parsed)
	}
	_, ok := ParseEventKind("bogus")
	require.False(t, ok)
	require.False(t, EventProgress.IsWarning())
	require.True(t, EventHighWater.IsWarning())
}
