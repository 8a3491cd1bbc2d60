package framework

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the default time between loop iterations.
const DefaultInterval = 10 * time.Millisecond

// DefaultStopTimeout bounds the time given to stoppers.
const DefaultStopTimeout = 30 * time.Second

// Loop runs controllers cooperatively on a single goroutine.
// Each iteration runs all controllers in priority order; a controller
// never runs concurrently with another controller of the same loop.
type Loop struct {
	Interval    time.Duration
	StopTimeout time.Duration

	controllers [PriorityLevels][]Controller
	stoppers    []Stopper
	runners     []Runnable

	wakeUpCh chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once

	runnersErr error
	now        func() time.Time
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopIteration struct {
	*Loop
	ctx           context.Context
	time          time.Time
	priorityLevel int
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{
		Interval:    DefaultInterval,
		StopTimeout: DefaultStopTimeout,
		wakeUpCh:    make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers to the loop.
// Controllers implementing Runnable or Stopper are registered as such.
func (l *Loop) AddController(priorityLevel int, ctls ...Controller) *Loop {
	l.controllers[priorityLevel] = append(l.controllers[priorityLevel], ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
		if stopper, ok := ctl.(Stopper); ok {
			l.stoppers = append(l.stoppers, stopper)
		}
	}
	return l
}

// AddRunnable adds Runnable implementions.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// AddStopper adds Stoppers which are not controllers.
func (l *Loop) AddStopper(stoppers ...Stopper) *Loop {
	l.stoppers = append(l.stoppers, stoppers...)
	return l
}

// RunnersErr returns the aggregated errors of the runnables once Run
// returned. They don't fail the loop.
func (l *Loop) RunnersErr() error {
	return l.runnersErr
}

// Name implements Named.
func (l *Loop) Name() string {
	return "loop"
}

// Run implements Runnable.
// The loop stops when ctx is canceled or RequestStop is called; stoppers
// run in registration order before Run returns. A FatalError from a
// controller ends the loop immediately without running stoppers.
// Runnables keep running until Run returns so stoppers can still rely on
// them.
func (l *Loop) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runner := NewRunnerWith(runCtx)
	defer func() {
		cancel()
		err := runner.Wait()
		if err != nil {
			glog.Warningf("loop runners: %v", err)
		}
		l.runnersErr = err
	}()
	runner.Go(l.runners...)

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		// a stop request wins over a pending tick.
		select {
		case <-l.stopCh:
			glog.V(2).Info("loop stop requested")
			return l.stop(ctx)
		default:
		}
		select {
		case <-ctx.Done():
			glog.V(2).Info("loop canceled, stopping")
			return l.stop(ctx)
		case <-l.stopCh:
			glog.V(2).Info("loop stop requested")
			return l.stop(ctx)
		case <-ticker.C:
		case <-l.wakeUpCh:
		}
		if err := l.RunIteration(ctx); err != nil {
			return err
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
// SIGINT and SIGTERM stop the loop gracefully.
func (l *Loop) RunOrFail() {
	runner := NewRunner().HandleSignals()
	if err := runner.Go(l).Wait(); err != nil {
		log.Fatalln(err)
	}
}

// RunIteration executes all controllers once. It returns the first
// FatalError; other controller errors are logged.
func (l *Loop) RunIteration(ctx context.Context) error {
	iter := &loopIteration{Loop: l, time: l.now()}
	iter.ctx = ctx
	for i := 0; i < PriorityLevels; i++ {
		iter.priorityLevel = i
		for _, ctl := range l.controllers[i] {
			if err := ctl.Control(iter); err != nil {
				if IsFatal(err) {
					glog.Errorf("controller fatal error: %v", err)
					return err
				}
				glog.Errorf("controller error: %v", err)
			}
		}
	}
	return nil
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

// RequestStop implements LoopControl.
func (l *Loop) RequestStop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Loop) stop(ctx context.Context) error {
	timeout := l.StopTimeout
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	var errs AggregatedError
	for _, s := range l.stoppers {
		errs.Add(s.Stop(stopCtx))
	}
	return errs.Aggregate()
}

func (t *loopIteration) Context() context.Context {
	return t.ctx
}

func (t *loopIteration) Time() time.Time {
	return t.time
}

func (t *loopIteration) PriorityLevel() int {
	return t.priorityLevel
}
