package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Runner.Wait after a second stop signal.
var ErrForcedExit = errors.New("forced exit")

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Runner runs Runnables on their own goroutines and collects errors.
type Runner struct {
	Context context.Context

	wg      sync.WaitGroup
	lock    sync.Mutex
	errs    AggregatedError
	count   int
	forceCh chan struct{}
}

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner with a specified context.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{Context: ctx, forceCh: make(chan struct{})}
}

// HandleSignals cancels the context on SIGINT or SIGTERM, which lets the
// loop flush staged bytes. A second signal makes Wait return immediately.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	r.Context = ctx
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		glog.Infof("%v received, flushing", sig)
		cancel()
		sig = <-sigCh
		glog.Errorf("%v received again, exit without flushing", sig)
		close(r.forceCh)
	}()
	return r
}

// Go spawns Runnables with the runner context.
func (r *Runner) Go(runners ...Runnable) *Runner {
	return r.GoWith(r.Context, runners...)
}

// GoWith spawns Runnables with ctx.
func (r *Runner) GoWith(ctx context.Context, runners ...Runnable) *Runner {
	for _, runner := range runners {
		r.lock.Lock()
		name := strconv.Itoa(r.count)
		r.count++
		r.lock.Unlock()
		if named, ok := runner.(Named); ok {
			name = named.Name()
		}
		r.wg.Add(1)
		go r.run(ctx, name, runner)
	}
	return r
}

func (r *Runner) run(ctx context.Context, name string, runner Runnable) {
	defer r.wg.Done()
	glog.V(4).Infof("Runner[%s] started", name)
	err := runner.Run(ctx)
	glog.V(4).Infof("Runner[%s] stopped: %v", name, err)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	r.lock.Lock()
	r.errs.Add(fmt.Errorf("%s: %w", name, err))
	r.lock.Unlock()
}

// Wait waits until all Runnables return and aggregates their errors,
// each prefixed with the runner name. context.Canceled is not an error.
func (r *Runner) Wait() error {
	doneCh := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(doneCh)
	}()
	select {
	case <-doneCh:
	case <-r.forceCh:
		return ErrForcedExit
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.errs.Aggregate()
}

// RunWithContextCloser runs fn which doesn't accept a context, typically a
// blocking read loop on a serial port or socket. closer is closed when ctx
// is canceled to unblock fn, and in any case before returning.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var once sync.Once
	closeOnce := func() {
		once.Do(func() { closer.Close() })
	}
	defer closeOnce()
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		closeOnce()
		<-errCh
		return context.Canceled
	}
}
