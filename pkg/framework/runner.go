package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Runner.Wait after a second stop signal.
var ErrForcedExit = errors.New("forced exit")

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun wraps a Runnable with a name.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

func nameOf(runnable Runnable, index int) string {
	if named, ok := runnable.(Named); ok {
		return named.Name()
	}
	return fmt.Sprintf("runnable#%d", index)
}

type runResult struct {
	name string
	err  error
}

// Runner runs Runnables in goroutines sharing Context and collects their
// errors in Wait.
type Runner struct {
	Context context.Context
	Runners []Runnable

	resultCh chan runResult
	exitCh   chan struct{}
}

// NewRunner creates a Runner on a background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a Runner on ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{
		Context:  ctx,
		resultCh: make(chan runResult, 1),
		exitCh:   make(chan struct{}),
	}
}

// HandleSignals cancels Context on SIGINT or SIGTERM. A second signal
// makes Wait return ErrForcedExit without waiting for the Runnables.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	return r.stopOn(sigCh)
}

func (r *Runner) stopOn(stopCh <-chan os.Signal) *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	r.Context = ctx
	go func() {
		sig := <-stopCh
		glog.Infof("%v: stopping", sig)
		cancel()
		sig = <-stopCh
		glog.Errorf("%v again: forcing exit", sig)
		close(r.exitCh)
	}()
	return r
}

// Go starts Runnables on Context.
func (r *Runner) Go(runnables ...Runnable) *Runner {
	ctx := r.Context
	for _, runnable := range runnables {
		name := nameOf(runnable, len(r.Runners))
		r.Runners = append(r.Runners, runnable)
		go func(runnable Runnable, name string) {
			glog.V(4).Infof("%s started", name)
			err := runnable.Run(ctx)
			glog.V(4).Infof("%s stopped: %v", name, err)
			r.resultCh <- runResult{name: name, err: err}
		}(runnable, name)
	}
	return r
}

// Wait blocks until every Runnable returns. Errors other than
// context.Canceled are prefixed with the runnable name and aggregated.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for range r.Runners {
		select {
		case <-r.exitCh:
			return ErrForcedExit
		case res := <-r.resultCh:
			if res.err != nil && !errors.Is(res.err, context.Canceled) {
				errs.Add(fmt.Errorf("%s: %w", res.name, res.err))
			}
		}
	}
	return errs.Aggregate()
}

// RunWithContextCloser runs fn, which blocks without watching a context,
// and closes closer when ctx is done so fn returns. closer is closed
// exactly once either way. ctx.Err() is returned when canceled.
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
		return ctx.Err()
	}
}
