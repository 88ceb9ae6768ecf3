package framework

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the polling interval when Loop.Interval is unset.
const DefaultInterval = 100 * time.Millisecond

// Loop polls controllers periodically or when triggered, and runs
// Runnables alongside.
type Loop struct {
	Interval time.Duration

	controllers []Controller
	runners     []Runnable
	iteration   uint64

	wakeUpCh chan struct{}
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopIteration struct {
	*Loop
	ctx  context.Context
	time time.Time
	seq  uint64
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{
		Interval: DefaultInterval,
		wakeUpCh: make(chan struct{}, 1),
	}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers, in polling order. Controllers
// which are also Runnable are started with the loop.
func (l *Loop) AddController(ctls ...Controller) *Loop {
	l.controllers = append(l.controllers, ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementions.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Run implements Runnable. It returns when ctx is done or any runnable
// fails.
func (l *Loop) Run(ctx context.Context) error {
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := NewRunnerWith(ctx)
	for _, r := range l.runners {
		runner.Go(failFast(r, cancel))
	}
	failCh := make(chan error, 1)
	go func() {
		failCh <- runner.Wait()
	}()

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := <-failCh; err != nil {
				return err
			}
			return ctx.Err()
		case <-ticker.C:
			l.runIteration(ctx)
		case <-l.wakeUpCh:
			l.runIteration(ctx)
		}
	}
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

// failFast cancels the loop when runnable fails.
func failFast(runnable Runnable, cancel context.CancelFunc) Runnable {
	fn := RunFunc(func(ctx context.Context) error {
		err := runnable.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			cancel()
		}
		return err
	})
	if named, ok := runnable.(Named); ok {
		return NamedRun(named.Name(), fn)
	}
	return fn
}

func (l *Loop) runIteration(ctx context.Context) {
	l.iteration++
	iter := &loopIteration{Loop: l, ctx: ctx, time: time.Now(), seq: l.iteration}
	for _, ctl := range l.controllers {
		if err := ctl.Control(iter); err != nil {
			glog.Errorf("controller error: %v", err)
		}
	}
}

func (t *loopIteration) Context() context.Context {
	return t.ctx
}

func (t *loopIteration) Time() time.Time {
	return t.time
}

func (t *loopIteration) Iteration() uint64 {
	return t.seq
}
