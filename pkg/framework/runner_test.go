package framework

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunnerWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.TODO())
	r := NewRunnerWith(ctx)
	failure := errors.New("failure")
	r.Go(
		NamedRun("link", RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return failure
		})),
		RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
		RunFunc(func(ctx context.Context) error {
			return errors.New("early")
		}),
	)
	cancel()
	err := r.Wait()
	require.ErrorIs(t, err, failure)
	var agg *AggregatedError
	require.True(t, errors.As(err, &agg))
	require.Len(t, agg.Errors, 2)
	require.Contains(t, err.Error(), "link: failure")
	require.Contains(t, err.Error(), "runnable#2: early")

	require.NoError(t, NewRunner().Go(RunFunc(func(context.Context) error { return nil })).Wait())
}

func TestRunnerForcedExit(t *testing.T) {
	stopCh := make(chan os.Signal, 2)
	r := NewRunner().stopOn(stopCh)
	release := make(chan struct{})
	defer close(release)
	r.Go(NamedRun("stuck", RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		<-release
		return ctx.Err()
	})))

	stopCh <- os.Interrupt
	select {
	case <-r.Context.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled on first stop")
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- r.Wait() }()
	select {
	case err := <-waitCh:
		t.Fatalf("returned before forced exit: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	stopCh <- os.Interrupt
	select {
	case err := <-waitCh:
		require.ErrorIs(t, err, ErrForcedExit)
	case <-time.After(time.Second):
		t.Fatal("forced exit not observed")
	}
}

type countingCloser struct {
	closes  atomic.Int32
	closeCh chan struct{}
}

func (c *countingCloser) Close() error {
	if c.closes.Add(1) == 1 {
		close(c.closeCh)
	}
	return nil
}

func TestRunWithContextCloser(t *testing.T) {
	closer := &countingCloser{closeCh: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.TODO())
	cancel()
	err := RunWithContextCloser(ctx, closer, func() error {
		<-closer.closeCh
		return errors.New("read on closed conn")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int32(1), closer.closes.Load())

	closer = &countingCloser{closeCh: make(chan struct{})}
	failure := errors.New("eof")
	err = RunWithContextCloser(context.TODO(), closer, func() error { return failure })
	require.ErrorIs(t, err, failure)
	require.Equal(t, int32(1), closer.closes.Load())
}
