// Package buttons turns input device buttons into EvtButtonInput events.
package buttons

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/pktlink/pkg/framework"
	"github.com/robotalks/pktlink/pkg/l0/evtq"
)

// Source defaults.
const (
	DefaultRetryInterval = time.Second
	DefaultExpireTick    = 20 * time.Millisecond
)

// Source reads a device and enqueues click records. It is the single
// producer of Queue.
type Source struct {
	Open          func() (Device, error)
	Queue         *evtq.Queue
	Notify        func()
	Handler       evtq.Handler
	Clicker       *Clicker
	RetryInterval time.Duration
	ExpireTick    time.Duration
}

// NewSource creates a Source on device index, a negative index detects the
// first available device.
func NewSource(index int, queue *evtq.Queue) *Source {
	s := &Source{
		Queue:         queue,
		Clicker:       NewClicker(),
		RetryInterval: DefaultRetryInterval,
		ExpireTick:    DefaultExpireTick,
	}
	if index < 0 {
		s.Open = func() (Device, error) { return Detect(0) }
	} else {
		s.Open = func() (Device, error) { return Open(index) }
	}
	return s
}

// AddToLoop implements framework.LoopAdder. Queue is drained into Handler
// and Notify triggers the loop unless already set.
func (s *Source) AddToLoop(l *framework.Loop) {
	if s.Notify == nil {
		s.Notify = l.TriggerNext
	}
	l.AddRunnable(framework.NamedRun("buttons", s))
	l.AddController(&evtq.Drainer{Queue: s.Queue, Handler: s.Handler})
}

// Run implements framework.Runnable. The device is reopened after errors.
func (s *Source) Run(ctx context.Context) error {
	for {
		dev, err := s.Open()
		if err == nil {
			glog.Infof("input device %d %q opened, %d buttons", dev.Index(), dev.Name(), dev.ButtonCount())
			err = s.runDevice(ctx, dev)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			glog.Warningf("input device %d: %v", dev.Index(), err)
		} else if !errors.Is(err, ErrNoDevice) {
			glog.Warningf("open input device: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.RetryInterval):
		}
	}
}

func (s *Source) runDevice(ctx context.Context, dev Device) error {
	defer dev.Close()
	evCh := make(chan Event)
	errCh := make(chan error, 1)
	go func() {
		for {
			ev, err := dev.ReadEvent()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case evCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	ticker := time.NewTicker(s.ExpireTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case ev := <-evCh:
			glog.V(4).Infof("button %d pressed=%v init=%v", ev.Button, ev.Pressed, ev.Init)
			s.emit(s.Clicker.Feed(ev, time.Now()))
		case t := <-ticker.C:
			s.emit(s.Clicker.Expire(t))
		}
	}
}

func (s *Source) emit(clicks []Click) {
	if len(clicks) == 0 {
		return
	}
	for _, click := range clicks {
		glog.V(2).Infof("button %d click 0x%02x", click.Button, click.Type)
		if !s.Queue.Enqueue(click.Record()) {
			glog.Warningf("event queue full, button %d click dropped", click.Button)
		}
	}
	if s.Notify != nil {
		s.Notify()
	}
}
