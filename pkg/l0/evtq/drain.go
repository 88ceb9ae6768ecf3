package evtq

import (
	"context"

	"github.com/robotalks/pktlink/pkg/framework"
)

// Handler handles dequeued records.
type Handler interface {
	HandleRecord(context.Context, Record) error
}

// HandleRecordFunc is func type of Handler.
type HandleRecordFunc func(context.Context, Record) error

// HandleRecord implements Handler.
func (f HandleRecordFunc) HandleRecord(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Drainer is the consumer side of a Queue as a framework.Controller.
// Each iteration dequeues up to Batch records, 0 means all available.
// If records remain, the next iteration is triggered immediately.
type Drainer struct {
	Queue   *Queue
	Handler Handler
	Batch   int
}

// AddToLoop implements framework.LoopAdder.
func (d *Drainer) AddToLoop(l *framework.Loop) {
	l.AddController(d)
}

// Control implements framework.Controller.
func (d *Drainer) Control(cc framework.ControlContext) error {
	var errs framework.AggregatedError
	for n := 0; d.Batch <= 0 || n < d.Batch; n++ {
		rec := make(Record, d.Queue.Width())
		if !d.Queue.Dequeue(rec) {
			return errs.Aggregate()
		}
		if d.Handler != nil {
			errs.Add(d.Handler.HandleRecord(cc.Context(), rec))
		}
	}
	if d.Queue.Len() > 0 {
		cc.TriggerNext()
	}
	return errs.Aggregate()
}

// Handlers dispatches a record to every handler in order.
type Handlers []Handler

// HandleRecord implements Handler.
func (h Handlers) HandleRecord(ctx context.Context, rec Record) error {
	var errs framework.AggregatedError
	for _, handler := range h {
		errs.Add(handler.HandleRecord(ctx, rec))
	}
	return errs.Aggregate()
}
