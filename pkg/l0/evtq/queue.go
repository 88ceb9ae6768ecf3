// Package evtq provides the fixed-capacity event ring used to hand decoded
// records from a producer context to a consumer loop.
package evtq

import (
	"errors"
	"fmt"
	"sync/atomic"
)

const (
	// DefaultDepth is the number of slots, one of which stays free.
	DefaultDepth = 8
	// DefaultWidth is the size of each slot in bytes.
	DefaultWidth = 16
)

var (
	// ErrQueueFull indicates a record was dropped by Enqueue.
	ErrQueueFull = errors.New("event queue full")
	// ErrQueueEmpty indicates no record is available.
	ErrQueueEmpty = errors.New("event queue empty")
)

// Queue is a ring of fixed-width slots.
//
// head is only written by the producer and tail only by the consumer, so
// one goroutine may Enqueue while another Dequeues without locking.
// A full queue keeps one slot free to tell it apart from an empty one.
type Queue struct {
	depth uint32
	width int
	buf   []byte
	head  atomic.Uint32
	tail  atomic.Uint32
}

// New creates a Queue with depth slots of width bytes.
func New(depth, width int) (*Queue, error) {
	if depth < 2 || depth > 0xffff {
		return nil, fmt.Errorf("invalid queue depth %d", depth)
	}
	if width < 1 {
		return nil, fmt.Errorf("invalid queue width %d", width)
	}
	return &Queue{
		depth: uint32(depth),
		width: width,
		buf:   make([]byte, depth*width),
	}, nil
}

// NewDefault creates a Queue with DefaultDepth and DefaultWidth.
func NewDefault() *Queue {
	q, err := New(DefaultDepth, DefaultWidth)
	if err != nil {
		panic(err)
	}
	return q
}

// Width returns the slot width.
func (q *Queue) Width() int {
	return q.width
}

// Cap returns how many records fit at once.
func (q *Queue) Cap() int {
	return int(q.depth) - 1
}

// Len returns a snapshot of the number of queued records.
func (q *Queue) Len() int {
	h, t := q.head.Load(), q.tail.Load()
	return int((h + q.depth - t) % q.depth)
}

func (q *Queue) slot(i uint32) []byte {
	off := int(i) * q.width
	return q.buf[off : off+q.width]
}

// Enqueue copies rec into the next slot. Records shorter than the width
// are zero padded, longer ones truncated. It returns false without
// storing anything when the queue is full.
// Only the producer may call Enqueue.
func (q *Queue) Enqueue(rec []byte) bool {
	h := q.head.Load()
	next := (h + 1) % q.depth
	if next == q.tail.Load() {
		return false
	}
	s := q.slot(h)
	n := copy(s, rec)
	for i := n; i < len(s); i++ {
		s[i] = 0
	}
	q.head.Store(next)
	return true
}

// Dequeue copies the oldest record into rec, which should be at least
// Width bytes. It returns false when the queue is empty.
// Only the consumer may call Dequeue.
func (q *Queue) Dequeue(rec []byte) bool {
	t := q.tail.Load()
	if t == q.head.Load() {
		return false
	}
	copy(rec, q.slot(t))
	q.tail.Store((t + 1) % q.depth)
	return true
}

// Put is Enqueue returning ErrQueueFull.
func (q *Queue) Put(rec []byte) error {
	if !q.Enqueue(rec) {
		return ErrQueueFull
	}
	return nil
}

// Get dequeues into a new Record or returns ErrQueueEmpty.
func (q *Queue) Get() (Record, error) {
	rec := make(Record, q.width)
	if !q.Dequeue(rec) {
		return nil, ErrQueueEmpty
	}
	return rec, nil
}

// Init empties the queue without clearing slot memory.
// It must not race with Enqueue or Dequeue.
func (q *Queue) Init() {
	q.head.Store(0)
	q.tail.Store(0)
}
