package comm

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

// Client provides client side operations over Link.
//
// Requests are acknowledged in order: every ACK or NAK received completes
// the oldest pending request. The Client never re-sends a request; the
// caller's context bounds how long a request waits.
type Client struct {
	link      *Link
	payloadCh chan []byte
	controlCh chan ControlKind
	errCh     chan error

	reqsHead *Request
	reqsTail *Request
	reqsLock sync.Mutex
}

// Request represents a sent frame waiting for ACK or NAK.
type Request struct {
	resultCh chan error
	next     *Request
}

// ResultChan returns the chan to retrieve result: nil on ACK, ErrNak on
// NAK or ErrClosed when the link stopped.
func (r *Request) ResultChan() <-chan error {
	return r.resultCh
}

// DefaultClientChanSize is the buffer size of Client chans.
const DefaultClientChanSize = 16

// NewClient creates client and wraps the link.
func NewClient(link *Link) *Client {
	c := &Client{
		link:      link,
		payloadCh: make(chan []byte, DefaultClientChanSize),
		controlCh: make(chan ControlKind, DefaultClientChanSize),
		errCh:     make(chan error, DefaultClientChanSize),
	}
	c.link.Handler = c
	return c
}

// Link gets wrapped Link.
func (c *Client) Link() *Link {
	return c.link
}

// PayloadChan retrieves received packet payloads.
func (c *Client) PayloadChan() <-chan []byte {
	return c.payloadCh
}

// ControlChan retrieves received control messages, including the ACK/NAK
// consumed by pending requests.
func (c *Client) ControlChan() <-chan ControlKind {
	return c.controlCh
}

// ErrorChan retrieves decode errors as *DecodeError.
func (c *Client) ErrorChan() <-chan error {
	return c.errCh
}

// Send sends a command packet without waiting for reply.
func (c *Client) Send(pkt *Packet) error {
	return c.link.SendPacket(pkt)
}

// Start sends a command packet and returns a Request for its result.
func (c *Client) Start(pkt *Packet) *Request {
	return c.startWith(func() error { return c.link.SendPacket(pkt) })
}

// StartPayload sends a plain frame and returns a Request for its result.
func (c *Client) StartPayload(payload []byte) *Request {
	return c.startWith(func() error { return c.link.SendPayload(payload) })
}

// Do sends a command packet and waits for the reply.
func (c *Client) Do(ctx context.Context, pkt *Packet) error {
	return c.wait(ctx, c.Start(pkt))
}

// DoPayload sends a plain frame and waits for the reply.
func (c *Client) DoPayload(ctx context.Context, payload []byte) error {
	return c.wait(ctx, c.StartPayload(payload))
}

func (c *Client) startWith(send func() error) *Request {
	req := &Request{resultCh: make(chan error, 1)}

	c.reqsLock.Lock()
	defer c.reqsLock.Unlock()
	if err := send(); err != nil {
		req.resultCh <- err
		return req
	}
	if c.reqsHead == nil {
		c.reqsHead = req
	} else {
		c.reqsTail.next = req
	}
	c.reqsTail = req
	return req
}

func (c *Client) wait(ctx context.Context, req *Request) error {
	select {
	case err := <-req.resultCh:
		return err
	case <-ctx.Done():
		c.remove(req)
		return ctx.Err()
	}
}

func (c *Client) remove(req *Request) {
	c.reqsLock.Lock()
	defer c.reqsLock.Unlock()
	var prev *Request
	for curr := c.reqsHead; curr != nil; prev, curr = curr, curr.next {
		if curr != req {
			continue
		}
		if prev == nil {
			c.reqsHead = curr.next
		} else {
			prev.next = curr.next
		}
		if c.reqsTail == curr {
			c.reqsTail = prev
		}
		curr.next = nil
		return
	}
}

func (c *Client) popRequest() *Request {
	c.reqsLock.Lock()
	defer c.reqsLock.Unlock()
	req := c.reqsHead
	if req != nil {
		if c.reqsHead = req.next; c.reqsHead == nil {
			c.reqsTail = nil
		}
		req.next = nil
	}
	return req
}

// Pending returns the number of requests waiting for reply.
func (c *Client) Pending() (n int) {
	c.reqsLock.Lock()
	defer c.reqsLock.Unlock()
	for curr := c.reqsHead; curr != nil; curr = curr.next {
		n++
	}
	return
}

// HandleResult implements ResultHandler.
func (c *Client) HandleResult(ctx context.Context, r Result) {
	switch r.Kind {
	case ResultPacket:
		select {
		case c.payloadCh <- append([]byte(nil), r.Payload...):
		default:
			glog.Warningf("client payload chan full, dropped [% x]", r.Payload)
		}
	case ResultControl:
		switch r.Control {
		case ControlAck, ControlNak:
			if req := c.popRequest(); req != nil {
				if r.Control == ControlNak {
					req.resultCh <- ErrNak
				} else {
					req.resultCh <- nil
				}
			}
		}
		select {
		case c.controlCh <- r.Control:
		default:
			glog.Warningf("client control chan full, dropped %s", r.Control)
		}
	case ResultSizeError, ResultChecksumError:
		select {
		case c.errCh <- r.Err():
		default:
			glog.Warningf("client error chan full, dropped %v", r.Err())
		}
	case ResultInProgress:
	}
}

// Run wraps Link.Run to implement Runnable. Pending requests fail with
// ErrClosed once the link stops.
func (c *Client) Run(ctx context.Context) error {
	err := c.link.Run(ctx)
	for req := c.popRequest(); req != nil; req = c.popRequest() {
		req.resultCh <- ErrClosed
	}
	return err
}
