package comm

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/pktlink/pkg/l0/evtq"
)

const readBufSize = 64

// ResultHandler is called for every completed decode result.
type ResultHandler interface {
	HandleResult(context.Context, Result)
}

// HandleResultFunc is func type of ResultHandler.
type HandleResultFunc func(context.Context, Result)

// HandleResult implements ResultHandler.
func (f HandleResultFunc) HandleResult(ctx context.Context, r Result) {
	f(ctx, r)
}

// LinkStats is a snapshot of link counters.
type LinkStats struct {
	Packets        uint64
	Controls       uint64
	SizeErrors     uint64
	ChecksumErrors uint64
	Dropped        uint64 // records not enqueued because the queue was full
	BytesIn        uint64
	BytesOut       uint64
}

// Link runs a Decoder over the incoming bytes of a ReadWriter and
// encodes outgoing frames onto it.
//
// Run is the only producer of Queue. Handler and Notify are invoked from
// the Run goroutine after the record has been enqueued. The payload passed
// to Handler is only valid during the call.
type Link struct {
	ReadWriter  io.ReadWriter
	Layout      Layout
	Handler     ResultHandler
	Queue       *evtq.Queue
	Notify      func()
	ReadTimeout bool // set to true if ReadWriter already supports timeout with Read
	AutoReply   bool // reply ACK to packets and NAK to broken frames

	decoder  Decoder
	payload  [MaxPayloadLimit]byte
	sendLock sync.Mutex

	packets, controls  atomic.Uint64
	sizeErrs, csumErrs atomic.Uint64
	dropped            atomic.Uint64
	bytesIn, bytesOut  atomic.Uint64
}

// NewLink creates a Link.
func NewLink(rw io.ReadWriter, layout Layout) *Link {
	return &Link{ReadWriter: rw, Layout: layout}
}

// Stats gets the counters.
func (l *Link) Stats() LinkStats {
	return LinkStats{
		Packets:        l.packets.Load(),
		Controls:       l.controls.Load(),
		SizeErrors:     l.sizeErrs.Load(),
		ChecksumErrors: l.csumErrs.Load(),
		Dropped:        l.dropped.Load(),
		BytesIn:        l.bytesIn.Load(),
		BytesOut:       l.bytesOut.Load(),
	}
}

// SendPayload encodes payload as a frame and writes it.
func (l *Link) SendPayload(payload []byte) error {
	frame, err := l.Layout.Encode(payload)
	if err != nil {
		return err
	}
	return l.write(frame)
}

// SendPacket encodes a command-class packet and writes it.
func (l *Link) SendPacket(pkt *Packet) error {
	frame, err := l.Layout.EncodeCommand(pkt.Class, pkt.Command, pkt.Data)
	if err != nil {
		return err
	}
	return l.write(frame)
}

// SendControl writes a bare control byte.
func (l *Link) SendControl(c ControlKind) error {
	if !c.IsValid() {
		return fmt.Errorf("invalid control byte 0x%02x", byte(c))
	}
	return l.write([]byte{c.Byte()})
}

func (l *Link) write(p []byte) error {
	l.sendLock.Lock()
	defer l.sendLock.Unlock()
	n, err := l.ReadWriter.Write(p)
	l.bytesOut.Add(uint64(n))
	if err == nil {
		glog.V(2).Infof("link sent [% x]", p)
	}
	return err
}

// Run processes incoming bytes until ctx is done or reading fails.
// Decode errors are reported and never stop the link.
func (l *Link) Run(ctx context.Context) error {
	if err := l.Layout.Validate(); err != nil {
		return err
	}
	if q := l.Queue; q != nil && q.Width() < l.Layout.PayloadLimit()+2 {
		return fmt.Errorf("event queue width %d can't hold payload of %d bytes", q.Width(), l.Layout.PayloadLimit())
	}
	l.decoder.Layout = l.Layout
	l.decoder.Reset()

	if l.ReadTimeout {
		buf := make([]byte, readBufSize)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				n, err := l.ReadWriter.Read(buf)
				if n > 0 {
					if perr := l.process(ctx, buf[:n]); perr != nil {
						return perr
					}
				}
				if err != nil && !os.IsTimeout(err) {
					return err
				}
			}
		}
	}

	chunkCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.readLoop(subCtx, chunkCh, errCh)
	for {
		select {
		case p := <-chunkCh:
			if err := l.process(ctx, p); err != nil {
				return err
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Link) readLoop(ctx context.Context, chunkCh chan []byte, errCh chan error) {
	buf := make([]byte, readBufSize)
	for {
		n, err := l.ReadWriter.Read(buf)
		if n > 0 {
			select {
			case chunkCh <- append([]byte(nil), buf[:n]...):
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

func (l *Link) process(ctx context.Context, p []byte) error {
	l.bytesIn.Add(uint64(len(p)))
	for _, b := range p {
		if r := l.decoder.FeedInto(b, l.payload[:]); r.Done() {
			if err := l.applyResult(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Link) applyResult(ctx context.Context, r Result) error {
	var rec evtq.Record
	var reply ControlKind
	switch r.Kind {
	case ResultPacket:
		l.packets.Add(1)
		rec, reply = evtq.PacketRecord(r.Payload), ControlAck
		glog.V(2).Infof("link recv packet [% x]", r.Payload)
	case ResultControl:
		l.controls.Add(1)
		rec = evtq.ControlRecord(r.Control.Byte())
		glog.V(2).Infof("link recv %s", r.Control)
	case ResultSizeError:
		l.sizeErrs.Add(1)
		rec, reply = evtq.ErrorRecord(evtq.RxErrSize), ControlNak
		glog.V(2).Infof("link recv error: %v", r.Err())
	case ResultChecksumError:
		l.csumErrs.Add(1)
		rec, reply = evtq.ErrorRecord(evtq.RxErrChecksum), ControlNak
		glog.V(2).Infof("link recv error: %v", r.Err())
	case ResultInProgress:
		return nil
	}

	if q := l.Queue; q != nil && !q.Enqueue(rec) {
		l.dropped.Add(1)
		glog.Warningf("event queue full, dropped %v", rec)
	}
	if l.AutoReply && reply != 0 {
		if err := l.SendControl(reply); err != nil {
			return err
		}
	}
	if l.Notify != nil {
		l.Notify()
	}
	if h := l.Handler; h != nil {
		h.HandleResult(ctx, r)
	}
	return nil
}
