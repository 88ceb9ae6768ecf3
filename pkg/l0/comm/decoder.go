package comm

import "fmt"

// DecodeState is the state of the frame decoder.
type DecodeState int

const (
	AwaitingHeader   DecodeState = iota // idle, scanning for header or control bytes
	AwaitingLength                      // header seen, waiting for length byte
	AwaitingPayload                     // collecting payload bytes
	AwaitingChecksum                    // waiting for the checksum byte
)

// String implements fmt.Stringer.
func (s DecodeState) String() string {
	switch s {
	case AwaitingHeader:
		return "header"
	case AwaitingLength:
		return "length"
	case AwaitingPayload:
		return "payload"
	case AwaitingChecksum:
		return "checksum"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ResultKind tells what a single Feed produced.
type ResultKind int

const (
	// ResultInProgress means nothing completed with this byte.
	ResultInProgress ResultKind = iota
	// ResultControl means a bare control byte was received.
	ResultControl
	// ResultPacket means a valid frame was received.
	ResultPacket
	// ResultSizeError means the declared length exceeds the max payload.
	ResultSizeError
	// ResultChecksumError means the checksum byte didn't match.
	ResultChecksumError
)

// String implements fmt.Stringer.
func (k ResultKind) String() string {
	switch k {
	case ResultInProgress:
		return "in-progress"
	case ResultControl:
		return "control"
	case ResultPacket:
		return "packet"
	case ResultSizeError:
		return "size-error"
	case ResultChecksumError:
		return "checksum-error"
	}
	return fmt.Sprintf("result(%d)", int(k))
}

// ControlKind identifies a bare control message.
type ControlKind byte

// Control messages.
const (
	ControlAck = ControlKind(AckByte)
	ControlNak = ControlKind(NakByte)
	ControlIam = ControlKind(IamByte)
)

// Byte returns the wire byte.
func (c ControlKind) Byte() byte {
	return byte(c)
}

// IsValid checks c is one of the control messages.
func (c ControlKind) IsValid() bool {
	return c == ControlAck || c == ControlNak || c == ControlIam
}

// String implements fmt.Stringer.
func (c ControlKind) String() string {
	switch c {
	case ControlAck:
		return "ACK"
	case ControlNak:
		return "NAK"
	case ControlIam:
		return "IAM"
	}
	return fmt.Sprintf("control(0x%02x)", byte(c))
}

// ParseControlKind parses the name of a control message.
func ParseControlKind(name string) (ControlKind, error) {
	switch name {
	case "ack", "ACK":
		return ControlAck, nil
	case "nak", "NAK":
		return ControlNak, nil
	case "iam", "IAM":
		return ControlIam, nil
	}
	return 0, fmt.Errorf("unknown control %q", name)
}

// Result is the outcome of feeding one byte.
type Result struct {
	Kind ResultKind
	// Control is set for ResultControl.
	Control ControlKind
	// Payload is set for ResultPacket.
	Payload []byte
	// Length is the declared length for ResultPacket, ResultSizeError
	// and ResultChecksumError.
	Length int
	// Checksum is the received checksum byte, Computed the accumulated one.
	// Both are set for ResultPacket and ResultChecksumError.
	Checksum, Computed byte
}

// Done indicates the result completed a message or aborted a frame.
func (r Result) Done() bool {
	return r.Kind != ResultInProgress
}

// Err returns a *DecodeError for error results, nil otherwise.
func (r Result) Err() error {
	switch r.Kind {
	case ResultSizeError, ResultChecksumError:
		return &DecodeError{Kind: r.Kind, Length: r.Length, Want: r.Computed, Got: r.Checksum}
	}
	return nil
}

// Decoder reconstructs frames from a byte stream, one byte at a time.
// A Decoder is owned by a single link and must not be fed concurrently.
// The zero value is ready to use with DefaultLayout semantics.
type Decoder struct {
	Layout Layout

	state   DecodeState
	length  int
	index   int
	csum    byte
	scratch [MaxPayloadLimit]byte
}

// NewDecoder creates a Decoder with the layout.
func NewDecoder(layout Layout) *Decoder {
	return &Decoder{Layout: layout}
}

// State gets the current state.
func (d *Decoder) State() DecodeState {
	return d.state
}

// Reset drops any partial frame and waits for a header.
func (d *Decoder) Reset() {
	d.state = AwaitingHeader
	d.length, d.index, d.csum = 0, 0, 0
}

// Feed consumes one byte. On ResultPacket the payload is a fresh copy.
func (d *Decoder) Feed(b byte) Result {
	return d.FeedInto(b, nil)
}

// FeedInto consumes one byte. On ResultPacket the payload is copied into
// buf, which is left untouched for every other result. A buf shorter
// than the received payload is replaced by a new slice.
func (d *Decoder) FeedInto(b byte, buf []byte) (r Result) {
	switch d.state {
	case AwaitingHeader:
		switch b {
		case HeaderByte:
			d.Reset()
			d.state = AwaitingLength
		case AckByte, NakByte, IamByte:
			r.Kind, r.Control = ResultControl, ControlKind(b)
		}
	case AwaitingLength:
		r.Length = int(b)
		if r.Length > d.Layout.PayloadLimit() {
			d.Reset()
			r.Kind = ResultSizeError
			return
		}
		d.length, d.index, d.csum = r.Length, 0, 0
		if d.length == 0 {
			d.state = AwaitingChecksum
		} else {
			d.state = AwaitingPayload
		}
	case AwaitingPayload:
		d.scratch[d.index] = b
		d.csum ^= b
		d.index++
		if d.index >= d.length {
			d.state = AwaitingChecksum
		}
	case AwaitingChecksum:
		r.Length, r.Checksum, r.Computed = d.length, b, d.csum
		if b != d.csum && !d.Layout.SkipChecksum {
			d.Reset()
			r.Kind = ResultChecksumError
			return
		}
		if len(buf) < d.length {
			buf = make([]byte, d.length)
		}
		r.Payload = buf[:d.length]
		copy(r.Payload, d.scratch[:d.length])
		r.Kind = ResultPacket
		d.Reset()
	}
	return
}

// FeedAll feeds a chunk and invokes fn for every completed result.
func (d *Decoder) FeedAll(p []byte, fn func(Result)) {
	for _, b := range p {
		if r := d.Feed(b); r.Done() && fn != nil {
			fn(r)
		}
	}
}
