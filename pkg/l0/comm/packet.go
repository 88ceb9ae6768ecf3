package comm

import (
	"fmt"
	"io"
)

// Checksum computes the XOR checksum of a payload.
func Checksum(payload []byte) (csum byte) {
	for _, b := range payload {
		csum ^= b
	}
	return
}

// AppendFrame appends the frame of payload to dst.
func (l Layout) AppendFrame(dst, payload []byte) ([]byte, error) {
	if limit := l.PayloadLimit(); len(payload) > limit {
		return dst, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), limit)
	}
	dst = append(dst, HeaderByte, byte(len(payload)))
	dst = append(dst, payload...)
	return append(dst, Checksum(payload)), nil
}

// Encode builds a frame from a payload.
func (l Layout) Encode(payload []byte) ([]byte, error) {
	return l.AppendFrame(make([]byte, 0, len(payload)+FrameOverhead), payload)
}

// AppendCommand appends the frame of a command packet to dst.
func (l Layout) AppendCommand(dst []byte, class, command byte, data []byte) ([]byte, error) {
	if limit := l.DataLimit(); len(data) > limit {
		return dst, fmt.Errorf("%w: data %d > %d", ErrPayloadTooLarge, len(data), limit)
	}
	size := len(data) + CommandPrefixLen
	csum := class ^ command ^ Checksum(data)
	dst = append(dst, HeaderByte, byte(size), class, command)
	dst = append(dst, data...)
	return append(dst, csum), nil
}

// EncodeCommand builds a frame whose payload is prefixed by a command
// class and a command code.
func (l Layout) EncodeCommand(class, command byte, data []byte) ([]byte, error) {
	return l.AppendCommand(make([]byte, 0, len(data)+CommandPrefixLen+FrameOverhead), class, command, data)
}

// Encode builds a frame using DefaultLayout.
func Encode(payload []byte) ([]byte, error) {
	return DefaultLayout.Encode(payload)
}

// EncodeCommand builds a command frame using CommandLayout.
func EncodeCommand(class, command byte, data []byte) ([]byte, error) {
	return CommandLayout.EncodeCommand(class, command, data)
}

// Packet is a payload carrying a command class and a command code.
type Packet struct {
	Class   byte
	Command byte
	Data    []byte
}

// ParsePacket splits a decoded payload into a Packet.
// Data aliases payload.
func ParsePacket(payload []byte) (*Packet, error) {
	if len(payload) < CommandPrefixLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortCommand, len(payload))
	}
	return &Packet{
		Class:   payload[0],
		Command: payload[1],
		Data:    payload[CommandPrefixLen:],
	}, nil
}

// Payload returns the payload bytes including the prefix.
func (p *Packet) Payload() []byte {
	b := make([]byte, 0, len(p.Data)+CommandPrefixLen)
	b = append(b, p.Class, p.Command)
	return append(b, p.Data...)
}

// Bytes returns encoded bytes for sending.
func (p *Packet) Bytes() ([]byte, error) {
	return CommandLayout.EncodeCommand(p.Class, p.Command, p.Data)
}

// WriteTo writes encoded bytes.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	b, err := p.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// String implements fmt.Stringer.
func (p *Packet) String() string {
	return fmt.Sprintf("class=0x%02x cmd=0x%02x data=% x", p.Class, p.Command, p.Data)
}

// Format formats a received payload for display. Command payloads show
// the decoded value of typed reports.
func (l Layout) Format(payload []byte) string {
	if l.CommandPrefix {
		if pkt, err := ParsePacket(payload); err == nil {
			if v, err := pkt.ReportValue(); err == nil && pkt.Command != ReportDone {
				return fmt.Sprintf("%s value=%d", pkt, v)
			}
			return pkt.String()
		}
	}
	return fmt.Sprintf("packet [% x]", payload)
}
