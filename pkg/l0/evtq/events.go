package evtq

import "fmt"

// Event codes, stored in the first byte of a record.
const (
	// EvtButtonInput data: button id, click type.
	EvtButtonInput byte = 0x10
	// EvtRxPacket data: payload length, payload.
	EvtRxPacket byte = 0x20
	// EvtRxControl data: control byte.
	EvtRxControl byte = 0x21
	// EvtRxError data: error kind.
	EvtRxError byte = 0x22
)

// Click types of EvtButtonInput.
const (
	ClickSingle byte = 0x01
	ClickLong   byte = 0x02
	ClickDouble byte = 0x03
	ClickTriple byte = 0x04
)

// Error kinds of EvtRxError.
const (
	RxErrSize     byte = 0x01
	RxErrChecksum byte = 0x02
)

// Record is an event: a code byte followed by code specific data.
type Record []byte

// PacketRecord creates an EvtRxPacket record.
func PacketRecord(payload []byte) Record {
	rec := make(Record, 0, len(payload)+2)
	rec = append(rec, EvtRxPacket, byte(len(payload)))
	return append(rec, payload...)
}

// ControlRecord creates an EvtRxControl record.
func ControlRecord(b byte) Record {
	return Record{EvtRxControl, b}
}

// ErrorRecord creates an EvtRxError record.
func ErrorRecord(kind byte) Record {
	return Record{EvtRxError, kind}
}

// ButtonRecord creates an EvtButtonInput record.
func ButtonRecord(id, click byte) Record {
	return Record{EvtButtonInput, id, click}
}

// Code returns the event code, 0 for an empty record.
func (r Record) Code() byte {
	if len(r) == 0 {
		return 0
	}
	return r[0]
}

// Packet returns the payload of an EvtRxPacket record.
func (r Record) Packet() ([]byte, bool) {
	if r.Code() != EvtRxPacket || len(r) < 2 {
		return nil, false
	}
	n := int(r[1])
	if len(r) < n+2 {
		return nil, false
	}
	return r[2 : n+2], true
}

// Arg returns the n-th data byte.
func (r Record) Arg(n int) (byte, bool) {
	if n+1 >= len(r) {
		return 0, false
	}
	return r[n+1], true
}

// String implements fmt.Stringer.
func (r Record) String() string {
	switch r.Code() {
	case EvtRxPacket:
		if p, ok := r.Packet(); ok {
			return fmt.Sprintf("packet[% x]", p)
		}
	case EvtRxControl:
		b, _ := r.Arg(0)
		return fmt.Sprintf("control[0x%02x]", b)
	case EvtRxError:
		switch b, _ := r.Arg(0); b {
		case RxErrSize:
			return "error[size]"
		case RxErrChecksum:
			return "error[checksum]"
		}
	case EvtButtonInput:
		id, _ := r.Arg(0)
		click, _ := r.Arg(1)
		return fmt.Sprintf("button[%d click=%d]", id, click)
	}
	return fmt.Sprintf("event[% x]", []byte(r))
}
