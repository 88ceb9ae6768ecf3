package comm

import "fmt"

// Wire sentinels.
const (
	// HeaderByte starts a data frame.
	HeaderByte byte = 0xf5
	// AckByte is a bare acknowledge message.
	AckByte byte = 0xf6
	// NakByte is a bare negative-acknowledge message.
	NakByte byte = 0xf7
	// IamByte is a bare presence-announce message.
	IamByte byte = 0xf8
)

const (
	// DefaultMaxPayload is the payload limit used by the firmware.
	DefaultMaxPayload = 10
	// MaxPayloadLimit is the largest payload a length byte can declare.
	MaxPayloadLimit = 0xff
	// FrameOverhead is the number of framing bytes around a payload:
	// header, length and checksum.
	FrameOverhead = 3
	// CommandPrefixLen is the size of the class/command prefix.
	CommandPrefixLen = 2
)

// Layout configures the framing variant shared by encoder and decoder.
// The zero value is the plain variant with DefaultMaxPayload and
// checksum enforcement.
type Layout struct {
	// MaxPayload is the largest accepted payload, 0 means DefaultMaxPayload.
	MaxPayload int
	// CommandPrefix indicates payloads start with a command class and
	// a command code.
	CommandPrefix bool
	// SkipChecksum consumes the checksum byte without verifying it.
	SkipChecksum bool
}

var (
	// DefaultLayout is the plain packet variant.
	DefaultLayout = Layout{MaxPayload: DefaultMaxPayload}
	// CommandLayout is the command-class packet variant.
	CommandLayout = Layout{MaxPayload: DefaultMaxPayload, CommandPrefix: true}
)

// PayloadLimit returns the effective max payload.
func (l Layout) PayloadLimit() int {
	if l.MaxPayload <= 0 {
		return DefaultMaxPayload
	}
	return l.MaxPayload
}

// DataLimit returns the max data size carried by a command packet.
func (l Layout) DataLimit() int {
	return l.PayloadLimit() - CommandPrefixLen
}

// FrameLimit returns the max size of an encoded frame.
func (l Layout) FrameLimit() int {
	return l.PayloadLimit() + FrameOverhead
}

// Validate checks the layout is usable.
func (l Layout) Validate() error {
	if l.MaxPayload < 0 || l.MaxPayload > MaxPayloadLimit {
		return fmt.Errorf("%w: max payload %d not in 0..%d", ErrInvalidLayout, l.MaxPayload, MaxPayloadLimit)
	}
	if l.CommandPrefix && l.PayloadLimit() < CommandPrefixLen {
		return fmt.Errorf("%w: max payload %d cannot hold command prefix", ErrInvalidLayout, l.PayloadLimit())
	}
	return nil
}

// IsSentinel indicates whether b is reserved while the decoder is idle.
func IsSentinel(b byte) bool {
	return b >= HeaderByte && b <= IamByte
}
