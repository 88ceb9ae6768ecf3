package comm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Command classes. Classes are numbered from 0 without gaps.
const (
	ClassHostPC     byte = 0x00 // handled by host PC
	ClassBroadcast  byte = 0x00 // no specific target
	ClassMonitor    byte = 0x01 // gear monitor
	ClassController byte = 0x02 // gear controller
	ClassZWave      byte = 0x03 // z-wave module

	// NumClasses is the number of defined classes.
	NumClasses = 4
)

// Command codes shared by all classes (0x00 and 0x80-0x9f).
const (
	CmdSystemReset byte = 0x00
	ReportDone     byte = 0x80 // no more data to report
	ReportU8       byte = 0x81
	ReportS8       byte = 0x82
	ReportU16      byte = 0x83
	ReportS16      byte = 0x84
	ReportU32      byte = 0x85
	ReportS32      byte = 0x86
)

// Command codes of ClassMonitor.
const (
	MonQuadDecSet   byte = 0x10
	MonQuadDecGet   byte = 0x11
	MonQuadDecStart byte = 0x12 // start reporting quad decoder count
	MonQuadDecStop  byte = 0x13
	MonADCCapture   byte = 0x14
	MonADCGet       byte = 0x15
)

// Command codes of ClassController.
const (
	CtlMotorSetPos   byte = 0x10
	CtlMotorGetPos   byte = 0x11
	CtlMotorSetSpeed byte = 0x12
	CtlMotorGetSpeed byte = 0x13
	CtlMotorSwitch   byte = 0x14 // switch direction
	CtlProfileRun    byte = 0x15
	CtlProfileGet    byte = 0x16
	CtlEncoderSet    byte = 0x20
	CtlEncoderGet    byte = 0x21
)

// Command codes of ClassZWave.
const (
	ZWTestFrameStart byte = 0x01
	ZWTestFrameStop  byte = 0x02
	ZWLearnStart     byte = 0x20
	ZWLearnStop      byte = 0x21
	ZWFirmwareOTA    byte = 0x24
	ZWWatchdogReset  byte = 0x25
)

// Command code ranges.
const (
	sharedLow  byte = 0x80
	sharedHigh byte = 0x9f
	classLow   byte = 0x01
	classHigh  byte = 0x3f
)

// IsSharedCommand indicates cmd is valid across all classes.
func IsSharedCommand(cmd byte) bool {
	return cmd == CmdSystemReset || (cmd >= sharedLow && cmd <= sharedHigh)
}

// IsClassCommand indicates cmd is class specific.
func IsClassCommand(cmd byte) bool {
	return cmd >= classLow && cmd <= classHigh
}

// ValidCommand checks both class and command codes.
func ValidCommand(class, cmd byte) bool {
	return int(class) < NumClasses && (IsSharedCommand(cmd) || IsClassCommand(cmd))
}

// ReportSize returns the data size of a typed report code.
func ReportSize(code byte) (int, bool) {
	switch code {
	case ReportDone:
		return 0, true
	case ReportU8, ReportS8:
		return 1, true
	case ReportU16, ReportS16:
		return 2, true
	case ReportU32, ReportS32:
		return 4, true
	}
	return 0, false
}

// NewReport creates a report packet with value packed in big endian.
func NewReport(class, code byte, value int64) (*Packet, error) {
	size, ok := ReportSize(code)
	if !ok {
		return nil, fmt.Errorf("%w: 0x%02x", ErrNotReport, code)
	}
	var lo, hi int64
	switch code {
	case ReportU8:
		hi = math.MaxUint8
	case ReportS8:
		lo, hi = math.MinInt8, math.MaxInt8
	case ReportU16:
		hi = math.MaxUint16
	case ReportS16:
		lo, hi = math.MinInt16, math.MaxInt16
	case ReportU32:
		hi = math.MaxUint32
	case ReportS32:
		lo, hi = math.MinInt32, math.MaxInt32
	}
	if value < lo || value > hi {
		return nil, fmt.Errorf("%w: %d for 0x%02x", ErrReportRange, value, code)
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(value))
	return &Packet{Class: class, Command: code, Data: append(make([]byte, 0, size), buf[4-size:]...)}, nil
}

// ReportValue decodes the value of a typed report.
func (p *Packet) ReportValue() (int64, error) {
	size, ok := ReportSize(p.Command)
	if !ok {
		return 0, fmt.Errorf("%w: 0x%02x", ErrNotReport, p.Command)
	}
	if len(p.Data) < size {
		return 0, fmt.Errorf("%w: report 0x%02x needs %d bytes, got %d", ErrShortCommand, p.Command, size, len(p.Data))
	}
	d := p.Data[:size]
	switch p.Command {
	case ReportU8:
		return int64(d[0]), nil
	case ReportS8:
		return int64(int8(d[0])), nil
	case ReportU16:
		return int64(binary.BigEndian.Uint16(d)), nil
	case ReportS16:
		return int64(int16(binary.BigEndian.Uint16(d))), nil
	case ReportU32:
		return int64(binary.BigEndian.Uint32(d)), nil
	case ReportS32:
		return int64(int32(binary.BigEndian.Uint32(d))), nil
	}
	return 0, nil
}
