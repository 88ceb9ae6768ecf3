//go:build linux

package buttons

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

type jsDevice struct {
	file        *os.File
	index       int
	name        string
	buttonCount uint8
}

// jsEvent is struct js_event from linux/joystick.h.
type jsEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

const (
	jsiocGBUTTONS uint = 0x80016a12
	jsiocGNAME    uint = 0x80ff6a13

	jsEventButton uint8 = 0x01
	jsEventInit   uint8 = 0x80
)

// Open opens /dev/input/js<index>.
func Open(index int) (Device, error) {
	f, err := os.OpenFile(fmt.Sprintf("/dev/input/js%d", index), os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	d := &jsDevice{file: f, index: index}
	errno := d.ioctl(jsiocGBUTTONS, unsafe.Pointer(&d.buttonCount))
	if errno == 0 {
		var buf [256]byte
		if errno = d.ioctl(jsiocGNAME, unsafe.Pointer(&buf)); errno == 0 {
			if pos := bytes.IndexByte(buf[:], 0); pos >= 0 {
				d.name = string(buf[:pos])
			} else {
				d.name = string(buf[:])
			}
		}
	}
	if errno != 0 {
		f.Close()
		return nil, errno
	}
	return d, nil
}

// Detect opens the first available device from startIndex.
func Detect(startIndex int) (Device, error) {
	for index := startIndex; index < 256; index++ {
		d, err := Open(index)
		if err == nil {
			return d, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return nil, ErrNoDevice
}

func (d *jsDevice) Close() error {
	return d.file.Close()
}

func (d *jsDevice) Index() int {
	return d.index
}

func (d *jsDevice) Name() string {
	return d.name
}

func (d *jsDevice) ButtonCount() int {
	return int(d.buttonCount)
}

// ReadEvent skips axis events.
func (d *jsDevice) ReadEvent() (Event, error) {
	var buf [8]byte
	for {
		if _, err := d.file.Read(buf[:]); err != nil {
			return Event{}, err
		}
		var ev jsEvent
		if err := binary.Read(bytes.NewReader(buf[:]), binary.LittleEndian, &ev); err != nil {
			return Event{}, err
		}
		if ev.Type&jsEventButton != 0 {
			return Event{
				Button:  ev.Number,
				Pressed: ev.Value != 0,
				Init:    ev.Type&jsEventInit != 0,
			}, nil
		}
	}
}

func (d *jsDevice) ioctl(req uint, ptr unsafe.Pointer) syscall.Errno {
	_, _, err := syscall.Syscall(syscall.SYS_IOCTL, d.file.Fd(), uintptr(req), uintptr(ptr))
	return err
}
