package buttons

import (
	"errors"
	"io"
)

// ErrNoDevice indicates no input device is found.
var ErrNoDevice = errors.New("no input device")

// Event is a button state change read from a device.
type Event struct {
	Button  byte
	Pressed bool
	// Init is set on the synthetic events reporting initial state.
	Init bool
}

// Device is an opened input device.
type Device interface {
	io.Closer
	Index() int
	Name() string
	ButtonCount() int
	// ReadEvent blocks until the next button event.
	ReadEvent() (Event, error)
}
