package transport

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"
)

// Serial port defaults.
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 100 * time.Millisecond
)

// SerialConfig is parsed from a serial:// URL.
type SerialConfig struct {
	Path    string
	Mode    serial.Mode
	Timeout time.Duration
}

// ParseSerialURL parses serial:///dev/ttyUSB0?baud=9600 or serial://COM3.
func ParseSerialURL(u *url.URL) (*SerialConfig, error) {
	cfg := &SerialConfig{
		Path: u.Host + u.Path,
		Mode: serial.Mode{
			BaudRate: DefaultBaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		Timeout: DefaultReadTimeout,
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("serial port not specified")
	}
	q := u.Query()
	var err error
	if v := q.Get("baud"); v != "" {
		if cfg.Mode.BaudRate, err = strconv.Atoi(v); err != nil || cfg.Mode.BaudRate <= 0 {
			return nil, fmt.Errorf("invalid baud %q", v)
		}
	}
	if v := q.Get("data"); v != "" {
		if cfg.Mode.DataBits, err = strconv.Atoi(v); err != nil || cfg.Mode.DataBits < 5 || cfg.Mode.DataBits > 8 {
			return nil, fmt.Errorf("invalid data bits %q", v)
		}
	}
	switch v := strings.ToLower(q.Get("parity")); v {
	case "", "none", "n":
	case "odd", "o":
		cfg.Mode.Parity = serial.OddParity
	case "even", "e":
		cfg.Mode.Parity = serial.EvenParity
	case "mark", "m":
		cfg.Mode.Parity = serial.MarkParity
	case "space", "s":
		cfg.Mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("invalid parity %q", v)
	}
	switch v := q.Get("stop"); v {
	case "", "1":
	case "1.5":
		cfg.Mode.StopBits = serial.OnePointFiveStopBits
	case "2":
		cfg.Mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stop bits %q", v)
	}
	if v := q.Get("timeout"); v != "" {
		if cfg.Timeout, err = time.ParseDuration(v); err != nil || cfg.Timeout < 0 {
			return nil, fmt.Errorf("invalid timeout %q", v)
		}
	}
	return cfg, nil
}

func openSerial(u *url.URL) (*Conn, error) {
	cfg, err := ParseSerialURL(u)
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(cfg.Path, &cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Path, err)
	}
	conn := &Conn{ReadWriteCloser: port}
	if cfg.Timeout > 0 {
		if err := port.SetReadTimeout(cfg.Timeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Path, err)
		}
		conn.ReadTimeout = true
	}
	glog.Infof("opened %s at %d baud", cfg.Path, cfg.Mode.BaudRate)
	return conn, nil
}
