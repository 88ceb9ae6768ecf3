// Package transport opens byte stream links from URLs.
//
// Supported schemes:
//
//	serial:///dev/ttyUSB0?baud=115200&parity=none&data=8&stop=1&timeout=100ms
//	tcp://host:port
//	ws://host:port/path, wss://host:port/path
package transport

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"sync"
)

// ErrUnsupportedScheme indicates no opener is registered for the URL scheme.
var ErrUnsupportedScheme = errors.New("unsupported link scheme")

// Conn is an opened link.
type Conn struct {
	io.ReadWriteCloser
	// ReadTimeout is true if Read returns periodically when no data
	// arrives, so the reader doesn't need a separate goroutine.
	ReadTimeout bool
	// URL is where the link was opened from.
	URL string
}

// Opener opens a link from a parsed URL.
type Opener func(u *url.URL) (*Conn, error)

var (
	openers     = make(map[string]Opener)
	openersLock sync.RWMutex
)

// Register registers an Opener for a scheme.
func Register(scheme string, opener Opener) {
	openersLock.Lock()
	defer openersLock.Unlock()
	openers[scheme] = opener
}

// Schemes lists registered schemes.
func Schemes() (schemes []string) {
	openersLock.RLock()
	defer openersLock.RUnlock()
	for scheme := range openers {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return
}

// Open opens a link.
func Open(rawURL string) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid link URL %q: %w", rawURL, err)
	}
	openersLock.RLock()
	opener := openers[u.Scheme]
	openersLock.RUnlock()
	if opener == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	conn, err := opener(u)
	if err != nil {
		return nil, err
	}
	conn.URL = rawURL
	return conn, nil
}

func init() {
	Register("serial", openSerial)
	Register("tcp", openTCP)
	Register("ws", openWebSocket)
	Register("wss", openWebSocket)
}
