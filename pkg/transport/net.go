package transport

import (
	"fmt"
	"net"
	"net/url"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

func openTCP(u *url.URL) (*Conn, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("tcp address not specified")
	}
	conn, err := net.Dial("tcp", u.Host)
	if err != nil {
		return nil, err
	}
	glog.Infof("connected to tcp %s", u.Host)
	return &Conn{ReadWriteCloser: conn}, nil
}

// websocket frames are binary, the link is still a byte stream.
func openWebSocket(u *url.URL) (*Conn, error) {
	origin := "http://" + u.Host
	if u.Scheme == "wss" {
		origin = "https://" + u.Host
	}
	conn, err := websocket.Dial(u.String(), "", origin)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	glog.Infof("connected to %s", u.Redacted())
	return &Conn{ReadWriteCloser: conn}, nil
}
