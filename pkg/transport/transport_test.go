package transport

import (
	"context"
	"io"
	"net"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"golang.org/x/net/websocket"

	"github.com/robotalks/pktlink/pkg/l0/comm"
)

func TestParseSerialURL(t *testing.T) {
	testCases := []struct {
		url    string
		expect SerialConfig
		fail   bool
	}{
		{
			url: "serial:///dev/ttyUSB0",
			expect: SerialConfig{
				Path:    "/dev/ttyUSB0",
				Mode:    serial.Mode{BaudRate: 115200, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit},
				Timeout: DefaultReadTimeout,
			},
		},
		{
			url: "serial://COM3?baud=9600&parity=even&stop=2&data=7&timeout=0",
			expect: SerialConfig{
				Path: "COM3",
				Mode: serial.Mode{BaudRate: 9600, DataBits: 7, Parity: serial.EvenParity, StopBits: serial.TwoStopBits},
			},
		},
		{url: "serial://", fail: true},
		{url: "serial:///dev/ttyS0?baud=fast", fail: true},
		{url: "serial:///dev/ttyS0?parity=x", fail: true},
		{url: "serial:///dev/ttyS0?stop=3", fail: true},
		{url: "serial:///dev/ttyS0?data=9", fail: true},
		{url: "serial:///dev/ttyS0?timeout=-1s", fail: true},
	}
	for _, tc := range testCases {
		u, err := url.Parse(tc.url)
		require.NoError(t, err)
		cfg, err := ParseSerialURL(u)
		if tc.fail {
			require.Error(t, err, tc.url)
			continue
		}
		require.NoError(t, err, tc.url)
		require.Equal(t, tc.expect, *cfg, tc.url)
	}
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open("udp://localhost:1234")
	require.ErrorIs(t, err, ErrUnsupportedScheme)
	_, err = Open("tcp://")
	require.Error(t, err)
	require.Equal(t, []string{"serial", "tcp", "ws", "wss"}, Schemes())
}

func runLink(t *testing.T, conn *Conn) (*comm.Link, chan comm.Result) {
	resultCh := make(chan comm.Result, 4)
	link := comm.NewLink(conn, comm.DefaultLayout)
	link.ReadTimeout = conn.ReadTimeout
	link.Handler = comm.HandleResultFunc(func(ctx context.Context, r comm.Result) {
		resultCh <- r
	})
	ctx, cancel := context.WithCancel(context.TODO())
	t.Cleanup(func() {
		cancel()
		conn.Close()
	})
	go link.Run(ctx)
	return link, resultCh
}

func expectPacket(t *testing.T, resultCh chan comm.Result, payload []byte) {
	select {
	case r := <-resultCh:
		require.Equal(t, comm.ResultPacket, r.Kind)
		require.Equal(t, payload, r.Payload)
	case <-time.After(time.Second):
		t.Fatal("expect packet timeout")
	}
}

func TestTCPLink(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(conn, conn)
	}()

	conn, err := Open("tcp://" + ln.Addr().String())
	require.NoError(t, err)
	require.False(t, conn.ReadTimeout)
	link, resultCh := runLink(t, conn)
	require.NoError(t, link.SendPayload([]byte{0x81, 0x2a}))
	expectPacket(t, resultCh, []byte{0x81, 0x2a})
}

func TestWebSocketLink(t *testing.T) {
	srv := httptest.NewServer(websocket.Handler(func(ws *websocket.Conn) {
		ws.PayloadType = websocket.BinaryFrame
		io.Copy(ws, ws)
	}))
	defer srv.Close()

	conn, err := Open("ws" + strings.TrimPrefix(srv.URL, "http") + "/link")
	require.NoError(t, err)
	link, resultCh := runLink(t, conn)
	require.NoError(t, link.SendPayload([]byte{0x01, 0x02, 0x03}))
	require.NoError(t, link.SendControl(comm.ControlIam))
	expectPacket(t, resultCh, []byte{0x01, 0x02, 0x03})
	select {
	case r := <-resultCh:
		require.Equal(t, comm.ControlIam, r.Control)
	case <-time.After(time.Second):
		t.Fatal("expect control timeout")
	}
}
