package comm

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *testStream, chan error) {
	stream := newTestStream()
	client := NewClient(NewLink(stream, CommandLayout))
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Run(context.TODO())
	}()
	return client, stream, errCh
}

func TestClientDo(t *testing.T) {
	client, stream, errCh := newTestClient(t)
	pkt := &Packet{Class: ClassController, Command: CtlMotorSetSpeed, Data: []byte{0x00, 0x10}}
	frame, err := pkt.Bytes()
	require.NoError(t, err)

	doCh := make(chan error, 1)
	go func() {
		doCh <- client.Do(context.TODO(), pkt)
	}()
	stream.expectWrite(t, frame...)
	stream.inject(AckByte)
	select {
	case err := <-doCh:
		require.NoError(t, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Do timeout")
	}
	require.Equal(t, ControlAck, <-client.ControlChan())

	go func() {
		doCh <- client.DoPayload(context.TODO(), []byte{0x01, 0x00})
	}()
	stream.expectWrite(t, 0xf5, 0x02, 0x01, 0x00, 0x01)
	stream.inject(NakByte)
	require.ErrorIs(t, <-doCh, ErrNak)
	require.Equal(t, ControlNak, <-client.ControlChan())
	require.Zero(t, client.Pending())

	close(stream.readCh)
	require.Equal(t, io.EOF, <-errCh)
}

func TestClientInOrder(t *testing.T) {
	client, stream, _ := newTestClient(t)
	req1 := client.StartPayload([]byte{0x01})
	req2 := client.StartPayload([]byte{0x02})
	req3 := client.StartPayload([]byte{0x03})
	require.Equal(t, 3, client.Pending())
	stream.inject(AckByte, NakByte)
	require.NoError(t, <-req1.ResultChan())
	require.ErrorIs(t, <-req2.ResultChan(), ErrNak)
	require.Equal(t, 1, client.Pending())

	close(stream.readCh)
	require.ErrorIs(t, <-req3.ResultChan(), ErrClosed)
}

func TestClientDoCanceled(t *testing.T) {
	client, stream, _ := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.TODO(), 10*time.Millisecond)
	defer cancel()
	err := client.Do(ctx, &Packet{Class: ClassZWave, Command: ZWLearnStart})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, client.Pending())
	stream.expectWrite(t, 0xf5, 0x02, 0x03, 0x20, 0x23)

	// a late ACK doesn't complete anything
	stream.inject(AckByte)
	require.Equal(t, ControlAck, <-client.ControlChan())
	close(stream.readCh)
}

func TestClientReceive(t *testing.T) {
	client, stream, _ := newTestClient(t)
	frame, err := EncodeCommand(ClassMonitor, ReportU16, []byte{0x12, 0x34})
	require.NoError(t, err)
	stream.inject(frame...)
	payload := <-client.PayloadChan()
	pkt, err := ParsePacket(payload)
	require.NoError(t, err)
	value, err := pkt.ReportValue()
	require.NoError(t, err)
	require.Equal(t, int64(0x1234), value)

	// payloads handed out stay intact after later frames
	stream.inject(0xf5, 0x01, 0x55, 0x55)
	require.Equal(t, []byte{0x55}, <-client.PayloadChan())
	require.Equal(t, []byte{ClassMonitor, ReportU16, 0x12, 0x34}, payload)

	stream.inject(0xf5, 0x01, 0x01, 0x00)
	require.ErrorIs(t, <-client.ErrorChan(), ErrChecksumError)
	stream.inject(0xf5, 0x20)
	require.ErrorIs(t, <-client.ErrorChan(), ErrSizeError)
	stream.inject(IamByte)
	require.Equal(t, ControlIam, <-client.ControlChan())
	close(stream.readCh)
}
