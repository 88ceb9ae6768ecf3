package comm

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

type decoderTestSequence struct {
	in      []byte
	kind    ResultKind
	control ControlKind
	payload []byte
}

type decoderTestSequenceBuilder struct {
	seq []decoderTestSequence
}

func decoderTestSequences() *decoderTestSequenceBuilder {
	return &decoderTestSequenceBuilder{}
}

// on appends bytes of which all but the last must be in progress.
func (b *decoderTestSequenceBuilder) on(kind ResultKind, in ...byte) *decoderTestSequenceBuilder {
	b.seq = append(b.seq, decoderTestSequence{in: in, kind: kind})
	return b
}

func (b *decoderTestSequenceBuilder) ignored(in ...byte) *decoderTestSequenceBuilder {
	for _, c := range in {
		b.on(ResultInProgress, c)
	}
	return b
}

func (b *decoderTestSequenceBuilder) control(c ControlKind) *decoderTestSequenceBuilder {
	b.on(ResultControl, c.Byte())
	b.seq[len(b.seq)-1].control = c
	return b
}

func (b *decoderTestSequenceBuilder) frame(payload ...byte) *decoderTestSequenceBuilder {
	in := []byte{HeaderByte, byte(len(payload))}
	in = append(in, payload...)
	in = append(in, Checksum(payload))
	return b.raw(payload, in...)
}

func (b *decoderTestSequenceBuilder) raw(payload []byte, in ...byte) *decoderTestSequenceBuilder {
	b.on(ResultPacket, in...)
	b.seq[len(b.seq)-1].payload = payload
	return b
}

func (b *decoderTestSequenceBuilder) sizeError(in ...byte) *decoderTestSequenceBuilder {
	return b.on(ResultSizeError, in...)
}

func (b *decoderTestSequenceBuilder) checksumError(in ...byte) *decoderTestSequenceBuilder {
	return b.on(ResultChecksumError, in...)
}

func (b *decoderTestSequenceBuilder) build() []decoderTestSequence {
	return b.seq
}

func TestDecoder(t *testing.T) {
	testCases := []struct {
		name   string
		layout Layout
		seq    []decoderTestSequence
	}{
		{
			name: "concrete example",
			seq: decoderTestSequences().
				raw([]byte{0x81, 0x2a}, 0xf5, 0x02, 0x81, 0x2a, 0xab).
				build(),
		},
		{
			name: "zero length frame",
			seq: decoderTestSequences().
				raw(nil, 0xf5, 0x00, 0x00).
				checksumError(0xf5, 0x00, 0x01).
				frame(0x01).
				build(),
		},
		{
			name: "max payload",
			seq: decoderTestSequences().
				frame(0, 1, 2, 3, 4, 5, 6, 7, 8, 9).
				build(),
		},
		{
			name: "size error then recover",
			seq: decoderTestSequences().
				sizeError(0xf5, 0x0b).
				frame(0x81, 0x2a).
				sizeError(0xf5, 0xff).
				ignored(0x01, 0x02).
				frame(0x10).
				build(),
		},
		{
			name: "checksum error then recover",
			seq: decoderTestSequences().
				checksumError(0xf5, 0x02, 0x81, 0x2a, 0xaa).
				frame(0x81, 0x2a).
				build(),
		},
		{
			name: "garbage before header",
			seq: decoderTestSequences().
				ignored(0x00, 0x11, 0xff, 0x02, 0xf4, 0xf9).
				frame(0x33).
				build(),
		},
		{
			name: "controls between frames",
			seq: decoderTestSequences().
				control(ControlAck).
				frame(0x01, 0x02).
				control(ControlNak).
				control(ControlIam).
				frame().
				control(ControlAck).
				build(),
		},
		{
			name: "sentinels inside payload",
			seq: decoderTestSequences().
				frame(HeaderByte, AckByte, NakByte, IamByte).
				raw([]byte{0xf5, 0x02}, 0xf5, 0x02, 0xf5, 0x02, 0xf7).
				control(ControlNak).
				build(),
		},
		{
			name: "sentinel as checksum",
			seq: decoderTestSequences().
				raw([]byte{0xf6}, 0xf5, 0x01, 0xf6, 0xf6).
				build(),
		},
		{
			name:   "smaller max payload",
			layout: Layout{MaxPayload: 2},
			seq: decoderTestSequences().
				frame(0x01, 0x02).
				sizeError(0xf5, 0x03).
				build(),
		},
		{
			name:   "skip checksum",
			layout: Layout{SkipChecksum: true},
			seq: decoderTestSequences().
				raw([]byte{0x81, 0x2a}, 0xf5, 0x02, 0x81, 0x2a, 0x00).
				frame(0x01).
				sizeError(0xf5, 0x0b).
				build(),
		},
		{
			name:   "command layout short payload",
			layout: CommandLayout,
			seq: decoderTestSequences().
				frame(0x01).
				frame(ClassMonitor, MonQuadDecGet).
				build(),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDecoder(tc.layout)
			for n, s := range tc.seq {
				for i, b := range s.in {
					r := d.Feed(b)
					if i < len(s.in)-1 {
						require.Equalf(t, ResultInProgress, r.Kind, "seq[%d] byte[%d]", n, i)
						continue
					}
					require.Equalf(t, s.kind, r.Kind, "seq[%d] result", n)
					require.Equalf(t, AwaitingHeader, d.State(), "seq[%d] state", n)
					switch s.kind {
					case ResultControl:
						require.Equal(t, s.control, r.Control)
					case ResultPacket:
						if len(s.payload) > 0 {
							require.Equal(t, s.payload, r.Payload)
						} else {
							require.Empty(t, r.Payload)
						}
						require.Equal(t, len(r.Payload), r.Length)
					}
				}
			}
		})
	}
}

func TestDecoderStates(t *testing.T) {
	d := NewDecoder(DefaultLayout)
	require.Equal(t, AwaitingHeader, d.State())
	d.Feed(HeaderByte)
	require.Equal(t, AwaitingLength, d.State())
	d.Feed(0x02)
	require.Equal(t, AwaitingPayload, d.State())
	d.Feed(0x81)
	require.Equal(t, AwaitingPayload, d.State())
	d.Feed(0x2a)
	require.Equal(t, AwaitingChecksum, d.State())
	d.Reset()
	require.Equal(t, AwaitingHeader, d.State())
	require.Equal(t, ResultInProgress, d.Feed(0xab).Kind)

	d.Feed(HeaderByte)
	d.Feed(0x00)
	require.Equal(t, AwaitingChecksum, d.State())
}

func TestDecoderRoundTrip(t *testing.T) {
	d := NewDecoder(DefaultLayout)
	for size := 0; size <= DefaultMaxPayload; size++ {
		payload := make([]byte, size)
		rand.Read(payload)
		frame, err := Encode(payload)
		require.NoError(t, err)
		require.Len(t, frame, size+FrameOverhead)
		var results []Result
		d.FeedAll(frame, func(r Result) { results = append(results, r) })
		require.Len(t, results, 1, "size %d", size)
		require.Equal(t, ResultPacket, results[0].Kind)
		require.Equal(t, payload, results[0].Payload)
	}
}

func TestDecoderChecksumBitFlip(t *testing.T) {
	d := NewDecoder(DefaultLayout)
	for size := 1; size <= DefaultMaxPayload; size++ {
		payload := make([]byte, size)
		rand.Read(payload)
		frame, err := Encode(payload)
		require.NoError(t, err)
		// every bit of payload and checksum
		for pos := 2; pos < len(frame); pos++ {
			for bit := 0; bit < 8; bit++ {
				corrupted := append([]byte(nil), frame...)
				corrupted[pos] ^= 1 << uint(bit)
				var last Result
				d.FeedAll(corrupted, func(r Result) { last = r })
				require.Equalf(t, ResultChecksumError, last.Kind, "size %d pos %d bit %d", size, pos, bit)
				require.ErrorIs(t, last.Err(), ErrChecksumError)
				require.Equal(t, AwaitingHeader, d.State())
			}
		}
	}
}

func TestDecoderSplitFeed(t *testing.T) {
	var stream []byte
	stream = append(stream, 0x00, AckByte)
	for size := 0; size <= DefaultMaxPayload; size++ {
		payload := make([]byte, size)
		rand.Read(payload)
		frame, err := Encode(payload)
		require.NoError(t, err)
		stream = append(stream, frame...)
		stream = append(stream, IamByte)
	}
	stream = append(stream, HeaderByte, 0x20, NakByte)

	var whole []Result
	NewDecoder(DefaultLayout).FeedAll(stream, func(r Result) { whole = append(whole, r) })
	require.NotEmpty(t, whole)

	for round := 0; round < 20; round++ {
		d := NewDecoder(DefaultLayout)
		var split []Result
		for rest := stream; len(rest) > 0; {
			n := rand.Intn(len(rest)) + 1
			d.FeedAll(rest[:n], func(r Result) { split = append(split, r) })
			rest = rest[n:]
		}
		require.Equal(t, whole, split)
	}
}

func TestDecoderFeedInto(t *testing.T) {
	d := NewDecoder(DefaultLayout)
	buf := make([]byte, DefaultMaxPayload)
	frame, err := Encode([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	var r Result
	for _, b := range frame {
		r = d.FeedInto(b, buf)
	}
	require.Equal(t, ResultPacket, r.Kind)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, r.Payload)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, buf[:3])

	// buffer untouched on failed frames
	buf[0] = 0xee
	for _, b := range []byte{HeaderByte, 0x01, 0x55, 0x00} {
		r = d.FeedInto(b, buf)
	}
	require.Equal(t, ResultChecksumError, r.Kind)
	require.Equal(t, byte(0xee), buf[0])

	// short buffer is replaced
	short := make([]byte, 1)
	for _, b := range frame {
		r = d.FeedInto(b, short)
	}
	require.Equal(t, ResultPacket, r.Kind)
	require.Len(t, r.Payload, 3)
}

func TestResultErr(t *testing.T) {
	d := NewDecoder(DefaultLayout)
	var r Result
	for _, b := range []byte{HeaderByte, 0x0b} {
		r = d.Feed(b)
	}
	err := r.Err()
	require.ErrorIs(t, err, ErrSizeError)
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	require.Equal(t, 11, de.Length)

	for _, b := range []byte{HeaderByte, 0x01, 0x02, 0x03} {
		r = d.Feed(b)
	}
	require.True(t, errors.As(r.Err(), &de))
	require.Equal(t, ResultChecksumError, de.Kind)
	require.Equal(t, byte(0x02), de.Want)
	require.Equal(t, byte(0x03), de.Got)

	require.NoError(t, d.Feed(AckByte).Err())
}

func TestParseControlKind(t *testing.T) {
	for _, c := range []ControlKind{ControlAck, ControlNak, ControlIam} {
		parsed, err := ParseControlKind(c.String())
		require.NoError(t, err)
		require.Equal(t, c, parsed)
		require.True(t, c.IsValid())
	}
	_, err := ParseControlKind("syn")
	require.Error(t, err)
	require.False(t, ControlKind(HeaderByte).IsValid())
}
