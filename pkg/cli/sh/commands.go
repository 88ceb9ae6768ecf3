package sh

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/pktlink/pkg/l0/comm"
)

// ParseByte parses a byte in decimal or 0x-prefixed hex.
func ParseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q", s)
	}
	return byte(v), nil
}

// ParseBytes parses hex bytes, each arg being like "f5", "0xf5" or "f5022a".
func ParseBytes(args []string) ([]byte, error) {
	var out []byte
	for _, arg := range args {
		s := strings.TrimPrefix(strings.ToLower(arg), "0x")
		if len(s)%2 != 0 {
			s = "0" + s
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q", arg)
		}
		out = append(out, b...)
	}
	return out, nil
}

// DecodeBytes runs bytes through a fresh Decoder and formats the results.
func DecodeBytes(layout comm.Layout, p []byte) (lines []string) {
	d := comm.NewDecoder(layout)
	d.FeedAll(p, func(r comm.Result) {
		switch r.Kind {
		case comm.ResultPacket:
			lines = append(lines, layout.Format(r.Payload))
		case comm.ResultControl:
			lines = append(lines, r.Control.String())
		case comm.ResultSizeError, comm.ResultChecksumError:
			lines = append(lines, r.Err().Error())
		case comm.ResultInProgress:
		}
	})
	if st := d.State(); st != comm.AwaitingHeader {
		lines = append(lines, fmt.Sprintf("incomplete, awaiting %s", st))
	}
	return
}

func parsePacketArgs(args []string) (*comm.Packet, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("CLASS CMD expected")
	}
	class, err := ParseByte(args[0])
	if err != nil {
		return nil, err
	}
	cmd, err := ParseByte(args[1])
	if err != nil {
		return nil, err
	}
	if !comm.ValidCommand(class, cmd) {
		return nil, fmt.Errorf("invalid command 0x%02x of class 0x%02x", cmd, class)
	}
	data, err := ParseBytes(args[2:])
	if err != nil {
		return nil, err
	}
	return &comm.Packet{Class: class, Command: cmd, Data: data}, nil
}

func controlCmd(kind comm.ControlKind) *ishell.Cmd {
	return &ishell.Cmd{
		Name: strings.ToLower(kind.String()),
		Help: "",
		Func: MustBeOpen(func(c *ishell.Context) {
			if err := ShellFrom(c).Loop.Client.Link().SendControl(kind); err != nil {
				c.Err(err)
			}
		}),
	}
}

var (
	// SendCmd sends a command packet and waits for ACK/NAK.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "CLASS CMD [DATA...]",
		Func: MustBeOpen(func(c *ishell.Context) {
			pkt, err := parsePacketArgs(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			s.Do(c, s.Loop.Client.Start(pkt))
		}),
	}

	// RawCmd sends a frame with the given payload and waits for ACK/NAK.
	RawCmd = ishell.Cmd{
		Name: "raw",
		Help: "BYTES...",
		Func: MustBeOpen(func(c *ishell.Context) {
			payload, err := ParseBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			s.Do(c, s.Loop.Client.StartPayload(payload))
		}),
	}

	// ReportCmd sends a typed report.
	ReportCmd = ishell.Cmd{
		Name: "report",
		Help: "CLASS CODE VALUE",
		Func: MustBeOpen(func(c *ishell.Context) {
			if len(c.Args) != 3 {
				c.Err(fmt.Errorf("CLASS CODE VALUE expected"))
				return
			}
			class, err := ParseByte(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			code, err := ParseByte(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			value, err := strconv.ParseInt(c.Args[2], 0, 64)
			if err != nil {
				c.Err(err)
				return
			}
			pkt, err := comm.NewReport(class, code, value)
			if err != nil {
				c.Err(err)
				return
			}
			if err := ShellFrom(c).Loop.Client.Send(pkt); err != nil {
				c.Err(err)
			}
		}),
	}

	// EncodeCmd prints the frame of a payload.
	EncodeCmd = ishell.Cmd{
		Name: "encode",
		Help: "BYTES...",
		Func: func(c *ishell.Context) {
			payload, err := ParseBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			frame, err := ShellFrom(c).Config.Layout().Encode(payload)
			if err != nil {
				c.Err(err)
				return
			}
			ShellFrom(c).Print(c, hex.EncodeToString(frame))
		},
	}

	// DecodeCmd decodes bytes offline.
	DecodeCmd = ishell.Cmd{
		Name: "decode",
		Help: "BYTES...",
		Func: func(c *ishell.Context) {
			p, err := ParseBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			lines := DecodeBytes(s.Config.Layout(), p)
			if s.OutputJSON {
				s.Print(c, lines)
				return
			}
			for _, line := range lines {
				c.Println(line)
			}
		},
	}

	// StatsCmd prints link counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: MustBeOpen(func(c *ishell.Context) {
			s := ShellFrom(c)
			st := s.Loop.Client.Link().Stats()
			if s.OutputJSON {
				s.Print(c, st)
				return
			}
			c.Printf("packets %d controls %d size-errors %d checksum-errors %d dropped %d in %d out %d\n",
				st.Packets, st.Controls, st.SizeErrors, st.ChecksumErrors, st.Dropped, st.BytesIn, st.BytesOut)
		}),
	}
)

func init() {
	AddCmds(
		&SendCmd,
		&RawCmd,
		&ReportCmd,
		&EncodeCmd,
		&DecodeCmd,
		&StatsCmd,
		controlCmd(comm.ControlAck),
		controlCmd(comm.ControlNak),
		controlCmd(comm.ControlIam),
	)
}
