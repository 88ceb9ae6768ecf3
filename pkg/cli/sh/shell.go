package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/pktlink/pkg/env"
	fx "github.com/robotalks/pktlink/pkg/framework"
	"github.com/robotalks/pktlink/pkg/l0/comm"
	"github.com/robotalks/pktlink/pkg/transport"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoOpen    bool
	Timeout     time.Duration

	Shell  *ishell.Shell
	Config *env.Config
	Loop   *LinkLoop
}

// LinkLoop is a running loop with an opened link.
type LinkLoop struct {
	Ctx    context.Context
	Cancel func()
	URL    string
	Conn   *transport.Conn
	Client *comm.Client
	Loop   *fx.Loop
}

const (
	shellKey       = "$shell"
	unopenedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	autoOpen   bool
	timeout    = time.Second

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.BoolVar(&autoOpen, "open", autoOpen, "Open the link on start.")
	flag.DurationVar(&timeout, "timeout", timeout, "Time to wait for ACK/NAK.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		AutoOpen:    autoOpen,
		Timeout:     timeout,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unopenedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requires an opened link.
func MustBeOpen(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Loop == nil {
			c.Err(fmt.Errorf("link not open"))
			return
		}
		fn(c)
	}
}

// Print prints v as JSON when OutputJSON is set, otherwise as text.
func (s *Shell) Print(c *ishell.Context, v interface{}) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(v)
}

// Do sends a request and waits for ACK or NAK.
func (s *Shell) Do(c *ishell.Context, req *comm.Request) error {
	select {
	case err := <-req.ResultChan():
		if err != nil {
			c.Err(err)
			return err
		}
		c.Println("ACK")
		return nil
	case <-time.After(s.Timeout):
		c.Err(fmt.Errorf("no reply in %v", s.Timeout))
		return context.DeadlineExceeded
	}
}

// Open opens a link and runs it in background.
func (s *Shell) Open(linkURL string) error {
	s.Close()
	conf := *s.Config
	conf.LinkURL = linkURL
	conn, link, err := conf.OpenLink()
	if err != nil {
		return err
	}
	ll := &LinkLoop{
		URL:    linkURL,
		Conn:   conn,
		Client: comm.NewClient(link),
		Loop:   fx.NewLoop(),
	}
	ll.Ctx, ll.Cancel = context.WithCancel(context.Background())
	ll.Loop.AddRunnable(
		fx.NamedRun("link", fx.RunFunc(func(ctx context.Context) error {
			return fx.RunWithContextCloser(ctx, conn, func() error {
				return ll.Client.Run(ctx)
			})
		})),
		fx.NamedRun("printer", fx.RunFunc(s.printReceived(ll.Client))),
	)
	s.Loop = ll
	go func() {
		if err := ll.Loop.Run(ll.Ctx); err != nil && ll.Ctx.Err() == nil {
			s.Shell.Printf("link %s stopped: %v\n", linkURL, err)
		}
	}()
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", linkURL))
	return nil
}

// Close closes current link.
func (s *Shell) Close() {
	if s.Loop != nil {
		s.Loop.Cancel()
		s.Loop = nil
		s.Shell.SetPrompt(unopenedPrompt)
	}
}

func (s *Shell) printReceived(client *comm.Client) func(context.Context) error {
	layout := client.Link().Layout
	return func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case p := <-client.PayloadChan():
				s.Shell.Printf("<< %s\n", layout.Format(p))
			case ctl := <-client.ControlChan():
				s.Shell.Printf("<< %s\n", ctl)
			case err := <-client.ErrorChan():
				s.Shell.Printf("<< %v\n", err)
			}
		}
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoOpen {
		if s.Interactive {
			s.Shell.Printf("Opening %s ...\n", s.Config.LinkURL)
		}
		if err := s.Open(s.Config.LinkURL); err != nil {
			log.Fatalf("open %q failed: %v", s.Config.LinkURL, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// OpenCmd opens a link.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "[URL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			linkURL := s.Config.LinkURL
			if len(c.Args) > 0 {
				linkURL = c.Args[0]
			}
			if err := s.Open(linkURL); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes current link.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig().MustLoad()).Run(flag.Args()...)
}
