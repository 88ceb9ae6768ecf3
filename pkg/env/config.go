// Package env provides common options to setup a link from command line
// flags, environment variables and an optional TOML file.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/robotalks/pktlink/pkg/l0/comm"
	"github.com/robotalks/pktlink/pkg/l0/evtq"
	"github.com/robotalks/pktlink/pkg/transport"
)

// Config provides common options to setup a link.
type Config struct {
	// Node names this link in MQTT topics.
	Node string
	// LinkURL specifies the link to open.
	// e.g. serial:///dev/ttyUSB0?baud=115200, tcp://host:port
	LinkURL string
	// MQTTBrokerURL specifies the MQTT broker to bridge to, empty disables it.
	// e.g. mqtt://host:port/topic-prefix/
	MQTTBrokerURL string

	MaxPayload    int
	CommandPrefix bool
	SkipChecksum  bool
	AutoReply     bool
	Announce      bool

	QueueDepth   int
	QueueWidth   int
	PollInterval time.Duration

	// Buttons selects the input device for button events: empty disables,
	// "auto" detects, otherwise the device index.
	Buttons string

	// ConfigFile is a TOML file loaded by Load.
	ConfigFile string
}

type fileConfig struct {
	Node          string `toml:"node"`
	Link          string `toml:"link"`
	MQTT          string `toml:"mqtt"`
	MaxPayload    int    `toml:"max_payload"`
	CommandPrefix bool   `toml:"command_prefix"`
	SkipChecksum  bool   `toml:"skip_checksum"`
	AutoReply     bool   `toml:"auto_reply"`
	Announce      bool   `toml:"announce"`
	QueueDepth    int    `toml:"queue_depth"`
	QueueWidth    int    `toml:"queue_width"`
	PollInterval  string `toml:"poll_interval"`
	Buttons       string `toml:"buttons"`
}

var defaultConfig = Config{
	LinkURL:      "serial:///dev/ttyUSB0",
	MaxPayload:   comm.DefaultMaxPayload,
	QueueDepth:   evtq.DefaultDepth,
	QueueWidth:   evtq.DefaultWidth,
	PollInterval: 10 * time.Millisecond,
}

func init() {
	if val := os.Getenv("PKTLINK_LINK"); val != "" {
		defaultConfig.LinkURL = val
	}
	if val := os.Getenv("PKTLINK_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("PKTLINK_CONFIG"); val != "" {
		defaultConfig.ConfigFile = val
	}
	if val := os.Getenv("PKTLINK_NODE"); val != "" {
		defaultConfig.Node = val
	} else {
		defaultConfig.Node = MachineID()
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	defaultConfig.SetupFlagSet(flag.CommandLine)
}

// SetupFlagSet registers flags bound to c.
func (c *Config) SetupFlagSet(fs *flag.FlagSet) {
	fs.StringVar(&c.Node, "node", c.Node, "Node name used in MQTT topics.")
	fs.StringVar(&c.LinkURL, "link", c.LinkURL, "Link URL (serial://, tcp://, ws://).")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL, empty to disable.")
	fs.IntVar(&c.MaxPayload, "max-payload", c.MaxPayload, "Max payload size in a frame.")
	fs.BoolVar(&c.CommandPrefix, "command-prefix", c.CommandPrefix, "Payloads start with command class and code.")
	fs.BoolVar(&c.SkipChecksum, "skip-checksum", c.SkipChecksum, "Don't verify frame checksums.")
	fs.BoolVar(&c.AutoReply, "auto-reply", c.AutoReply, "Reply ACK/NAK to received frames.")
	fs.BoolVar(&c.Announce, "announce", c.Announce, "Send IAM when the link starts.")
	fs.IntVar(&c.QueueDepth, "queue-depth", c.QueueDepth, "Event queue slots.")
	fs.IntVar(&c.QueueWidth, "queue-width", c.QueueWidth, "Event queue slot size.")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Event loop polling interval.")
	fs.StringVar(&c.Buttons, "buttons", c.Buttons, "Input device for button events, \"auto\" to detect.")
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "TOML config file.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// ExplicitFlags returns names of flags set on the command line.
func ExplicitFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// LoadFile loads a TOML file. Keys named by flags in explicit are skipped
// so command line flags win over the file.
func (c *Config) LoadFile(path string, explicit map[string]bool) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config %s: unknown keys %v", path, undecoded)
	}
	defined := func(key string) bool {
		return meta.IsDefined(key) && !explicit[strings.ReplaceAll(key, "_", "-")]
	}
	if defined("node") {
		c.Node = strings.TrimSpace(raw.Node)
	}
	if defined("link") {
		c.LinkURL = strings.TrimSpace(raw.Link)
	}
	if defined("mqtt") {
		c.MQTTBrokerURL = strings.TrimSpace(raw.MQTT)
	}
	if defined("max_payload") {
		c.MaxPayload = raw.MaxPayload
	}
	if defined("command_prefix") {
		c.CommandPrefix = raw.CommandPrefix
	}
	if defined("skip_checksum") {
		c.SkipChecksum = raw.SkipChecksum
	}
	if defined("auto_reply") {
		c.AutoReply = raw.AutoReply
	}
	if defined("announce") {
		c.Announce = raw.Announce
	}
	if defined("queue_depth") {
		c.QueueDepth = raw.QueueDepth
	}
	if defined("queue_width") {
		c.QueueWidth = raw.QueueWidth
	}
	if defined("buttons") {
		c.Buttons = strings.TrimSpace(raw.Buttons)
	}
	if defined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return fmt.Errorf("parse poll_interval: %w", err)
		}
		c.PollInterval = d
	}
	return nil
}

// Load loads ConfigFile if specified and validates the config.
func (c *Config) Load() error {
	if c.ConfigFile != "" {
		if err := c.LoadFile(c.ConfigFile, ExplicitFlags(flag.CommandLine)); err != nil {
			return err
		}
	}
	return c.Validate()
}

// MustLoad loads the config and fails on error.
func (c *Config) MustLoad() *Config {
	if err := c.Load(); err != nil {
		log.Fatalln(err)
	}
	return c
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.Node == "" || strings.ContainsAny(c.Node, "/+#") {
		return fmt.Errorf("invalid node name %q", c.Node)
	}
	if c.LinkURL == "" {
		return fmt.Errorf("link URL must be specified")
	}
	layout := c.Layout()
	if err := layout.Validate(); err != nil {
		return err
	}
	if c.QueueWidth < layout.PayloadLimit()+2 {
		return fmt.Errorf("queue width %d can't hold payload of %d bytes", c.QueueWidth, layout.PayloadLimit())
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("invalid poll interval %v", c.PollInterval)
	}
	if _, _, err := c.ButtonDevice(); err != nil {
		return err
	}
	return nil
}

// ButtonDevice parses Buttons into a device index, -1 for detection.
func (c *Config) ButtonDevice() (index int, enabled bool, err error) {
	switch c.Buttons {
	case "":
		return 0, false, nil
	case "auto":
		return -1, true, nil
	}
	index, err = strconv.Atoi(c.Buttons)
	if err != nil || index < 0 {
		return 0, false, fmt.Errorf("invalid buttons device %q", c.Buttons)
	}
	return index, true, nil
}

// Layout returns the frame layout.
func (c *Config) Layout() comm.Layout {
	return comm.Layout{
		MaxPayload:    c.MaxPayload,
		CommandPrefix: c.CommandPrefix,
		SkipChecksum:  c.SkipChecksum,
	}
}

// NewQueue creates the event queue.
func (c *Config) NewQueue() (*evtq.Queue, error) {
	return evtq.New(c.QueueDepth, c.QueueWidth)
}

// NewLink creates a Link over conn using the config.
func (c *Config) NewLink(conn *transport.Conn) *comm.Link {
	link := comm.NewLink(conn, c.Layout())
	link.ReadTimeout = conn.ReadTimeout
	link.AutoReply = c.AutoReply
	return link
}

// OpenLink opens LinkURL and creates a Link.
func (c *Config) OpenLink() (*transport.Conn, *comm.Link, error) {
	conn, err := transport.Open(c.LinkURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open link %s: %w", c.LinkURL, err)
	}
	return conn, c.NewLink(conn), nil
}
