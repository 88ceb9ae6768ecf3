// Package mqtt bridges a link to an MQTT broker.
//
// Received events are published under <node>/rx/..., and frames to send
// are taken from <node>/tx. <node>/status is "online" while the bridge is
// connected and falls back to "offline" through the will message.
package mqtt

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/pktlink/pkg/framework"
	"github.com/robotalks/pktlink/pkg/l0/comm"
	"github.com/robotalks/pktlink/pkg/l0/evtq"
)

// Topics relative to the node.
const (
	TopicRxPacket  = "rx/packet"
	TopicRxControl = "rx/control"
	TopicRxError   = "rx/error"
	TopicRxButton  = "rx/button"
	TopicTx        = "tx"
	TopicTxControl = "tx/control"
	TopicStatus    = "status"

	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Publisher publishes a message and waits for completion.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Sender writes to the link, implemented by *comm.Link.
type Sender interface {
	SendPayload([]byte) error
	SendControl(comm.ControlKind) error
}

// Bridge publishes event records and forwards tx messages to the link.
type Bridge struct {
	Node      string
	PubSub    *PubSub
	Publisher Publisher
	Sender    Sender

	subs []*Subscription
}

// NodeTopic joins node and a relative topic.
func NodeTopic(node, topic string) string {
	return node + "/" + topic
}

// ParseNodeTopic splits a topic into node and the relative topic.
func ParseNodeTopic(topic string) (node, rel string, ok bool) {
	pos := strings.Index(topic, "/")
	if pos <= 0 || pos+1 >= len(topic) {
		return "", "", false
	}
	return topic[:pos], topic[pos+1:], true
}

// TopicFor maps a record to the topic and payload to publish.
func TopicFor(node string, rec evtq.Record) (topic string, payload []byte, ok bool) {
	switch rec.Code() {
	case evtq.EvtRxPacket:
		if payload, ok = rec.Packet(); ok {
			topic = NodeTopic(node, TopicRxPacket)
		}
	case evtq.EvtRxControl:
		var b byte
		if b, ok = rec.Arg(0); ok {
			topic, payload = NodeTopic(node, TopicRxControl), []byte(comm.ControlKind(b).String())
		}
	case evtq.EvtRxError:
		var kind byte
		if kind, ok = rec.Arg(0); ok {
			topic = NodeTopic(node, TopicRxError)
			switch kind {
			case evtq.RxErrSize:
				payload = []byte("size")
			case evtq.RxErrChecksum:
				payload = []byte("checksum")
			default:
				payload = []byte(fmt.Sprintf("%d", kind))
			}
		}
	case evtq.EvtButtonInput:
		if len(rec) >= 3 {
			topic, payload, ok = NodeTopic(node, TopicRxButton), []byte{rec[1], rec[2]}, true
		}
	}
	return
}

// NewBridge creates a Bridge connecting to brokerURL.
func NewBridge(brokerURL, node string, sender Sender) (*Bridge, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+NodeTopic(node, TopicStatus), []byte(StatusOffline), 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("pktlink:" + node)
	}
	b := &Bridge{
		Node:   node,
		PubSub: NewPubSub(opts, topicPrefix),
		Sender: sender,
	}
	b.Publisher = b.PubSub
	b.PubSub.OnConnect = func(*PubSub) { b.onConnected() }
	b.Attach(b.PubSub)
	return b, nil
}

// Attach subscribes tx topics on ps.
func (b *Bridge) Attach(ps *PubSub) {
	b.subs = append(b.subs,
		ps.Sub(NodeTopic(b.Node, TopicTx), b.HandleTx),
		ps.Sub(NodeTopic(b.Node, TopicTxControl), b.HandleTxControl),
	)
}

// HandleRecord implements evtq.Handler.
func (b *Bridge) HandleRecord(ctx context.Context, rec evtq.Record) error {
	topic, payload, ok := TopicFor(b.Node, rec)
	if !ok {
		glog.V(2).Infof("bridge skipped %v", rec)
		return nil
	}
	return b.Publisher.Publish(topic, payload)
}

// HandleTx sends the message payload as a frame.
func (b *Bridge) HandleTx(topic string, payload []byte) {
	if err := b.Sender.SendPayload(payload); err != nil {
		glog.Errorf("send %q [% x] error: %v", topic, payload, err)
	}
}

// HandleTxControl sends a control byte named by the payload.
func (b *Bridge) HandleTxControl(topic string, payload []byte) {
	c, err := comm.ParseControlKind(strings.TrimSpace(string(payload)))
	if err == nil {
		err = b.Sender.SendControl(c)
	}
	if err != nil {
		glog.Errorf("send %q %q error: %v", topic, payload, err)
	}
}

// AddToLoop implements framework.LoopAdder.
func (b *Bridge) AddToLoop(loop *framework.Loop) {
	loop.AddRunnable(framework.NamedRun("mqtt-bridge", b))
}

// Run implements framework.Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	if token := b.PubSub.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	<-ctx.Done()
	for _, sub := range b.subs {
		sub.Close()
	}
	b.PubSub.PubWith(NodeTopic(b.Node, TopicStatus), []byte(StatusOffline), 1, true).Wait()
	b.PubSub.Close()
	return nil
}

func (b *Bridge) onConnected() {
	b.PubSub.PubWith(NodeTopic(b.Node, TopicStatus), []byte(StatusOnline), 1, true)
}
