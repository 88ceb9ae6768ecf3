package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/robotalks/pktlink/pkg/bridge/mqtt"
	"github.com/robotalks/pktlink/pkg/l0/comm"
)

//go-build: CGO_ENABLED=0

var (
	mqttURL       = os.Getenv("PKTLINK_MQTT_URL")
	commandLayout bool
)

func init() {
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.BoolVar(&commandLayout, "command-prefix", commandLayout, "Decode packets as CLASS CMD DATA.")
}

func format(rel string, payload []byte) string {
	switch rel {
	case mqtt.TopicRxPacket:
		layout := comm.DefaultLayout
		layout.CommandPrefix = commandLayout
		return layout.Format(payload)
	case mqtt.TopicRxControl, mqtt.TopicRxError, mqtt.TopicStatus:
		return string(payload)
	}
	return fmt.Sprintf("[% x]", payload)
}

func main() {
	flag.Parse()
	ps, err := mqtt.NewPubSubFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	handler := func(topic string, payload []byte) {
		node, rel, ok := mqtt.ParseNodeTopic(topic)
		if !ok {
			log.Printf("%s: [% x]", topic, payload)
			return
		}
		log.Printf("%s %s: %s", node, rel, format(rel, payload))
	}
	ps.Sub(mqtt.NodeTopic("+", "rx/#"), handler)
	ps.Sub(mqtt.NodeTopic("+", mqtt.TopicStatus), handler)
	if token := ps.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
