package main

import (
	"context"
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/pktlink/pkg/bridge/mqtt"
	"github.com/robotalks/pktlink/pkg/env"
	fx "github.com/robotalks/pktlink/pkg/framework"
	"github.com/robotalks/pktlink/pkg/input/buttons"
	"github.com/robotalks/pktlink/pkg/l0/comm"
	"github.com/robotalks/pktlink/pkg/l0/evtq"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func logRecord(node string) evtq.Handler {
	return evtq.HandleRecordFunc(func(ctx context.Context, rec evtq.Record) error {
		glog.V(1).Infof("[%s] %s", node, rec)
		return nil
	})
}

func main() {
	flag.Parse()
	conf := env.NewConfig().MustLoad()

	queue, err := conf.NewQueue()
	if err != nil {
		log.Fatalln(err)
	}
	conn, link, err := conf.OpenLink()
	if err != nil {
		log.Fatalln(err)
	}
	link.Queue = queue

	loop := fx.NewLoop()
	loop.Interval = conf.PollInterval
	link.Notify = loop.TriggerNext

	handlers := evtq.Handlers{logRecord(conf.Node)}
	if conf.MQTTBrokerURL != "" {
		bridge, err := mqtt.NewBridge(conf.MQTTBrokerURL, conf.Node, link)
		if err != nil {
			log.Fatalln(err)
		}
		handlers = append(handlers, bridge)
		loop.Add(bridge)
	}
	loop.Add(&evtq.Drainer{Queue: queue, Handler: handlers})
	if index, enabled, _ := conf.ButtonDevice(); enabled {
		btnQueue, err := conf.NewQueue()
		if err != nil {
			log.Fatalln(err)
		}
		src := buttons.NewSource(index, btnQueue)
		src.Handler = handlers
		loop.Add(src)
	}
	loop.AddRunnable(fx.NamedRun("link", fx.RunFunc(func(ctx context.Context) error {
		if conf.Announce {
			if err := link.SendControl(comm.ControlIam); err != nil {
				return err
			}
		}
		return fx.RunWithContextCloser(ctx, conn, func() error {
			return link.Run(ctx)
		})
	})))

	glog.Infof("node %s on %s", conf.Node, conf.LinkURL)
	err = fx.NewRunner().
		HandleSignals().
		Go(fx.NamedRun("loop", loop)).
		Wait()
	if err != nil {
		log.Fatalln(err)
	}
}
