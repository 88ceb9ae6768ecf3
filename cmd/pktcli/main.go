package main

import (
	"github.com/robotalks/pktlink/pkg/cli/sh"
	"github.com/robotalks/pktlink/pkg/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
