// Package main launches a beacon chain node: the runtime orchestrator that
// binds quarantines, block processing, consensus bookkeeping, sync, gossip,
// the slot scheduler, and duty dispatch into one running process.
package main

import (
	"os"
	"runtime"
	runtimeDebug "runtime/debug"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/node"
	"github.com/prysmaticlabs/beacon-orchestrator/shared/cmd"
	"github.com/prysmaticlabs/beacon-orchestrator/shared/version"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "main")

func main() {
	app := cli.App{}
	app.Name = "beacon-chain"
	app.Usage = "runs a beacon chain node for Ethereum's consensus layer"
	app.Action = startNode
	app.Version = version.BuildData()
	app.Flags = cmd.Flags

	app.Before = func(ctx *cli.Context) error {
		runtime.GOMAXPROCS(runtime.NumCPU())
		return nil
	}

	defer func() {
		if x := recover(); x != nil {
			log.Errorf("Runtime panic: %v\n%v", x, string(runtimeDebug.Stack()))
			panic(x)
		}
	}()

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func startNode(ctx *cli.Context) error {
	beacon, err := node.New(ctx)
	if err != nil {
		return err
	}
	beacon.Start()
	return nil
}
