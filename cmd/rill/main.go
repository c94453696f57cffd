// Copyright 2018 The rill Authors
// This file is part of rill.
//
// rill is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// rill is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with rill. If not, see <http://www.gnu.org/licenses/>.

// rill is the command line client for the rill payment-channel network.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"gopkg.in/urfave/cli.v1"

	"github.com/rillnet/rill/datasync/eventpub"
	"github.com/rillnet/rill/log"
	"github.com/rillnet/rill/node"
	"github.com/rillnet/rill/storage/database"
	"github.com/rillnet/rill/transfer"
)

const clientIdentifier = "rill" // Client identifier, used as the application name

var logger = log.NewModuleLogger(log.CMD)

var (
	ConfigFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	DataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the databases",
		Value: node.DefaultConfig.DataDir,
	}
	DBTypeFlag = cli.StringFlag{
		Name:  "dbtype",
		Usage: "Database backend to use (leveldb, badger, memory)",
		Value: string(node.DefaultConfig.DBType),
	}
	PartitionedDBFlag = cli.BoolFlag{
		Name:  "db.partitioned",
		Usage: "Use a separated database per entry type",
	}
	LevelDBCacheSizeFlag = cli.IntFlag{
		Name:  "db.leveldb.cache-size",
		Usage: "Size of in-memory cache in LevelDB (MiB)",
		Value: node.DefaultConfig.LevelDBCacheSize,
	}
	LevelDBHandlesFlag = cli.IntFlag{
		Name:  "db.leveldb.handles",
		Usage: "Number of open files for LevelDB",
		Value: node.DefaultConfig.LevelDBHandles,
	}
	AddressFlag = cli.StringFlag{
		Name:  "address",
		Usage: "On-chain address of this node",
	}
	RegistryAddressFlag = cli.StringFlag{
		Name:  "registry",
		Usage: "Address of the default payment network registry",
	}
	PRGSeedFlag = cli.Int64Flag{
		Name:  "prgseed",
		Usage: "Seed of the deterministic generator, ignored once a snapshot exists",
	}
	KafkaBrokersFlag = cli.StringFlag{
		Name:  "kafka.brokers",
		Usage: "Comma separated kafka broker URLs for event publishing",
	}
	KafkaTopicFlag = cli.StringFlag{
		Name:  "kafka.topic",
		Usage: "Kafka topic the events are published to",
		Value: eventpub.DefaultTopic,
	}
)

var nodeFlags = []cli.Flag{
	ConfigFileFlag,
	DataDirFlag,
	DBTypeFlag,
	PartitionedDBFlag,
	LevelDBCacheSizeFlag,
	LevelDBHandlesFlag,
	AddressFlag,
	RegistryAddressFlag,
	PRGSeedFlag,
	KafkaBrokersFlag,
	KafkaTopicFlag,
}

func main() {
	app := cli.NewApp()
	app.Name = clientIdentifier
	app.Usage = "the rill payment-channel network node"
	app.Version = "0.1.0"
	app.Action = runNode
	app.Flags = nodeFlags
	app.Commands = []cli.Command{
		dumpConfigCommand,
	}
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runNode is the main entry point into the system if no special subcommand
// is ran. It boots the node service and blocks until it is shut down.
func runNode(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}

	dbm, err := database.NewDBManager(cfg.Node.DBConfig())
	if err != nil {
		return err
	}
	defer dbm.Close()

	var publisher *eventpub.Publisher
	if len(cfg.Node.KafkaBrokers) > 0 {
		kafkaConfig := eventpub.GetDefaultKafkaConfig()
		kafkaConfig.Brokers = cfg.Node.KafkaBrokers
		if cfg.Node.KafkaTopic != "" {
			kafkaConfig.Topic = cfg.Node.KafkaTopic
		}
		publisher, err = eventpub.NewPublisher(kafkaConfig)
		if err != nil {
			return err
		}
	}

	// TODO: replace the placeholders with the channel and mediated-transfer
	// machines once they are merged.
	stateMachine := transfer.NewStateMachine(
		placeholderChannelMachine{},
		placeholderTokenNetworkMachine{},
		placeholderPaymentMachine{},
		placeholderPaymentMachine{},
		placeholderTargetMachine{},
	)

	service := node.NewService(&cfg.Node, dbm, publisher, stateMachine, placeholderRouting{})
	if err := service.Start(); err != nil {
		return err
	}
	defer service.Stop()

	logger.Info("Node started", "address", cfg.Node.Address, "registry", cfg.Node.RegistryAddress, "datadir", cfg.Node.DataDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", "signal", sig)

	return nil
}
