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

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"unicode"

	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"

	"github.com/rillnet/rill/common"
	"github.com/rillnet/rill/node"
	"github.com/rillnet/rill/storage/database"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type rillConfig struct {
	Node node.Config
}

func loadConfig(file string, cfg *rillConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig resolves the configuration from defaults, the optional TOML
// file and the command line flags, in that order.
func makeConfig(ctx *cli.Context) (*rillConfig, error) {
	cfg := &rillConfig{Node: node.DefaultConfig}

	if file := ctx.GlobalString(ConfigFileFlag.Name); file != "" {
		if err := loadConfig(file, cfg); err != nil {
			return nil, err
		}
	}

	if ctx.GlobalIsSet(DataDirFlag.Name) {
		cfg.Node.DataDir = ctx.GlobalString(DataDirFlag.Name)
	}
	if ctx.GlobalIsSet(DBTypeFlag.Name) {
		cfg.Node.DBType = database.DBType(ctx.GlobalString(DBTypeFlag.Name))
	}
	if ctx.GlobalIsSet(PartitionedDBFlag.Name) {
		cfg.Node.PartitionedDB = ctx.GlobalBool(PartitionedDBFlag.Name)
	}
	if ctx.GlobalIsSet(LevelDBCacheSizeFlag.Name) {
		cfg.Node.LevelDBCacheSize = ctx.GlobalInt(LevelDBCacheSizeFlag.Name)
	}
	if ctx.GlobalIsSet(LevelDBHandlesFlag.Name) {
		cfg.Node.LevelDBHandles = ctx.GlobalInt(LevelDBHandlesFlag.Name)
	}
	if ctx.GlobalIsSet(AddressFlag.Name) {
		cfg.Node.Address = common.HexToAddress(ctx.GlobalString(AddressFlag.Name))
	}
	if ctx.GlobalIsSet(RegistryAddressFlag.Name) {
		cfg.Node.RegistryAddress = common.HexToAddress(ctx.GlobalString(RegistryAddressFlag.Name))
	}
	if ctx.GlobalIsSet(PRGSeedFlag.Name) {
		cfg.Node.PRGSeed = ctx.GlobalInt64(PRGSeedFlag.Name)
	}
	if ctx.GlobalIsSet(KafkaBrokersFlag.Name) {
		brokers := strings.Split(ctx.GlobalString(KafkaBrokersFlag.Name), ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		cfg.Node.KafkaBrokers = brokers
	}
	if ctx.GlobalIsSet(KafkaTopicFlag.Name) {
		cfg.Node.KafkaTopic = ctx.GlobalString(KafkaTopicFlag.Name)
	}

	return cfg, nil
}

var dumpConfigCommand = cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Show configuration values",
	ArgsUsage:   "",
	Flags:       nodeFlags,
	Category:    "MISCELLANEOUS COMMANDS",
	Description: `The dumpconfig command shows configuration values.`,
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}

	out, err := tomlSettings.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}
