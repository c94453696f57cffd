// Copyright 2018 The rill Authors
// This file is part of the rill library.
//
// The rill library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The rill library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the rill library. If not, see <http://www.gnu.org/licenses/>.

package node

import (
	"github.com/rillnet/rill/common"
	"github.com/rillnet/rill/storage/database"
)

// Config collects the service settings resolved from flags and the TOML
// config file.
type Config struct {
	// DataDir is the root of the persistent store.
	DataDir string

	// Address is this node's on-chain address.
	Address common.Address

	// RegistryAddress is the default payment network registry.
	RegistryAddress common.Address

	// PRGSeed seeds the deterministic generator on first start. It is
	// ignored once a snapshot exists.
	PRGSeed int64

	// Database settings.
	DBType           database.DBType
	PartitionedDB    bool
	LevelDBCacheSize int
	LevelDBHandles   int

	// Kafka event publishing, disabled when Brokers is empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// DefaultConfig holds the defaults applied before flag resolution.
var DefaultConfig = Config{
	DataDir:          "rill-data",
	DBType:           database.LevelDB,
	LevelDBCacheSize: 128,
	LevelDBHandles:   256,
}

// DBConfig derives the database configuration.
func (c *Config) DBConfig() *database.DBConfig {
	return &database.DBConfig{
		Dir:              c.DataDir,
		DBType:           c.DBType,
		Partitioned:      c.PartitionedDB,
		LevelDBCacheSize: c.LevelDBCacheSize,
		LevelDBHandles:   c.LevelDBHandles,
	}
}
