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

package database

import (
	"github.com/rcrowley/go-metrics"
	"github.com/syndtr/goleveldb/leveldb"
	leveldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/rillnet/rill/log"
)

// OpenFileLimit is not read by this backend; the number of open files is
// the numHandles argument of NewLDBDatabase.
var OpenFileLimit = 64

type levelDB struct {
	fn string      // filename for reporting
	db *leveldb.DB // LevelDB instance

	writeMeter metrics.Meter // Meter for measuring the data written
	readMeter  metrics.Meter // Meter for measuring the data read
	missMeter  metrics.Meter // Meter for measuring the missed reads

	logger log.Logger // Contextual logger tracking the database path
}

func getLDBOptions(ldbCacheSize, numHandles int) *opt.Options {
	return &opt.Options{
		OpenFilesCacheCapacity: numHandles,
		BlockCacheCapacity:     ldbCacheSize / 2 * opt.MiB,
		WriteBuffer:            ldbCacheSize / 4 * opt.MiB, // Two of these are used internally
		Filter:                 filter.NewBloomFilter(10),
	}
}

// NewLDBDatabase opens (or creates) a leveldb backed Database, recovering
// the store if it was corrupted.
func NewLDBDatabase(file string, ldbCacheSize, numHandles int) (*levelDB, error) {
	localLogger := logger.NewWith("database", file)

	// Ensure we have some minimal caching and file guarantees
	if ldbCacheSize < 16 {
		ldbCacheSize = 16
	}
	if numHandles < 16 {
		numHandles = 16
	}
	localLogger.Info("Allocated LevelDB with write buffer and file handles", "ldbCacheSize", ldbCacheSize, "numHandles", numHandles)

	// Open the db and recover any potential corruptions
	db, err := leveldb.OpenFile(file, getLDBOptions(ldbCacheSize, numHandles))
	if _, corrupted := err.(*leveldberrors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, err
	}
	return &levelDB{
		fn:     file,
		db:     db,
		logger: localLogger,
	}, nil
}

func (db *levelDB) Type() DBType {
	return LevelDB
}

// Path returns the path to the database directory.
func (db *levelDB) Path() string {
	return db.fn
}

// Put puts the given key / value to the database.
func (db *levelDB) Put(key []byte, value []byte) error {
	if db.writeMeter != nil {
		db.writeMeter.Mark(int64(len(value)))
	}
	return db.db.Put(key, value, nil)
}

func (db *levelDB) Has(key []byte) (bool, error) {
	return db.db.Has(key, nil)
}

// Get returns the given key if it's present.
func (db *levelDB) Get(key []byte) ([]byte, error) {
	dat, err := db.db.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			if db.missMeter != nil {
				db.missMeter.Mark(1)
			}
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	if db.readMeter != nil {
		db.readMeter.Mark(int64(len(dat)))
	}
	return dat, nil
}

// Delete deletes the key from the database.
func (db *levelDB) Delete(key []byte) error {
	return db.db.Delete(key, nil)
}

func (db *levelDB) Close() {
	if err := db.db.Close(); err != nil {
		db.logger.Error("Failed to close database", "err", err)
		return
	}
	db.logger.Info("Database closed")
}

// Meter configures the database metrics collectors.
func (db *levelDB) Meter(prefix string) {
	db.writeMeter = metrics.NewRegisteredMeter(prefix+"write", nil)
	db.readMeter = metrics.NewRegisteredMeter(prefix+"read", nil)
	db.missMeter = metrics.NewRegisteredMeter(prefix+"miss", nil)
}
