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
	"os"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"

	"github.com/rillnet/rill/log"
)

const gcThreshold = int64(1 << 30) // GB
const sizeGCTickerTime = 1 * time.Minute

type badgerDB struct {
	fn string // filename for reporting
	db *badger.DB

	gcTicker *time.Ticker // runs periodically and runs gc if db size exceeds the threshold.
	closeCh  chan struct{}

	writeMeter metrics.Meter
	readMeter  metrics.Meter
	missMeter  metrics.Meter

	logger log.Logger // Contextual logger tracking the database path
}

// NewBadgerDB opens (or creates) a badger backed Database rooted at dbDir.
func NewBadgerDB(dbDir string) (*badgerDB, error) {
	localLogger := logger.NewWith("dbDir", dbDir)

	if fi, err := os.Stat(dbDir); err == nil {
		if !fi.IsDir() {
			return nil, errors.Errorf("dbDir is not a directory: %v", dbDir)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to make dbDir: %v", dbDir)
		}
	} else {
		return nil, errors.Wrapf(err, "failed to check dbDir: %v", dbDir)
	}

	db, err := badger.Open(badger.DefaultOptions(dbDir))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open badgerDB: %v", dbDir)
	}

	bg := &badgerDB{
		fn:       dbDir,
		db:       db,
		logger:   localLogger,
		gcTicker: time.NewTicker(sizeGCTickerTime),
		closeCh:  make(chan struct{}),
	}

	go bg.runValueLogGC()

	return bg, nil
}

// runValueLogGC periodically checks the size of the value log and runs gc
// if it grew past gcThreshold.
func (bg *badgerDB) runValueLogGC() {
	_, lastValueLogSize := bg.db.Size()

	for {
		select {
		case <-bg.closeCh:
			return
		case <-bg.gcTicker.C:
			_, currValueLogSize := bg.db.Size()
			if currValueLogSize-lastValueLogSize < gcThreshold {
				continue
			}

			if err := bg.db.RunValueLogGC(0.5); err != nil {
				bg.logger.Error("Error while runValueLogGC()", "err", err)
				continue
			}

			_, lastValueLogSize = bg.db.Size()
		}
	}
}

func (bg *badgerDB) Type() DBType {
	return BadgerDB
}

// Path returns the path to the database directory.
func (bg *badgerDB) Path() string {
	return bg.fn
}

// Put inserts the given key and value pair to the database.
func (bg *badgerDB) Put(key []byte, value []byte) error {
	txn := bg.db.NewTransaction(true)
	defer txn.Discard()

	if err := txn.Set(key, value); err != nil {
		return err
	}
	if bg.writeMeter != nil {
		bg.writeMeter.Mark(int64(len(value)))
	}
	return txn.Commit()
}

// Has returns true if the corresponding value to the given key exists.
func (bg *badgerDB) Has(key []byte) (bool, error) {
	txn := bg.db.NewTransaction(false)
	defer txn.Discard()

	if _, err := txn.Get(key); err != nil {
		if err == badger.ErrKeyNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Get returns the corresponding value to the given key if exists.
func (bg *badgerDB) Get(key []byte) ([]byte, error) {
	txn := bg.db.NewTransaction(false)
	defer txn.Discard()

	item, err := txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			if bg.missMeter != nil {
				bg.missMeter.Mark(1)
			}
			return nil, ErrKeyNotFound
		}
		return nil, err
	}

	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	if bg.readMeter != nil {
		bg.readMeter.Mark(int64(len(value)))
	}
	return value, nil
}

// Delete deletes the key from the database.
func (bg *badgerDB) Delete(key []byte) error {
	txn := bg.db.NewTransaction(true)
	defer txn.Discard()

	if err := txn.Delete(key); err != nil {
		return err
	}
	return txn.Commit()
}

func (bg *badgerDB) Close() {
	close(bg.closeCh)
	bg.gcTicker.Stop()
	if err := bg.db.Close(); err != nil {
		bg.logger.Error("Failed to close database", "err", err)
		return
	}
	bg.logger.Info("Database closed")
}

// Meter configures the database metrics collectors.
func (bg *badgerDB) Meter(prefix string) {
	bg.writeMeter = metrics.NewRegisteredMeter(prefix+"write", nil)
	bg.readMeter = metrics.NewRegisteredMeter(prefix+"read", nil)
	bg.missMeter = metrics.NewRegisteredMeter(prefix+"miss", nil)
}
