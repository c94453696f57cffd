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
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/rillnet/rill/log"
	"github.com/rillnet/rill/transfer"
)

var logger = log.NewModuleLogger(log.StorageDatabase)

// DBManager persists the inputs and outputs of the state machine: the
// ordered log of applied state changes and periodic snapshots of the node
// state. Replaying the log from the latest snapshot restores the aggregate.
type DBManager interface {
	Close()
	GetMemDB() *MemDatabase

	// State-change log.
	WriteStateChange(number uint64, stateChange transfer.StateChange)
	ReadStateChange(number uint64) (transfer.StateChange, error)
	ReadLatestStateChangeNumber() uint64

	// Node-state snapshots.
	WriteSnapshot(number uint64, nodeState *transfer.NodeState)
	ReadSnapshot(number uint64) (*transfer.NodeState, error)
	// ReadLatestSnapshot returns the newest snapshot and the state-change
	// number it was taken at. ErrKeyNotFound if no snapshot was written yet.
	ReadLatestSnapshot() (*transfer.NodeState, uint64, error)
}

type DBEntryType uint8

const (
	stateChangeDB DBEntryType = iota
	snapshotDB
	miscDB

	// databaseEntryTypeSize should be the last item in this list!!
	databaseEntryTypeSize
)

var dbDirs = [databaseEntryTypeSize]string{
	"statechanges",
	"snapshots",
	"misc",
}

// Sum of dbConfigRatio should be 100.
var dbConfigRatio = [databaseEntryTypeSize]int{
	60, // stateChangeDB
	35, // snapshotDB
	5,  // miscDB
}

func checkDBEntryConfigRatio() {
	entryConfigRatioSum := 0
	for i := 0; i < int(databaseEntryTypeSize); i++ {
		entryConfigRatioSum += dbConfigRatio[i]
	}
	if entryConfigRatioSum != 100 {
		logger.Crit("Sum of dbConfigRatio elements should be 100", "actual", entryConfigRatioSum)
	}
}

// getDBEntryConfig returns a new DBConfig with original DBConfig and DBEntryType.
// It adjusts configuration according to the ratio specified in dbConfigRatio and dbDirs.
func getDBEntryConfig(originalDBC *DBConfig, i DBEntryType) *DBConfig {
	newDBC := *originalDBC
	ratio := dbConfigRatio[i]

	newDBC.LevelDBCacheSize = originalDBC.LevelDBCacheSize * ratio / 100
	newDBC.LevelDBHandles = originalDBC.LevelDBHandles * ratio / 100
	newDBC.Dir = filepath.Join(originalDBC.Dir, dbDirs[i])

	return &newDBC
}

// DBConfig handles database related configurations.
type DBConfig struct {
	// General configurations for all types of DB.
	Dir         string
	DBType      DBType
	Partitioned bool

	// LevelDB related configurations.
	LevelDBCacheSize int
	LevelDBHandles   int
}

type databaseManager struct {
	dbs        []Database
	isMemoryDB bool
}

// NewMemoryDBManager returns a DBManager backed by a single in-memory map.
func NewMemoryDBManager() DBManager {
	dbm := databaseManager{
		dbs:        make([]Database, 1),
		isMemoryDB: true,
	}
	dbm.dbs[0] = NewMemDatabase()
	return &dbm
}

// singleDatabaseDBManager returns a DBManager whose entries share one
// common Database.
func singleDatabaseDBManager(dbc *DBConfig) (DBManager, error) {
	dbm := newDatabaseManager()
	db, err := newDatabase(dbc)
	if err != nil {
		return nil, err
	}

	db.Meter("rill/db/statedata/")
	for i := 0; i < int(databaseEntryTypeSize); i++ {
		dbm.dbs[i] = db
	}
	return dbm, nil
}

// partitionedDatabaseDBManager returns a DBManager where each entry type
// has its own separated Database.
func partitionedDatabaseDBManager(dbc *DBConfig) (DBManager, error) {
	dbm := newDatabaseManager()
	for i := 0; i < int(databaseEntryTypeSize); i++ {
		newDBC := getDBEntryConfig(dbc, DBEntryType(i))
		db, err := newDatabase(newDBC)
		if err != nil {
			logger.Crit("Failed while generating a partition of the database", "partition", dbDirs[i], "err", err)
		}
		db.Meter("rill/db/statedata/" + dbDirs[i] + "/")
		dbm.dbs[i] = db
	}
	return dbm, nil
}

// newDatabase returns a Database with the given DBConfig.
func newDatabase(dbc *DBConfig) (Database, error) {
	switch dbc.DBType {
	case LevelDB:
		return NewLDBDatabase(dbc.Dir, dbc.LevelDBCacheSize, dbc.LevelDBHandles)
	case BadgerDB:
		return NewBadgerDB(dbc.Dir)
	case MemoryDB:
		return NewMemDatabase(), nil
	default:
		logger.Info("database type is not set, fall back to default LevelDB")
		return NewLDBDatabase(dbc.Dir, dbc.LevelDBCacheSize, dbc.LevelDBHandles)
	}
}

func newDatabaseManager() *databaseManager {
	return &databaseManager{
		dbs: make([]Database, databaseEntryTypeSize),
	}
}

// NewDBManager returns a DBManager interface.
// If Partitioned is true, each entry type will have its own Database.
// If not, all entry types share one common Database.
func NewDBManager(dbc *DBConfig) (DBManager, error) {
	if !dbc.Partitioned {
		logger.Info("Single database is used for persistent storage", "DBType", dbc.DBType)
		return singleDatabaseDBManager(dbc)
	}
	checkDBEntryConfigRatio()
	logger.Info("Partitioned database is used for persistent storage", "DBType", dbc.DBType)
	return partitionedDatabaseDBManager(dbc)
}

func (dbm *databaseManager) GetMemDB() *MemDatabase {
	if dbm.isMemoryDB {
		if memDB, ok := dbm.dbs[0].(*MemDatabase); ok {
			return memDB
		}
		logger.Error("DBManager is set as memory DBManager, but actual value is not set as memory DBManager.")
		return nil
	}
	logger.Error("GetMemDB() call to non memory DBManager object.")
	return nil
}

func (dbm *databaseManager) getDatabase(dbEntryType DBEntryType) Database {
	if dbm.isMemoryDB {
		return dbm.dbs[0]
	}
	return dbm.dbs[dbEntryType]
}

func (dbm *databaseManager) Close() {
	if dbm.isMemoryDB {
		dbm.dbs[0].Close()
		return
	}
	closed := make(map[Database]bool)
	for _, db := range dbm.dbs {
		if !closed[db] {
			db.Close()
			closed[db] = true
		}
	}
}

// Schema keys. Numbered entries use an 8 byte big endian suffix so the key
// order matches the numeric order.
var (
	stateChangePrefix          = []byte("c")
	snapshotPrefix             = []byte("s")
	latestStateChangeNumberKey = []byte("LatestStateChangeNumber")
	latestSnapshotNumberKey    = []byte("LatestSnapshotNumber")
)

func encodeNumber(number uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}

func stateChangeKey(number uint64) []byte {
	return append(stateChangePrefix, encodeNumber(number)...)
}

func snapshotKey(number uint64) []byte {
	return append(snapshotPrefix, encodeNumber(number)...)
}

// State-change log operations.

// WriteStateChange appends a state change to the log and advances the
// latest number.
func (dbm *databaseManager) WriteStateChange(number uint64, stateChange transfer.StateChange) {
	db := dbm.getDatabase(stateChangeDB)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&stateChange); err != nil {
		logger.Crit("Failed to encode the state change", "number", number, "err", err)
	}
	if err := db.Put(stateChangeKey(number), buf.Bytes()); err != nil {
		logger.Crit("Failed to store the state change", "number", number, "err", err)
	}
	if err := dbm.getDatabase(miscDB).Put(latestStateChangeNumberKey, encodeNumber(number)); err != nil {
		logger.Crit("Failed to store the latest state change number", "number", number, "err", err)
	}
}

// ReadStateChange loads one state change from the log.
func (dbm *databaseManager) ReadStateChange(number uint64) (transfer.StateChange, error) {
	data, err := dbm.getDatabase(stateChangeDB).Get(stateChangeKey(number))
	if err != nil {
		return nil, err
	}

	var stateChange transfer.StateChange
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&stateChange); err != nil {
		return nil, errors.Wrapf(err, "failed to decode the state change %d", number)
	}
	return stateChange, nil
}

// ReadLatestStateChangeNumber returns the number of the newest log entry,
// zero for an empty log.
func (dbm *databaseManager) ReadLatestStateChangeNumber() uint64 {
	data, err := dbm.getDatabase(miscDB).Get(latestStateChangeNumberKey)
	if err != nil || len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

// Snapshot operations.

// WriteSnapshot stores a snapshot of the node state taken after applying
// the state change with the given number.
func (dbm *databaseManager) WriteSnapshot(number uint64, nodeState *transfer.NodeState) {
	db := dbm.getDatabase(snapshotDB)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(nodeState); err != nil {
		logger.Crit("Failed to encode the node state", "number", number, "err", err)
	}
	if err := db.Put(snapshotKey(number), buf.Bytes()); err != nil {
		logger.Crit("Failed to store the snapshot", "number", number, "err", err)
	}
	if err := dbm.getDatabase(miscDB).Put(latestSnapshotNumberKey, encodeNumber(number)); err != nil {
		logger.Crit("Failed to store the latest snapshot number", "number", number, "err", err)
	}
}

// ReadSnapshot loads the snapshot taken at the given state change number.
func (dbm *databaseManager) ReadSnapshot(number uint64) (*transfer.NodeState, error) {
	data, err := dbm.getDatabase(snapshotDB).Get(snapshotKey(number))
	if err != nil {
		return nil, err
	}

	nodeState := new(transfer.NodeState)
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(nodeState); err != nil {
		return nil, errors.Wrapf(err, "failed to decode the snapshot %d", number)
	}
	return nodeState, nil
}

// ReadLatestSnapshot loads the newest snapshot.
func (dbm *databaseManager) ReadLatestSnapshot() (*transfer.NodeState, uint64, error) {
	data, err := dbm.getDatabase(miscDB).Get(latestSnapshotNumberKey)
	if err != nil {
		return nil, 0, err
	}
	if len(data) != 8 {
		return nil, 0, errors.New("corrupted latest snapshot number")
	}

	number := binary.BigEndian.Uint64(data)
	nodeState, err := dbm.ReadSnapshot(number)
	if err != nil {
		return nil, 0, err
	}
	return nodeState, number, nil
}
