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
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rillnet/rill/common"
	"github.com/rillnet/rill/transfer"
)

// newTestDBManagers builds one manager per persistent backend plus the
// in-memory one. The cleanup function removes the temporary directories.
func newTestDBManagers(t *testing.T) (map[string]DBManager, func()) {
	dir, err := ioutil.TempDir("", "rill-test-statedata")
	if err != nil {
		t.Fatalf("cannot create temporary directory: %v", err)
	}

	ldbm, err := NewDBManager(&DBConfig{Dir: dir, DBType: LevelDB, LevelDBCacheSize: 16, LevelDBHandles: 16})
	if err != nil {
		t.Fatalf("cannot create DBManager: %v", err)
	}

	managers := map[string]DBManager{
		"memory":  NewMemoryDBManager(),
		"leveldb": ldbm,
	}
	return managers, func() {
		for _, dbm := range managers {
			dbm.Close()
		}
		os.RemoveAll(dir)
	}
}

func TestStateChangeLogReadAndWrite(t *testing.T) {
	managers, cleanup := newTestDBManagers(t)
	defer cleanup()

	for name, dbm := range managers {
		t.Run(name, func(t *testing.T) {
			// Before writing, the log is empty.
			assert.Equal(t, uint64(0), dbm.ReadLatestStateChangeNumber())
			_, err := dbm.ReadStateChange(1)
			assert.Equal(t, ErrKeyNotFound, err)

			dbm.WriteStateChange(1, &transfer.Block{BlockNumber: 7})
			dbm.WriteStateChange(2, &transfer.ActionChangeNodeNetworkState{
				NodeAddress:  common.HexToAddress("0x0A"),
				NetworkState: transfer.NetworkReachable,
			})
			assert.Equal(t, uint64(2), dbm.ReadLatestStateChangeNumber())

			stateChange, err := dbm.ReadStateChange(1)
			assert.NoError(t, err)
			block, ok := stateChange.(*transfer.Block)
			assert.True(t, ok)
			assert.Equal(t, int64(7), block.BlockNumber)

			stateChange, err = dbm.ReadStateChange(2)
			assert.NoError(t, err)
			networkState, ok := stateChange.(*transfer.ActionChangeNodeNetworkState)
			assert.True(t, ok)
			assert.Equal(t, transfer.NetworkReachable, networkState.NetworkState)
		})
	}
}

func TestSnapshotReadAndWrite(t *testing.T) {
	managers, cleanup := newTestDBManagers(t)
	defer cleanup()

	for name, dbm := range managers {
		t.Run(name, func(t *testing.T) {
			_, _, err := dbm.ReadLatestSnapshot()
			assert.Equal(t, ErrKeyNotFound, err)

			nodeState := transfer.NewNodeState(transfer.NewPRG(42), 11)
			tokenNetwork := transfer.NewTokenNetworkState(common.HexToAddress("0xBB"), common.HexToAddress("0xCC"))
			nodeState.IdentifiersToPaymentNetworks[common.HexToAddress("0xAA")] =
				transfer.NewPaymentNetworkState(common.HexToAddress("0xAA"), []*transfer.TokenNetworkState{tokenNetwork})
			nodeState.PaymentMapping.SecretHashesToTask[common.HexToHash("0x01")] = &transfer.TargetTask{
				PaymentNetworkIdentifier: common.HexToAddress("0xAA"),
				TokenAddress:             common.HexToAddress("0xCC"),
				ChannelIdentifier:        common.HexToHash("0x0C"),
			}

			dbm.WriteSnapshot(9, nodeState)

			restored, number, err := dbm.ReadLatestSnapshot()
			assert.NoError(t, err)
			assert.Equal(t, uint64(9), number)
			assert.Equal(t, int64(11), restored.BlockNumber)

			paymentNetwork := restored.IdentifiersToPaymentNetworks[common.HexToAddress("0xAA")]
			assert.NotNil(t, paymentNetwork)
			assert.NotNil(t, paymentNetwork.TokenAddressesToTokenNetworks[common.HexToAddress("0xCC")])
			// Both inner indexes still alias the same token network.
			assert.True(t, paymentNetwork.TokenAddressesToTokenNetworks[common.HexToAddress("0xCC")] ==
				paymentNetwork.TokenIdentifiersToTokenNetworks[common.HexToAddress("0xBB")])

			task, ok := restored.PaymentMapping.SecretHashesToTask[common.HexToHash("0x01")].(*transfer.TargetTask)
			assert.True(t, ok)
			assert.Equal(t, common.HexToHash("0x0C"), task.ChannelIdentifier)

			// Newer snapshots win.
			nodeState.BlockNumber = 20
			dbm.WriteSnapshot(12, nodeState)
			restored, number, err = dbm.ReadLatestSnapshot()
			assert.NoError(t, err)
			assert.Equal(t, uint64(12), number)
			assert.Equal(t, int64(20), restored.BlockNumber)
		})
	}
}

func TestPartitionedDBManager(t *testing.T) {
	dir, err := ioutil.TempDir("", "rill-test-partitioned")
	if err != nil {
		t.Fatalf("cannot create temporary directory: %v", err)
	}
	defer os.RemoveAll(dir)

	dbm, err := NewDBManager(&DBConfig{
		Dir: dir, DBType: LevelDB, Partitioned: true, LevelDBCacheSize: 128, LevelDBHandles: 128,
	})
	if err != nil {
		t.Fatalf("cannot create DBManager: %v", err)
	}
	defer dbm.Close()

	dbm.WriteStateChange(1, &transfer.Block{BlockNumber: 3})
	stateChange, err := dbm.ReadStateChange(1)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), stateChange.(*transfer.Block).BlockNumber)

	// Each partition got its own directory.
	for _, subdir := range dbDirs {
		fi, err := os.Stat(dir + "/" + subdir)
		assert.NoError(t, err)
		assert.True(t, fi.IsDir())
	}
}
