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

// Package database persists the node's state-change log and state
// snapshots behind a pluggable key/value backend.
package database

import "github.com/pkg/errors"

// DBType names a key/value backend.
type DBType string

const (
	LevelDB  DBType = "leveldb"
	BadgerDB DBType = "badger"
	MemoryDB DBType = "memory"
)

// ErrKeyNotFound is returned by Get when the key is absent, regardless of
// the backend.
var ErrKeyNotFound = errors.New("database: key not found")

// Database is the uniform interface of the key/value backends.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	Close()

	Type() DBType
	// Path returns the path to the database directory, empty for the
	// in-memory backend.
	Path() string
	// Meter configures the database metrics collectors under the given
	// prefix.
	Meter(prefix string)
}
