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

package log

// ModuleID identifies the subsystem a logger belongs to. Every logger is
// created through NewModuleLogger with one of the ids below so that log
// output can be filtered per subsystem.
type ModuleID int

const (
	BaseLogger ModuleID = iota

	CMD
	Common
	EventPub
	Network
	Node
	StorageDatabase
	Transfer

	moduleIDSize
)

var moduleNames = [moduleIDSize]string{
	"base",
	"cmd",
	"common",
	"eventpub",
	"network",
	"node",
	"storage/database",
	"transfer",
}

func (m ModuleID) String() string {
	if m < 0 || m >= moduleIDSize {
		return "unknown"
	}
	return moduleNames[m]
}
