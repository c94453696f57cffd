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

package params

const (
	// SecretLength is the byte length of a transfer secret.
	SecretLength = 32

	// DefaultRevealTimeout is the number of blocks a node leaves itself to
	// learn a secret before the corresponding lock expires.
	DefaultRevealTimeout = 10

	// DefaultSettleTimeout is the default number of blocks between a channel
	// close and its settlement.
	DefaultSettleTimeout = 600

	// SnapshotStateChangeInterval is the number of applied state changes
	// between two node-state snapshots.
	SnapshotStateChangeInterval = 500
)

const (
	// GlobalQueueName is the queue for messages that are not scoped to one
	// channel, e.g. secret reveals.
	GlobalQueueName = "global"
)
