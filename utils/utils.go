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

// Package utils holds the small cryptographic helpers used around the
// transfer core.
package utils

import (
	"crypto/rand"

	"golang.org/x/crypto/sha3"

	"github.com/rillnet/rill/common"
	"github.com/rillnet/rill/params"
)

// ShaSecret computes the Keccak256 hash of data. It is the hash locking a
// mediated transfer, every hop identifies the transfer by it.
func ShaSecret(data []byte) common.Hash {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	return common.BytesToHash(hasher.Sum(nil))
}

// RandomSecret draws a new transfer secret from the operating system
// entropy source. It must never be called from inside the state machine,
// secrets enter the reducer through state changes only.
func RandomSecret() common.Hash {
	secret := make([]byte, params.SecretLength)
	if _, err := rand.Read(secret); err != nil {
		panic(err)
	}
	return common.BytesToHash(secret)
}
