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

package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesConversion(t *testing.T) {
	bytes := []byte{5}
	hash := BytesToHash(bytes)

	var exp Hash
	exp[31] = 5
	assert.Equal(t, exp, hash)
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000005", hash.Hex())
}

func TestHashSetBytesCropsLeft(t *testing.T) {
	input := make([]byte, HashLength+5)
	input[0] = 0xFF
	input[len(input)-1] = 5
	var hash Hash
	hash.SetBytes(input)

	var exp Hash
	exp[HashLength-1] = 5
	assert.Equal(t, exp, hash)
}

func TestAddressHexChecksum(t *testing.T) {
	// EIP55 test vectors.
	cases := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, expected := range cases {
		assert.Equal(t, expected, HexToAddress(expected).Hex())
	}
}

func TestAddressRoundTrip(t *testing.T) {
	addr := HexToAddress("0x0102030405060708090a0b0c0d0e0f1011121314")
	assert.Equal(t, addr, BytesToAddress(addr.Bytes()))
	assert.Equal(t, addr, BigToAddress(addr.Big()))
}
