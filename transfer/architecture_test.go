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

package transfer

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPRGIsDeterministic(t *testing.T) {
	one := NewPRG(42)
	two := NewPRG(42)

	for i := 0; i < 100; i++ {
		assert.Equal(t, one.Uint64(), two.Uint64())
	}
	assert.Equal(t, one.Intn(1000), two.Intn(1000))
}

func TestPRGGobRoundTrip(t *testing.T) {
	prg := NewPRG(7)
	for i := 0; i < 13; i++ {
		prg.Uint64()
	}

	var buf bytes.Buffer
	assert.NoError(t, gob.NewEncoder(&buf).Encode(prg))

	restored := new(PRG)
	assert.NoError(t, gob.NewDecoder(&buf).Decode(restored))

	// The restored generator continues the original sequence.
	for i := 0; i < 10; i++ {
		assert.Equal(t, prg.Uint64(), restored.Uint64())
	}
}
