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

func TestCacheBasics(t *testing.T) {
	configs := []struct {
		name   string
		config CacheConfiger
	}{
		{"LRU", LRUConfig{CacheSize: 4}},
		{"ARC", ARCConfig{CacheSize: 4}},
	}
	for _, tc := range configs {
		t.Run(tc.name, func(t *testing.T) {
			cache, err := NewCache(tc.config)
			assert.NoError(t, err)

			key := BytesToHash([]byte{1})
			assert.False(t, cache.Contains(key))

			cache.Add(key, "value")
			assert.True(t, cache.Contains(key))
			value, ok := cache.Get(key)
			assert.True(t, ok)
			assert.Equal(t, "value", value)

			cache.Remove(key)
			assert.False(t, cache.Contains(key))

			cache.Add(key, "value")
			cache.Purge()
			assert.Equal(t, 0, cache.Len())
		})
	}
}

func TestCacheInvalidConfig(t *testing.T) {
	_, err := NewCache(nil)
	assert.Error(t, err)

	_, err = NewCache(LRUConfig{CacheSize: 0})
	assert.Error(t, err)
}
