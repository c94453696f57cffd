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
	"errors"

	"github.com/hashicorp/golang-lru"
)

type CacheType int

const (
	LRUCacheType CacheType = iota
	ARCCacheType
)

// CacheScale scales the configured cache sizes, cache size = preset size * CacheScale / 100.
// It defaults to 100; no command line flag sets it.
var CacheScale = 100

// CacheKey is implemented by types usable as a cache key (Hash and Address).
type CacheKey interface {
	getShardIndex(shardMask int) int
}

// Cache is a size-bounded key/value store used for de-duplication and
// memoization. Implementations are safe for concurrent use.
type Cache interface {
	Add(key CacheKey, value interface{}) (evicted bool)
	Get(key CacheKey) (value interface{}, ok bool)
	Contains(key CacheKey) bool
	Remove(key CacheKey)
	Len() int
	Purge()
}

type lruCache struct {
	lru *lru.Cache
}

func (cache *lruCache) Add(key CacheKey, value interface{}) (evicted bool) {
	return cache.lru.Add(key, value)
}

func (cache *lruCache) Get(key CacheKey) (value interface{}, ok bool) {
	return cache.lru.Get(key)
}

func (cache *lruCache) Contains(key CacheKey) bool {
	return cache.lru.Contains(key)
}

func (cache *lruCache) Remove(key CacheKey) {
	cache.lru.Remove(key)
}

func (cache *lruCache) Len() int {
	return cache.lru.Len()
}

func (cache *lruCache) Purge() {
	cache.lru.Purge()
}

type arcCache struct {
	arc *lru.ARCCache
}

func (cache *arcCache) Add(key CacheKey, value interface{}) (evicted bool) {
	cache.arc.Add(key, value)
	return false
}

func (cache *arcCache) Get(key CacheKey) (value interface{}, ok bool) {
	return cache.arc.Get(key)
}

func (cache *arcCache) Contains(key CacheKey) bool {
	return cache.arc.Contains(key)
}

func (cache *arcCache) Remove(key CacheKey) {
	cache.arc.Remove(key)
}

func (cache *arcCache) Len() int {
	return cache.arc.Len()
}

func (cache *arcCache) Purge() {
	cache.arc.Purge()
}

// CacheConfiger creates a Cache from its configuration.
type CacheConfiger interface {
	newCache() (Cache, error)
}

type LRUConfig struct {
	CacheSize int
}

func (c LRUConfig) newCache() (Cache, error) {
	cacheSize := c.CacheSize * CacheScale / 100
	if cacheSize < 1 {
		return nil, errors.New("must provide a positive cache size")
	}
	l, err := lru.New(cacheSize)
	return &lruCache{l}, err
}

type ARCConfig struct {
	CacheSize int
}

func (c ARCConfig) newCache() (Cache, error) {
	cacheSize := c.CacheSize * CacheScale / 100
	if cacheSize < 1 {
		return nil, errors.New("must provide a positive cache size")
	}
	arc, err := lru.NewARC(cacheSize)
	return &arcCache{arc}, err
}

// NewCache creates a Cache with the given configuration.
func NewCache(config CacheConfiger) (Cache, error) {
	if config == nil {
		return nil, errors.New("cache config is nil")
	}
	return config.newCache()
}
