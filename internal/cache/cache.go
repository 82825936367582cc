// Copyright (C) 2022-2023, VigilantDoomer
//
// This file is part of VigilantBSP program.
//
// VigilantBSP is free software: you can redistribute it
// and/or modify it under the terms of GNU General Public License
// as published by the Free Software Foundation, either version 2 of
// the License, or (at your option) any later version.
//
// VigilantBSP is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with VigilantBSP.  If not, see <https://www.gnu.org/licenses/>.

// Store of hardened levels keyed by the digest of their input lumps, so that
// unchanged levels need not be rebuilt
package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/vigilantdoomer/hedgebsp/internal/level"
)

var ErrMiss = errors.New("level not in cache")

var errClosed = errors.New("cache is closed")

// Key identifies a build result: same input geometry built with the same
// split cost factor gives the same level
type Key struct {
	Digest          uint64
	SplitCostFactor int
}

func (k Key) bytes() []byte {
	return []byte(fmt.Sprintf("level:v%d:%016x:f%d", level.LEVEL_FORMAT_VERSION,
		k.Digest, k.SplitCostFactor))
}

type Cache struct {
	db      *badger.DB
	mutex   sync.RWMutex
	isReady bool
}

// Open opens (creating if needed) the cache in directory dir
func Open(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return open(opts)
}

// OpenInMemory creates a cache that lives only as long as the process
func OpenInMemory() (*Cache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Cache, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("couldn't open cache: %w", err)
	}
	return &Cache{db: db, isReady: true}, nil
}

func (c *Cache) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.isReady {
		return nil
	}
	c.isReady = false
	return c.db.Close()
}

// Get returns the packed level stored under k, or ErrMiss
func (c *Cache) Get(k Key) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.isReady {
		return nil, errClosed
	}
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k.bytes())
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	return data, nil
}

// Load is Get followed by unpacking. An entry that fails to unpack counts
// as a miss
func (c *Cache) Load(k Key) (*level.Level, []byte, error) {
	data, err := c.Get(k)
	if err != nil {
		return nil, nil, err
	}
	lvl, err := level.Unpack(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: stale entry: %s", ErrMiss, err.Error())
	}
	return lvl, data, nil
}

// Put stores packed level data under k
func (c *Cache) Put(k Key, packed []byte) error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.isReady {
		return errClosed
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k.bytes(), packed)
	})
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}
