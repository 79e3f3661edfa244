// Copyright 2026 The atomicexec Authors
// This file is part of the atomicexec library.
//
// The atomicexec library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The atomicexec library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the atomicexec library. If not, see <http://www.gnu.org/licenses/>.

package store

import (
	"context"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ipfs/go-cid"
)

// CachingBlockstore wraps another Blockstore with a byte-keyed
// read-through cache. Content-addressed blobs are immutable under
// their CID, so there is no invalidation to worry about: a cache hit is
// always correct. This mirrors how klaytn layers fastcache in front of
// its persistent trie/state databases.
type CachingBlockstore struct {
	under Blockstore
	cache *fastcache.Cache
}

// NewCachingBlockstore wraps under with an in-memory cache sized
// maxBytes.
func NewCachingBlockstore(under Blockstore, maxBytes int) *CachingBlockstore {
	return &CachingBlockstore{
		under: under,
		cache: fastcache.New(maxBytes),
	}
}

func (c *CachingBlockstore) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if c.cache.Has(id.Bytes()) {
		return true, nil
	}
	return c.under.Has(ctx, id)
}

func (c *CachingBlockstore) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if v, ok := c.cache.HasGet(nil, id.Bytes()); ok {
		return v, nil
	}
	data, err := c.under.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(id.Bytes(), data)
	return data, nil
}

func (c *CachingBlockstore) Put(ctx context.Context, id cid.Cid, data []byte) error {
	if err := c.under.Put(ctx, id, data); err != nil {
		return err
	}
	c.cache.Set(id.Bytes(), data)
	return nil
}
