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

// Package hamtutil gives the registry and coordinator a typed map on
// top of the hashed-array-mapped-trie structure spec §1 lists as an
// external collaborator. It follows the same shape as specs-actors'
// actors/util/adt.Map: a thin generic wrapper around
// github.com/filecoin-project/go-hamt-ipld/v3's Node, with values
// bridged through fxamacker/cbor instead of requiring every value type
// to hand-implement cbor-gen's codec interface.
package hamtutil

import (
	"bytes"
	"context"
	"io"

	hamt "github.com/filecoin-project/go-hamt-ipld/v3"
	"github.com/fxamacker/cbor/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/ipfs/go-cid"
	"github.com/ipc-labs/atomicexec/cidutil"
	"github.com/ipc-labs/atomicexec/store"
	"github.com/pkg/errors"
	cbg "github.com/whyrusleeping/cbor-gen"
)

// nodeCacheSize bounds the per-map in-memory cache of raw HAMT shard
// bytes keyed by CID, the same role blockchain/state/database.go's
// codeSizeCache plays for the state trie: repeated Find/Set calls
// during a single prepare/commit walk the same shards more than once.
const nodeCacheSize = 256

// BitWidth is the HAMT bit-width convention shared by every map this
// module persists, matching the host runtime's HAMT_BIT_WIDTH (the
// same value the original ipc-atomic-execution Rust crate imports from
// fvm_shared).
const BitWidth = 5

// box bridges a value of any type through fxamacker/cbor's
// byte-slice-based Marshal/Unmarshal to the io.Writer/io.Reader-based
// CBORMarshaler/CBORUnmarshaler interface go-hamt-ipld's Node expects
// of values it stores (the same interface github.com/whyrusleeping/
// cbor-gen-generated types implement, e.g. miner.CronEventPayload's
// MarshalCBOR(io.Writer) in the wider Filecoin actor ecosystem).
type box[V any] struct {
	V V
}

func (b *box[V]) MarshalCBOR(w io.Writer) error {
	data, err := cbor.Marshal(b.V)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (b *box[V]) UnmarshalCBOR(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return cbor.Unmarshal(data, &b.V)
}

// blockstoreAdapter satisfies the small Get/Put interface go-hamt-ipld
// needs from a CBOR object store, backed by our own store.Blockstore
// rather than the heavier github.com/ipfs/go-ipfs-blockstore stack.
type blockstoreAdapter struct {
	bs    store.Blockstore
	nodes *lru.Cache
}

func newBlockstoreAdapter(bs store.Blockstore) *blockstoreAdapter {
	nodes, err := lru.New(nodeCacheSize)
	if err != nil {
		panic(err)
	}
	return &blockstoreAdapter{bs: bs, nodes: nodes}
}

func (a *blockstoreAdapter) Get(ctx context.Context, c cid.Cid, out interface{}) error {
	um, ok := out.(interface{ UnmarshalCBOR(io.Reader) error })
	if !ok {
		return errors.Errorf("hamtutil: %T does not implement UnmarshalCBOR", out)
	}
	if cached, ok := a.nodes.Get(c); ok {
		return um.UnmarshalCBOR(bytes.NewReader(cached.([]byte)))
	}
	data, err := a.bs.Get(ctx, c)
	if err != nil {
		return err
	}
	a.nodes.Add(c, data)
	return um.UnmarshalCBOR(bytes.NewReader(data))
}

func (a *blockstoreAdapter) Put(ctx context.Context, v interface{}) (cid.Cid, error) {
	m, ok := v.(interface{ MarshalCBOR(io.Writer) error })
	if !ok {
		return cid.Undef, errors.Errorf("hamtutil: %T does not implement MarshalCBOR", v)
	}
	var buf bytes.Buffer
	if err := m.MarshalCBOR(&buf); err != nil {
		return cid.Undef, err
	}
	c, err := cidutil.NewCBORCid(buf.Bytes())
	if err != nil {
		return cid.Undef, err
	}
	if err := a.bs.Put(ctx, c, buf.Bytes()); err != nil {
		return cid.Undef, err
	}
	a.nodes.Add(c, buf.Bytes())
	return c, nil
}

// Map is a typed HAMT-backed map from opaque byte-string keys (every
// key in this protocol is itself a digest or a CBOR-encoded composite)
// to a value of type V.
type Map[V any] struct {
	node *hamt.Node
	bs   *blockstoreAdapter
}

// NewMap creates an empty map over bs.
func NewMap[V any](bs store.Blockstore) *Map[V] {
	a := newBlockstoreAdapter(bs)
	return &Map[V]{node: hamt.NewNode(a, hamt.UseTreeBitWidth(BitWidth)), bs: a}
}

// LoadMap resumes a map previously flushed to root.
func LoadMap[V any](ctx context.Context, bs store.Blockstore, root cid.Cid) (*Map[V], error) {
	a := newBlockstoreAdapter(bs)
	n, err := hamt.LoadNode(ctx, a, root, hamt.UseTreeBitWidth(BitWidth))
	if err != nil {
		return nil, errors.Wrap(err, "hamtutil: loading map")
	}
	return &Map[V]{node: n, bs: a}, nil
}

// Put inserts or overwrites the value under key.
func (m *Map[V]) Put(ctx context.Context, key []byte, v V) error {
	return m.node.Set(ctx, string(key), &box[V]{V: v})
}

// Get returns the value under key, and whether it was present.
func (m *Map[V]) Get(ctx context.Context, key []byte) (V, bool, error) {
	var zero V
	b := &box[V]{}
	found, err := m.node.Find(ctx, string(key), b)
	if err != nil {
		return zero, false, err
	}
	if !found {
		return zero, false, nil
	}
	return b.V, true, nil
}

// Delete removes key, if present. Deleting an absent key is a no-op,
// matching the idempotent deletion behavior the registry's cancel/
// commit/rollback paths rely on.
func (m *Map[V]) Delete(ctx context.Context, key []byte) error {
	_, found, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return m.node.Delete(ctx, string(key))
}

// ForEach visits every entry in the HAMT's own traversal order, which
// follows the hashes of the keys, not the keys. go-hamt-ipld hands back
// undecoded shard values as *cbg.Deferred; we decode the raw CBOR
// bytes through fxamacker/cbor the same way box does for Put/Get.
func (m *Map[V]) ForEach(ctx context.Context, fn func(key []byte, v V) error) error {
	return m.node.ForEach(ctx, func(k string, val *cbg.Deferred) error {
		var v V
		if err := cbor.Unmarshal(val.Raw, &v); err != nil {
			return errors.Wrap(err, "hamtutil: decoding ForEach value")
		}
		return fn([]byte(k), v)
	})
}

// Flush persists the map's pending shard writes and returns its root
// CID, to be embedded in the owning actor's state.
func (m *Map[V]) Flush(ctx context.Context) (cid.Cid, error) {
	return m.node.Flush(ctx)
}
