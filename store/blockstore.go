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

// Package store provides a concrete implementation of the
// content-addressed block storage spec §1 lists as an external
// collaborator ("assumed to provide CAS put/get over CBOR-encoded
// blobs with Blake2b-256 addressing"). The protocol core only ever
// talks to the Blockstore interface; the implementations here exist so
// this module's tests and cmd/atomicexecctl demo have something real
// to run against, the way klaytn's storage/database package backs
// DBManager with leveldb/badger/in-memory implementations.
package store

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/ipc-labs/atomicexec/atomicerr"
	"github.com/ipc-labs/atomicexec/cidutil"
)

// Blockstore is the minimal CAS surface the protocol core needs: put a
// CBOR-encoded blob, get it back by its content identifier.
type Blockstore interface {
	Has(ctx context.Context, c cid.Cid) (bool, error)
	Get(ctx context.Context, c cid.Cid) ([]byte, error)
	Put(ctx context.Context, c cid.Cid, data []byte) error
}

// PutCBOR hashes data (which must already be the intended CBOR
// encoding) into a CIDv1/DAG-CBOR/Blake2b-256 identifier per spec §6
// and stores it, returning the identifier.
func PutCBOR(ctx context.Context, bs Blockstore, data []byte) (cid.Cid, error) {
	c, err := cidutil.NewCBORCid(data)
	if err != nil {
		return cid.Undef, err
	}
	if err := bs.Put(ctx, c, data); err != nil {
		return cid.Undef, err
	}
	return c, nil
}

var errNotFound = atomicerr.New(atomicerr.Unspecified, "store: cid not found")

// ErrNotFound is returned by Get when no blob is stored under the CID.
func ErrNotFound() error { return errNotFound }

// memStore is the mutex-guarded map backing MemBlockstore.
type memStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Has(_ context.Context, c cid.Cid) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[c.KeyString()]
	return ok, nil
}

func (m *memStore) Get(_ context.Context, c cid.Cid) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[c.KeyString()]
	if !ok {
		return nil, errNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *memStore) Put(_ context.Context, c cid.Cid, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[c.KeyString()] = cp
	return nil
}

// MemBlockstore is an in-memory Blockstore, grounded on klaytn's
// MemDatabase (storage/database), used for tests and for
// cmd/atomicexecctl's ephemeral demo participants.
type MemBlockstore struct {
	*memStore
}

// NewMemBlockstore returns an empty in-memory Blockstore.
func NewMemBlockstore() *MemBlockstore {
	return &MemBlockstore{memStore: newMemStore()}
}
