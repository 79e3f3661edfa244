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

// Package state implements LockableState (spec §4.1): a wrapper around
// an arbitrary CBOR-serializable payload that adds a lock bit and a
// cached content identifier. The lock bit participates in the content
// encoding, so locking or unlocking a slice always changes its CID
// (I4), which is exactly what lets prepare_atomic_exec (registry
// package) detect an unexpected external mutation between init and
// prepare (I2).
package state

import (
	"context"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/ipc-labs/atomicexec/atomicerr"
	"github.com/ipc-labs/atomicexec/cidutil"
	"github.com/ipc-labs/atomicexec/store"
)

// wireForm is the canonical (locked, payload) tuple spec §4.1 and §6
// define the content identifier over.
type wireForm[T any] struct {
	_       struct{} `cbor:",toarray"`
	Locked  bool
	Payload T
}

// LockableState wraps a payload of type T with a lock bit and a
// memoized content identifier.
type LockableState[T any] struct {
	payload   T
	locked    bool
	cachedCid cid.Cid
}

// Construct creates a new, unlocked LockableState with no cached CID.
func Construct[T any](payload T) *LockableState[T] {
	return &LockableState[T]{payload: payload}
}

// Restore rebuilds a LockableState from a (payload, locked) pair
// already decoded elsewhere — e.g. one entry of a caller's own HAMT of
// account slices, where the (locked, payload) tuple is the HAMT value
// itself rather than something behind its own CID. The cached CID
// starts empty, matching any other fresh construction.
func Restore[T any](payload T, locked bool) *LockableState[T] {
	return &LockableState[T]{payload: payload, locked: locked}
}

// Default constructs an unlocked LockableState wrapping T's zero
// value, for actors that want a slot before they have a real payload.
func Default[T any]() *LockableState[T] {
	var zero T
	return Construct(zero)
}

// Get returns a read-only view of the payload regardless of lock state.
func (s *LockableState[T]) Get() T {
	return s.payload
}

// GetMut returns a mutable pointer to the payload. It fails with
// ErrStateLocked if the state is locked, and invalidates the cached
// CID since the caller is now free to mutate the payload through it.
func (s *LockableState[T]) GetMut() (*T, error) {
	if s.locked {
		return nil, atomicerr.ErrStateLocked
	}
	s.cachedCid = cid.Undef
	return &s.payload, nil
}

// Modify applies f to the payload in place. It fails with
// ErrStateLocked if the state is locked; f's own error, if any,
// propagates without mutating the cached CID.
func (s *LockableState[T]) Modify(f func(*T) error) error {
	if s.locked {
		return atomicerr.ErrStateLocked
	}
	if err := f(&s.payload); err != nil {
		return err
	}
	s.cachedCid = cid.Undef
	return nil
}

// Lock transitions the state to locked. Locking an already-locked
// state is a hard error (ErrAlreadyLocked): idempotence is forbidden
// so that double-locking bugs in the registry surface immediately
// rather than silently no-op'ing.
func (s *LockableState[T]) Lock() error {
	if s.locked {
		return atomicerr.ErrAlreadyLocked
	}
	s.locked = true
	s.cachedCid = cid.Undef
	return nil
}

// Unlock transitions the state to unlocked. Unlocking an unlocked
// state is a hard error (ErrNotLocked), symmetric with Lock.
func (s *LockableState[T]) Unlock() error {
	if !s.locked {
		return atomicerr.ErrNotLocked
	}
	s.locked = false
	s.cachedCid = cid.Undef
	return nil
}

// IsLocked reports the current lock state.
func (s *LockableState[T]) IsLocked() bool {
	return s.locked
}

// Cid returns the cached content identifier if present, else
// recomputes it deterministically from the CBOR encoding of
// (locked, payload) and caches the result.
func (s *LockableState[T]) Cid() (cid.Cid, error) {
	if s.cachedCid.Defined() {
		return s.cachedCid, nil
	}
	encoded, err := s.encode()
	if err != nil {
		return cid.Undef, err
	}
	c, err := cidutil.NewCBORCid(encoded)
	if err != nil {
		return cid.Undef, err
	}
	s.cachedCid = c
	return c, nil
}

func (s *LockableState[T]) encode() ([]byte, error) {
	return cbor.Marshal(wireForm[T]{Locked: s.locked, Payload: s.payload})
}

// Flush serializes the state via CBOR, writes it to bs, and caches the
// returned content identifier.
func (s *LockableState[T]) Flush(ctx context.Context, bs store.Blockstore) (cid.Cid, error) {
	encoded, err := s.encode()
	if err != nil {
		return cid.Undef, err
	}
	c, err := store.PutCBOR(ctx, bs, encoded)
	if err != nil {
		return cid.Undef, err
	}
	s.cachedCid = c
	return c, nil
}

// Load is Flush's inverse: it fetches and decodes the (locked,
// payload) tuple stored under c, caching c as the loaded state's CID.
func Load[T any](ctx context.Context, bs store.Blockstore, c cid.Cid) (*LockableState[T], error) {
	data, err := bs.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	var w wireForm[T]
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &LockableState[T]{payload: w.Payload, locked: w.Locked, cachedCid: c}, nil
}
