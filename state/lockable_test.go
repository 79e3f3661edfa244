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

package state_test

import (
	"context"
	"testing"

	"github.com/ipc-labs/atomicexec/atomicerr"
	"github.com/ipc-labs/atomicexec/state"
	"github.com/ipc-labs/atomicexec/store"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsUnlocked(t *testing.T) {
	s := state.Default[int]()
	require.False(t, s.IsLocked())
	require.Equal(t, 0, s.Get())
}

func TestLockUnlockIdempotenceForbidden(t *testing.T) {
	s := state.Construct(10)
	require.NoError(t, s.Lock())
	require.ErrorIs(t, s.Lock(), atomicerr.ErrAlreadyLocked)

	require.NoError(t, s.Unlock())
	require.ErrorIs(t, s.Unlock(), atomicerr.ErrNotLocked)
}

func TestModifyRejectedWhenLocked(t *testing.T) {
	s := state.Construct(10)
	require.NoError(t, s.Lock())

	err := s.Modify(func(v *int) error { *v = 99; return nil })
	require.ErrorIs(t, err, atomicerr.ErrStateLocked)
	require.Equal(t, 10, s.Get())
}

func TestCidChangesWithLockAndPayload(t *testing.T) {
	s := state.Construct(10)
	c1, err := s.Cid()
	require.NoError(t, err)

	require.NoError(t, s.Modify(func(v *int) error { *v = 11; return nil }))
	c2, err := s.Cid()
	require.NoError(t, err)
	require.NotEqual(t, c1, c2)

	require.NoError(t, s.Lock())
	c3, err := s.Cid()
	require.NoError(t, err)
	require.NotEqual(t, c2, c3)
}

func TestCidStableForUnchangedState(t *testing.T) {
	s := state.Construct("hello")
	c1, err := s.Cid()
	require.NoError(t, err)
	c2, err := s.Cid()
	require.NoError(t, err)
	require.Equal(t, c1, c2)
}

func TestFlushLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	bs := store.NewMemBlockstore()

	s := state.Construct(42)
	require.NoError(t, s.Lock())
	c, err := s.Flush(ctx, bs)
	require.NoError(t, err)

	loaded, err := state.Load[int](ctx, bs, c)
	require.NoError(t, err)
	require.Equal(t, 42, loaded.Get())
	require.True(t, loaded.IsLocked())
}
