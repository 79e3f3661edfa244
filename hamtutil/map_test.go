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

package hamtutil_test

import (
	"context"
	"testing"

	"github.com/ipc-labs/atomicexec/hamtutil"
	"github.com/ipc-labs/atomicexec/store"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Input []byte
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	bs := store.NewMemBlockstore()
	m := hamtutil.NewMap[entry](bs)

	require.NoError(t, m.Put(ctx, []byte("k1"), entry{Input: []byte("v1")}))

	got, ok, err := m.Get(ctx, []byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), got.Input)

	_, ok, err = m.Get(ctx, []byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.Delete(ctx, []byte("k1")))
	_, ok, err = m.Get(ctx, []byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting an absent key is a no-op, not an error.
	require.NoError(t, m.Delete(ctx, []byte("k1")))
}

func TestRoundTripThroughBlockstore(t *testing.T) {
	ctx := context.Background()
	bs := store.NewMemBlockstore()
	m := hamtutil.NewMap[entry](bs)
	require.NoError(t, m.Put(ctx, []byte("a"), entry{Input: []byte("aaa")}))

	root, err := m.Flush(ctx)
	require.NoError(t, err)

	loaded, err := hamtutil.LoadMap[entry](ctx, bs, root)
	require.NoError(t, err)

	got, ok, err := loaded.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("aaa"), got.Input)
}
