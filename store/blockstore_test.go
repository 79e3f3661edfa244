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

package store_test

import (
	"context"
	"testing"

	"github.com/ipc-labs/atomicexec/store"
	"github.com/stretchr/testify/require"
)

func TestMemBlockstorePutGet(t *testing.T) {
	ctx := context.Background()
	bs := store.NewMemBlockstore()

	c, err := store.PutCBOR(ctx, bs, []byte("payload"))
	require.NoError(t, err)

	ok, err := bs.Has(ctx, c)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := bs.Get(ctx, c)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)
}

func TestMemBlockstoreMissing(t *testing.T) {
	ctx := context.Background()
	bs := store.NewMemBlockstore()

	other := store.NewMemBlockstore()
	c, err := store.PutCBOR(ctx, other, []byte("elsewhere"))
	require.NoError(t, err)

	_, err = bs.Get(ctx, c)
	require.Error(t, err)
}

func TestCachingBlockstoreDelegates(t *testing.T) {
	ctx := context.Background()
	under := store.NewMemBlockstore()
	cached := store.NewCachingBlockstore(under, 4096)

	c, err := store.PutCBOR(ctx, cached, []byte("cached-payload"))
	require.NoError(t, err)

	// Present in the underlying store too, not just the cache layer.
	got, err := under.Get(ctx, c)
	require.NoError(t, err)
	require.Equal(t, []byte("cached-payload"), got)

	got, err = cached.Get(ctx, c)
	require.NoError(t, err)
	require.Equal(t, []byte("cached-payload"), got)
}
