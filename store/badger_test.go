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

func TestBadgerBlockstorePutGet(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	bs, err := store.NewBadgerBlockstore(dir)
	require.NoError(t, err)
	defer bs.Close()

	c, err := store.PutCBOR(ctx, bs, []byte("persisted-payload"))
	require.NoError(t, err)

	ok, err := bs.Has(ctx, c)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := bs.Get(ctx, c)
	require.NoError(t, err)
	require.Equal(t, []byte("persisted-payload"), got)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	mem, err := store.Open(store.StoreMem, "")
	require.NoError(t, err)
	require.IsType(t, &store.MemBlockstore{}, mem)

	dir := t.TempDir()
	badgerBS, err := store.Open(store.StoreBadger, dir)
	require.NoError(t, err)
	require.IsType(t, &store.BadgerBlockstore{}, badgerBS)
	defer badgerBS.(*store.BadgerBlockstore).Close()

	c, err := store.PutCBOR(ctx, badgerBS, []byte("via-open"))
	require.NoError(t, err)
	got, err := badgerBS.Get(ctx, c)
	require.NoError(t, err)
	require.Equal(t, []byte("via-open"), got)

	_, err = store.Open("bogus", dir)
	require.Error(t, err)
}
