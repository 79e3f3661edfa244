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

package wire_test

import (
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/ipc-labs/atomicexec/ipcaddr"
	"github.com/ipc-labs/atomicexec/wire"
	"github.com/stretchr/testify/require"
)

func mustAddr(t *testing.T, id uint64) addr.Address {
	t.Helper()
	a, err := addr.NewIDAddress(id)
	require.NoError(t, err)
	return a
}

func TestComputeInputIDDeterministic(t *testing.T) {
	id1, err := wire.ComputeInputID(7, nil, []byte("payload"))
	require.NoError(t, err)
	id2, err := wire.ComputeInputID(7, nil, []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, id1, id2)
	require.Len(t, []byte(id1), 32)
}

func TestComputeInputIDVariesWithNonce(t *testing.T) {
	id1, err := wire.ComputeInputID(1, nil, []byte("payload"))
	require.NoError(t, err)
	id2, err := wire.ComputeInputID(2, nil, []byte("payload"))
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestComputeExecIDOrderIndependent(t *testing.T) {
	a1, err := ipcaddr.New(ipcaddr.RootSubnet, mustAddr(t, 101))
	require.NoError(t, err)
	a2, err := ipcaddr.New(ipcaddr.RootSubnet, mustAddr(t, 102))
	require.NoError(t, err)

	in1, err := wire.ComputeInputID(0, nil, []byte("a"))
	require.NoError(t, err)
	in2, err := wire.ComputeInputID(0, nil, []byte("b"))
	require.NoError(t, err)

	m1 := map[ipcaddr.IPCAddress]wire.AtomicInputID{a1: in1, a2: in2}
	m2 := map[ipcaddr.IPCAddress]wire.AtomicInputID{a2: in2, a1: in1}

	exec1, err := wire.ComputeExecID(m1)
	require.NoError(t, err)
	exec2, err := wire.ComputeExecID(m2)
	require.NoError(t, err)

	require.Equal(t, exec1, exec2)
	require.Len(t, []byte(exec1), 32)
}

func TestComputeExecIDChangesWithMembership(t *testing.T) {
	a1, err := ipcaddr.New(ipcaddr.RootSubnet, mustAddr(t, 201))
	require.NoError(t, err)
	a2, err := ipcaddr.New(ipcaddr.RootSubnet, mustAddr(t, 202))
	require.NoError(t, err)
	in, err := wire.ComputeInputID(0, nil, []byte("x"))
	require.NoError(t, err)

	exec1, err := wire.ComputeExecID(map[ipcaddr.IPCAddress]wire.AtomicInputID{a1: in})
	require.NoError(t, err)
	exec2, err := wire.ComputeExecID(map[ipcaddr.IPCAddress]wire.AtomicInputID{a1: in, a2: in})
	require.NoError(t, err)

	require.NotEqual(t, exec1, exec2)
}

func TestSortAddressesDeterministic(t *testing.T) {
	a1, err := ipcaddr.New(ipcaddr.RootSubnet, mustAddr(t, 301))
	require.NoError(t, err)
	a2, err := ipcaddr.New(ipcaddr.RootSubnet, mustAddr(t, 302))
	require.NoError(t, err)

	s1 := wire.SortAddresses([]ipcaddr.IPCAddress{a2, a1})
	s2 := wire.SortAddresses([]ipcaddr.IPCAddress{a1, a2})
	require.Equal(t, s1, s2)
}
