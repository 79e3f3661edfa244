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

package coordinator_test

import (
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/ipc-labs/atomicexec/atomicerr"
	"github.com/ipc-labs/atomicexec/coordinator"
	"github.com/ipc-labs/atomicexec/ipcaddr"
	"github.com/ipc-labs/atomicexec/store"
	"github.com/ipc-labs/atomicexec/wire"
	"github.com/stretchr/testify/require"
)

type recordingGateway struct {
	self ipcaddr.IPCAddress
	sent []wire.CrossMsg
}

func (g *recordingGateway) Address() ipcaddr.IPCAddress { return g.self }

func (g *recordingGateway) SendCross(ctx context.Context, msg wire.CrossMsg) error {
	msg.Wrapped = true
	g.sent = append(g.sent, msg)
	return nil
}

func testAddr(t *testing.T, id uint64) ipcaddr.IPCAddress {
	t.Helper()
	a, err := addr.NewIDAddress(id)
	require.NoError(t, err)
	ipc, err := ipcaddr.New(ipcaddr.RootSubnet, a)
	require.NoError(t, err)
	return ipc
}

func execID(t *testing.T, b byte) wire.AtomicExecID {
	t.Helper()
	id := make(wire.AtomicExecID, 32)
	for i := range id {
		id[i] = b
	}
	return id
}

func TestPreCommitDispatchesOnceQuorumReached(t *testing.T) {
	ctx := context.Background()
	bs := store.NewMemBlockstore()
	self := testAddr(t, 1)
	gatewayAddr := testAddr(t, 2)
	p1, p2 := testAddr(t, 101), testAddr(t, 102)
	gw := &recordingGateway{self: gatewayAddr}
	c := coordinator.New(self, gatewayAddr, gw, bs)

	exec := execID(t, 0xAA)
	actors := []ipcaddr.IPCAddress{p1, p2}

	done, err := c.PreCommit(ctx, gatewayAddr, p1, wire.PreCommitParams{Actors: actors, ExecID: exec, Commit: 7})
	require.NoError(t, err)
	require.False(t, done)
	require.Empty(t, gw.sent)

	done, err = c.PreCommit(ctx, gatewayAddr, p2, wire.PreCommitParams{Actors: actors, ExecID: exec, Commit: 9})
	require.NoError(t, err)
	require.True(t, done)
	require.Len(t, gw.sent, 2)
	for _, msg := range gw.sent {
		require.True(t, msg.Wrapped)
		require.Equal(t, []byte(exec), msg.Msg.Params)
	}
}

func TestPreCommitUnauthorizedCallerForbidden(t *testing.T) {
	ctx := context.Background()
	bs := store.NewMemBlockstore()
	self := testAddr(t, 1)
	gatewayAddr := testAddr(t, 2)
	rogue := testAddr(t, 666)
	p1 := testAddr(t, 101)
	gw := &recordingGateway{self: gatewayAddr}
	c := coordinator.New(self, gatewayAddr, gw, bs)

	_, err := c.PreCommit(ctx, rogue, p1, wire.PreCommitParams{
		Actors: []ipcaddr.IPCAddress{p1}, ExecID: execID(t, 1), Commit: 1,
	})
	require.True(t, atomicerr.Is(err, atomicerr.Forbidden))
	require.Empty(t, gw.sent)
}

func TestPreCommitNonParticipantOriginRejected(t *testing.T) {
	ctx := context.Background()
	bs := store.NewMemBlockstore()
	self := testAddr(t, 1)
	gatewayAddr := testAddr(t, 2)
	p1, outsider := testAddr(t, 101), testAddr(t, 999)
	gw := &recordingGateway{self: gatewayAddr}
	c := coordinator.New(self, gatewayAddr, gw, bs)

	_, err := c.PreCommit(ctx, gatewayAddr, outsider, wire.PreCommitParams{
		Actors: []ipcaddr.IPCAddress{p1}, ExecID: execID(t, 2), Commit: 1,
	})
	require.True(t, atomicerr.Is(err, atomicerr.IllegalArgument))
	require.Empty(t, gw.sent)
}

func TestRevokeEchoesRollbackAndLeavesEntry(t *testing.T) {
	ctx := context.Background()
	bs := store.NewMemBlockstore()
	self := testAddr(t, 1)
	gatewayAddr := testAddr(t, 2)
	p1, p2 := testAddr(t, 101), testAddr(t, 102)
	gw := &recordingGateway{self: gatewayAddr}
	c := coordinator.New(self, gatewayAddr, gw, bs)

	exec := execID(t, 0xBB)
	actors := []ipcaddr.IPCAddress{p1, p2}

	done, err := c.PreCommit(ctx, gatewayAddr, p1, wire.PreCommitParams{Actors: actors, ExecID: exec, Commit: 7})
	require.NoError(t, err)
	require.False(t, done)

	err = c.Revoke(ctx, gatewayAddr, p1, wire.RevokeParams{Actors: actors, ExecID: exec, Rollback: 3})
	require.NoError(t, err)
	require.Len(t, gw.sent, 1)
	require.Equal(t, p1, gw.sent[0].Msg.To)
	require.Equal(t, uint64(3), gw.sent[0].Msg.Method)

	// p2 never revoked or precommitted again: a later PreCommit from p2
	// alone is still only a partial (p1's slot was cleared by Revoke).
	done, err = c.PreCommit(ctx, gatewayAddr, p2, wire.PreCommitParams{Actors: actors, ExecID: exec, Commit: 9})
	require.NoError(t, err)
	require.False(t, done)
}

func TestRevokeFromNonParticipantRejected(t *testing.T) {
	ctx := context.Background()
	bs := store.NewMemBlockstore()
	self := testAddr(t, 1)
	gatewayAddr := testAddr(t, 2)
	p1, outsider := testAddr(t, 101), testAddr(t, 999)
	gw := &recordingGateway{self: gatewayAddr}
	c := coordinator.New(self, gatewayAddr, gw, bs)

	err := c.Revoke(ctx, gatewayAddr, outsider, wire.RevokeParams{
		Actors: []ipcaddr.IPCAddress{p1}, ExecID: execID(t, 3), Rollback: 3,
	})
	require.True(t, atomicerr.Is(err, atomicerr.IllegalArgument))
	require.Empty(t, gw.sent)
}

func TestDistinctParticipantSetsAreIndependent(t *testing.T) {
	ctx := context.Background()
	bs := store.NewMemBlockstore()
	self := testAddr(t, 1)
	gatewayAddr := testAddr(t, 2)
	p1, p2, p3 := testAddr(t, 101), testAddr(t, 102), testAddr(t, 103)
	gw := &recordingGateway{self: gatewayAddr}
	c := coordinator.New(self, gatewayAddr, gw, bs)

	exec := execID(t, 0xCC)

	done, err := c.PreCommit(ctx, gatewayAddr, p1, wire.PreCommitParams{
		Actors: []ipcaddr.IPCAddress{p1, p2}, ExecID: exec, Commit: 1,
	})
	require.NoError(t, err)
	require.False(t, done)

	// Same exec_id, different actor set: independent entry (I6), so
	// this alone does not complete the first set's quorum.
	done, err = c.PreCommit(ctx, gatewayAddr, p1, wire.PreCommitParams{
		Actors: []ipcaddr.IPCAddress{p1, p3}, ExecID: exec, Commit: 1,
	})
	require.NoError(t, err)
	require.False(t, done)
	require.Empty(t, gw.sent)
}
