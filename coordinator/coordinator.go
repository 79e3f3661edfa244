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

// Package coordinator implements the Atomic Execution Coordinator
// (spec §4.3): a free-standing actor in the parent subnet that
// collects PreCommit messages keyed by (exec_id, participant-set)
// and, once every participant has checked in, dispatches commit
// messages back out — or, on Revoke, echoes a single rollback to the
// revoking participant.
package coordinator

import (
	"context"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipc-labs/atomicexec/atomiclog"
	"github.com/ipc-labs/atomicexec/atomicerr"
	"github.com/ipc-labs/atomicexec/gateway"
	"github.com/ipc-labs/atomicexec/hamtutil"
	"github.com/ipc-labs/atomicexec/ipcaddr"
	"github.com/ipc-labs/atomicexec/store"
	"github.com/ipc-labs/atomicexec/wire"
	"github.com/ipfs/go-cid"
	"go.uber.org/zap"
	set "gopkg.in/fatih/set.v0"
)

var log = atomiclog.NewModuleLogger("coordinator")

// commitSlot is one participant's pre-committed (address, method) pair.
type commitSlot struct {
	_      struct{} `cbor:",toarray"`
	Addr   ipcaddr.IPCAddress
	Method uint64
}

// CoordinatorEntry is the value stored under a (exec_id, actors) key:
// the participant→commit-method map of spec §3, represented as a
// slice of slots so the CBOR encoding stays a deterministic tuple.
type CoordinatorEntry struct {
	_     struct{} `cbor:",toarray"`
	Slots []commitSlot
}

func (e CoordinatorEntry) slotIndex(addr ipcaddr.IPCAddress) int {
	for i, s := range e.Slots {
		if s.Addr.Equal(addr) {
			return i
		}
	}
	return -1
}

func (e CoordinatorEntry) withSlot(addr ipcaddr.IPCAddress, method uint64) CoordinatorEntry {
	if i := e.slotIndex(addr); i >= 0 {
		e.Slots[i].Method = method
		return e
	}
	e.Slots = append(e.Slots, commitSlot{Addr: addr, Method: method})
	return e
}

func (e CoordinatorEntry) withoutSlot(addr ipcaddr.IPCAddress) CoordinatorEntry {
	i := e.slotIndex(addr)
	if i < 0 {
		return e
	}
	slots := make([]commitSlot, 0, len(e.Slots)-1)
	slots = append(slots, e.Slots[:i]...)
	slots = append(slots, e.Slots[i+1:]...)
	e.Slots = slots
	return e
}

func (e CoordinatorEntry) isCompleteFor(actors []ipcaddr.IPCAddress) bool {
	if len(e.Slots) != len(actors) {
		return false
	}
	for _, a := range actors {
		if e.slotIndex(a) < 0 {
			return false
		}
	}
	return true
}

// actorSet builds an in-memory membership set out of a PreCommit/Revoke
// participant list. The wire encoding of the set stays the
// bytewise-sorted array wire.SortAddresses produces (I5 needs a
// deterministic byte layout, which a hash set cannot give); set.v0 is
// only used for the O(1) "is from one of actors" check below.
func actorSet(actors []ipcaddr.IPCAddress) *set.Set {
	s := set.New()
	for _, a := range actors {
		s.Add(a.String())
	}
	return s
}

func containsAddr(actors []ipcaddr.IPCAddress, addr ipcaddr.IPCAddress) bool {
	return actorSet(actors).Has(addr.String())
}

// entryKey is the (exec_id, actors) composite spec §3/§6 keys
// CoordinatorEntry on (I6): distinct participant sets with the same
// exec_id never alias each other because Actors is part of the key.
type entryKey struct {
	_      struct{} `cbor:",toarray"`
	ExecID wire.AtomicExecID
	Actors []ipcaddr.IPCAddress
}

func computeKey(execID wire.AtomicExecID, actors []ipcaddr.IPCAddress) ([]byte, error) {
	sorted := wire.SortAddresses(actors)
	data, err := cbor.Marshal(entryKey{ExecID: execID, Actors: sorted})
	if err != nil {
		return nil, atomicerr.Wrap(atomicerr.Unspecified, err, "coordinator: encoding entry key")
	}
	return data, nil
}

// Coordinator is the per-deployment state of spec §4.3.
type Coordinator struct {
	mu          sync.Mutex
	self        ipcaddr.IPCAddress
	gatewayAddr ipcaddr.IPCAddress
	gw          gateway.Gateway
	entries     *hamtutil.Map[CoordinatorEntry]
}

// New is the coordinator's Constructor (spec §4.3): it takes the
// coordinator's own address (needed to stamp outbound messages) and
// the configured gateway address (the only caller PreCommit/Revoke
// will accept), and creates an empty (exec_id, actors)→slots registry.
func New(self, gatewayAddr ipcaddr.IPCAddress, gw gateway.Gateway, bs store.Blockstore) *Coordinator {
	return &Coordinator{
		self:        self,
		gatewayAddr: gatewayAddr,
		gw:          gw,
		entries:     hamtutil.NewMap[CoordinatorEntry](bs),
	}
}

// HandleCross is the coordinator's gateway.Handler entry point: the
// gateway is the only thing that ever calls it, so the caller identity
// passed down to PreCommit/Revoke is always the gateway's own address.
func (c *Coordinator) HandleCross(ctx context.Context, msg wire.CrossMsg) error {
	switch wire.MethodNum(msg.Msg.Method) {
	case wire.MethodPreCommit:
		var params wire.PreCommitParams
		if err := cbor.Unmarshal(msg.Msg.Params, &params); err != nil {
			return atomicerr.Wrap(atomicerr.IllegalArgument, err, "coordinator: decoding precommit params")
		}
		_, err := c.PreCommit(ctx, c.gw.Address(), msg.Msg.From, params)
		return err
	case wire.MethodRevoke:
		var params wire.RevokeParams
		if err := cbor.Unmarshal(msg.Msg.Params, &params); err != nil {
			return atomicerr.Wrap(atomicerr.IllegalArgument, err, "coordinator: decoding revoke params")
		}
		return c.Revoke(ctx, c.gw.Address(), msg.Msg.From, params)
	default:
		return atomicerr.Newf(atomicerr.UnhandledMessage, "coordinator: unhandled method %d", msg.Msg.Method)
	}
}

// PreCommit is spec §4.3's PreCommit method, exposed directly (rather
// than only through HandleCross) so callers can exercise the
// caller-authentication failure path (scenario 4) without a gateway
// in the loop at all.
func (c *Coordinator) PreCommit(ctx context.Context, caller, from ipcaddr.IPCAddress, params wire.PreCommitParams) (bool, error) {
	if !caller.Equal(c.gatewayAddr) {
		return false, atomicerr.New(atomicerr.Forbidden, "coordinator: precommit caller is not the configured gateway")
	}
	if !containsAddr(params.Actors, from) {
		return false, atomicerr.New(atomicerr.IllegalArgument, "coordinator: precommit origin is not a participant")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := computeKey(params.ExecID, params.Actors)
	if err != nil {
		return false, err
	}
	entry, _, err := c.entries.Get(ctx, key)
	if err != nil {
		return false, atomicerr.Wrap(atomicerr.Unspecified, err, "coordinator: reading entry")
	}
	entry = entry.withSlot(from, params.Commit)

	if !entry.isCompleteFor(params.Actors) {
		if err := c.entries.Put(ctx, key, entry); err != nil {
			return false, atomicerr.Wrap(atomicerr.Unspecified, err, "coordinator: storing entry")
		}
		log.Debugw("precommit partial", zap.String("exec_id", params.ExecID.String()), zap.Int("slots", len(entry.Slots)))
		return false, nil
	}

	for _, slot := range entry.Slots {
		out := wire.CrossMsg{
			Wrapped: true,
			Msg: wire.StorableMsg{
				To:     slot.Addr,
				From:   c.self,
				Method: slot.Method,
				Params: []byte(params.ExecID),
			},
		}
		if err := c.gw.SendCross(ctx, out); err != nil {
			return false, atomicerr.Wrap(atomicerr.Unspecified, err, "coordinator: dispatching commit")
		}
	}
	if err := c.entries.Delete(ctx, key); err != nil {
		return false, atomicerr.Wrap(atomicerr.Unspecified, err, "coordinator: deleting completed entry")
	}
	log.Debugw("precommit complete, dispatched commits", zap.String("exec_id", params.ExecID.String()))
	return true, nil
}

// Revoke is spec §4.3's Revoke method. It always echoes exactly one
// rollback message to the revoking participant, whether or not the
// entry existed or carried that participant's slot, and leaves the
// (possibly empty) entry behind for the rest of the set.
func (c *Coordinator) Revoke(ctx context.Context, caller, from ipcaddr.IPCAddress, params wire.RevokeParams) error {
	if !caller.Equal(c.gatewayAddr) {
		return atomicerr.New(atomicerr.Forbidden, "coordinator: revoke caller is not the configured gateway")
	}
	if !containsAddr(params.Actors, from) {
		return atomicerr.New(atomicerr.IllegalArgument, "coordinator: revoke origin is not a participant")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := computeKey(params.ExecID, params.Actors)
	if err != nil {
		return err
	}
	entry, _, err := c.entries.Get(ctx, key)
	if err != nil {
		return atomicerr.Wrap(atomicerr.Unspecified, err, "coordinator: reading entry")
	}
	entry = entry.withoutSlot(from)
	if err := c.entries.Put(ctx, key, entry); err != nil {
		return atomicerr.Wrap(atomicerr.Unspecified, err, "coordinator: storing entry")
	}

	out := wire.CrossMsg{
		Wrapped: true,
		Msg: wire.StorableMsg{
			To:     from,
			From:   c.self,
			Method: params.Rollback,
			Params: []byte(params.ExecID),
		},
	}
	if err := c.gw.SendCross(ctx, out); err != nil {
		return atomicerr.Wrap(atomicerr.Unspecified, err, "coordinator: dispatching rollback")
	}
	log.Debugw("revoke handled", zap.String("exec_id", params.ExecID.String()), zap.String("from", from.String()))
	return nil
}

// Flush persists the coordinator's entry map and returns its root CID.
func (c *Coordinator) Flush(ctx context.Context) (cid.Cid, error) {
	return c.entries.Flush(ctx)
}
