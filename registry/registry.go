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

// Package registry implements the Atomic Execution Registry (spec
// §4.2): the per-participant engine driving init → prepare →
// commit/cancel/rollback over a set of locked state slices, backed by
// two HAMTs of in-flight inputs and in-flight outputs.
package registry

import (
	"context"
	"math"

	"github.com/ipc-labs/atomicexec/atomiclog"
	"github.com/ipc-labs/atomicexec/atomicerr"
	"github.com/ipc-labs/atomicexec/hamtutil"
	"github.com/ipc-labs/atomicexec/ipcaddr"
	"github.com/ipc-labs/atomicexec/store"
	"github.com/ipc-labs/atomicexec/wire"
	"github.com/ipfs/go-cid"
	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
)

var log = atomiclog.NewModuleLogger("registry")

// Per-registry counters, named and registered the way
// node/sc/bridge_tx_pool.go registers its pool counters.
var (
	initCounter     = metrics.NewRegisteredCounter("atomicexec/registry/init", nil)
	cancelCounter   = metrics.NewRegisteredCounter("atomicexec/registry/cancel", nil)
	prepareCounter  = metrics.NewRegisteredCounter("atomicexec/registry/prepare", nil)
	commitCounter   = metrics.NewRegisteredCounter("atomicexec/registry/commit", nil)
	rollbackCounter = metrics.NewRegisteredCounter("atomicexec/registry/rollback", nil)
)

// LockableRef is the capability set (spec §9, "Generic over lockable
// payload") a registry method needs from a state slice, independent of
// the slice's payload type. *state.LockableState[T] satisfies this for
// any T, which is how one registry touches heterogeneous slices.
type LockableRef interface {
	Lock() error
	Unlock() error
	IsLocked() bool
	Cid() (cid.Cid, error)
}

// AtomicInputEntry is the record created by init_atomic_exec and
// consumed by cancel_atomic_exec or prepare_atomic_exec.
type AtomicInputEntry struct {
	_                 struct{} `cbor:",toarray"`
	UnlockedStateCids []cid.Cid
	Input             []byte
}

// AtomicOutputEntry is the record created by prepare_atomic_exec and
// consumed by commit_atomic_exec or rollback_atomic_exec.
type AtomicOutputEntry struct {
	_      struct{} `cbor:",toarray"`
	Output []byte
}

// Registry is the per-participant engine of spec §4.2: a monotonic
// nonce plus the two HAMTs named in §6's "Persisted state".
type Registry struct {
	nonce   uint64
	inputs  *hamtutil.Map[AtomicInputEntry]
	outputs *hamtutil.Map[AtomicOutputEntry]
}

// New creates an empty registry backed by bs.
func New(bs store.Blockstore) *Registry {
	return &Registry{
		inputs:  hamtutil.NewMap[AtomicInputEntry](bs),
		outputs: hamtutil.NewMap[AtomicOutputEntry](bs),
	}
}

// Persisted is the (nonce, inputs-root, outputs-root) tuple
// embedded in the owning actor's state.
type Persisted struct {
	_           struct{} `cbor:",toarray"`
	Nonce       uint64
	InputsRoot  cid.Cid
	OutputsRoot cid.Cid
}

// Flush persists both HAMTs and returns the Persisted tuple (nonce and
// both root CIDs) capturing the registry's full on-chain footprint.
func (r *Registry) Flush(ctx context.Context) (Persisted, error) {
	inRoot, err := r.inputs.Flush(ctx)
	if err != nil {
		return Persisted{}, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: flushing inputs")
	}
	outRoot, err := r.outputs.Flush(ctx)
	if err != nil {
		return Persisted{}, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: flushing outputs")
	}
	return Persisted{Nonce: r.nonce, InputsRoot: inRoot, OutputsRoot: outRoot}, nil
}

// Load resumes a registry from its persisted tuple.
func Load(ctx context.Context, bs store.Blockstore, p Persisted) (*Registry, error) {
	inputs, err := hamtutil.LoadMap[AtomicInputEntry](ctx, bs, p.InputsRoot)
	if err != nil {
		return nil, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: loading inputs")
	}
	outputs, err := hamtutil.LoadMap[AtomicOutputEntry](ctx, bs, p.OutputsRoot)
	if err != nil {
		return nil, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: loading outputs")
	}
	return &Registry{nonce: p.Nonce, inputs: inputs, outputs: outputs}, nil
}

// Nonce returns the registry's current monotonic counter, mainly for
// tests and diagnostics.
func (r *Registry) Nonce() uint64 { return r.nonce }

// InitAtomicExec is spec §4.2.1. refs is the lazy sequence of state
// slices this execution will touch, in the fixed order the caller
// will also present them in at prepare time. When lockNow is true
// every ref is locked immediately and unlocked_state_cids stays empty;
// otherwise each ref's current CID is captured and no lock is taken.
func (r *Registry) InitAtomicExec(ctx context.Context, refs []LockableRef, input []byte, lockNow bool) (wire.AtomicInputID, error) {
	if r.nonce == math.MaxUint64 {
		return nil, atomicerr.ErrNonceExhausted
	}

	var cids []cid.Cid
	if lockNow {
		locked := make([]LockableRef, 0, len(refs))
		for _, ref := range refs {
			if err := ref.Lock(); err != nil {
				for _, l := range locked {
					_ = l.Unlock()
				}
				return nil, atomicerr.Wrap(atomicerr.IllegalState, err, "registry: init: locking state ref")
			}
			locked = append(locked, ref)
		}
	} else {
		cids = make([]cid.Cid, 0, len(refs))
		for _, ref := range refs {
			c, err := ref.Cid()
			if err != nil {
				return nil, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: init: computing state cid")
			}
			cids = append(cids, c)
		}
	}

	nonce := r.nonce
	r.nonce++

	inputID, err := wire.ComputeInputID(nonce, cids, input)
	if err != nil {
		return nil, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: init: deriving input id")
	}

	if err := r.inputs.Put(ctx, inputID, AtomicInputEntry{UnlockedStateCids: cids, Input: input}); err != nil {
		return nil, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: init: storing input entry")
	}
	initCounter.Inc(1)
	log.Debugw("init_atomic_exec", zap.Uint64("nonce", nonce), zap.Bool("lock_now", lockNow))
	return inputID, nil
}

// CancelAtomicExec is spec §4.2.2. inputFn decodes the stored input
// blob back into the same sequence of state refs init_atomic_exec was
// given. Unlocking is idempotent w.r.t. slices that are already
// unlocked.
func (r *Registry) CancelAtomicExec(ctx context.Context, inputID wire.AtomicInputID, inputFn func(input []byte) ([]LockableRef, error)) error {
	entry, ok, err := r.inputs.Get(ctx, inputID)
	if err != nil {
		return atomicerr.Wrap(atomicerr.Unspecified, err, "registry: cancel: reading input entry")
	}
	if !ok {
		return atomicerr.ErrUnknownInputID
	}
	if err := r.inputs.Delete(ctx, inputID); err != nil {
		return atomicerr.Wrap(atomicerr.Unspecified, err, "registry: cancel: deleting input entry")
	}

	refs, err := inputFn(entry.Input)
	if err != nil {
		return atomicerr.Wrap(atomicerr.Unspecified, err, "registry: cancel: decoding input")
	}
	for _, ref := range refs {
		if !ref.IsLocked() {
			continue
		}
		if err := ref.Unlock(); err != nil {
			return atomicerr.Wrap(atomicerr.IllegalState, err, "registry: cancel: unlocking state ref")
		}
	}
	cancelCounter.Inc(1)
	log.Debugw("cancel_atomic_exec", zap.String("input_id", inputID.String()))
	return nil
}

// PrepareAtomicExec is spec §4.2.3. I is the caller's decoded input
// payload type. inputFn decodes the stored input blob into (payload,
// refs); outputFn derives the opaque output blob to store under the
// minted exec_id from that payload.
func PrepareAtomicExec[I any](
	ctx context.Context,
	r *Registry,
	ownInputID wire.AtomicInputID,
	allInputIDs map[ipcaddr.IPCAddress]wire.AtomicInputID,
	inputFn func(input []byte) (I, []LockableRef, error),
	outputFn func(I) ([]byte, error),
) (wire.AtomicExecID, error) {
	entry, ok, err := r.inputs.Get(ctx, ownInputID)
	if err != nil {
		return nil, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: prepare: reading input entry")
	}
	if !ok {
		return nil, atomicerr.ErrUnknownInputID
	}
	if err := r.inputs.Delete(ctx, ownInputID); err != nil {
		return nil, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: prepare: deleting input entry")
	}

	payload, refs, err := inputFn(entry.Input)
	if err != nil {
		return nil, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: prepare: decoding input")
	}

	recorded := make([]cid.Cid, 0, len(refs))
	lockedNow := make([]LockableRef, 0, len(refs))
	mismatch := false
	for _, ref := range refs {
		if ref.IsLocked() {
			continue
		}
		c, err := ref.Cid()
		if err != nil {
			return nil, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: prepare: computing state cid")
		}
		recorded = append(recorded, c)
		if err := ref.Lock(); err != nil {
			return nil, atomicerr.Wrap(atomicerr.IllegalState, err, "registry: prepare: locking state ref")
		}
		lockedNow = append(lockedNow, ref)
	}

	if len(recorded) != len(entry.UnlockedStateCids) {
		mismatch = true
	} else {
		for i, c := range recorded {
			if !c.Equals(entry.UnlockedStateCids[i]) {
				mismatch = true
				break
			}
		}
	}
	if mismatch {
		for _, l := range lockedNow {
			_ = l.Unlock()
		}
		return nil, atomicerr.ErrStateCidMismatch
	}

	execID, err := wire.ComputeExecID(allInputIDs)
	if err != nil {
		for _, l := range lockedNow {
			_ = l.Unlock()
		}
		return nil, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: prepare: deriving exec id")
	}

	output, err := outputFn(payload)
	if err != nil {
		for _, l := range lockedNow {
			_ = l.Unlock()
		}
		return nil, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: prepare: computing output")
	}

	if err := r.outputs.Put(ctx, execID, AtomicOutputEntry{Output: output}); err != nil {
		return nil, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: prepare: storing output entry")
	}
	prepareCounter.Inc(1)
	log.Debugw("prepare_atomic_exec", zap.String("exec_id", execID.String()))
	return execID, nil
}

// CommitAtomicExec is spec §4.2.4. outputFn decodes the stored output
// blob into (payload, refs); every ref is unlocked unconditionally
// before applyFn runs the actual semantic mutation.
func CommitAtomicExec[O, R any](
	ctx context.Context,
	r *Registry,
	execID wire.AtomicExecID,
	outputFn func(output []byte) (O, []LockableRef, error),
	applyFn func(O) (R, error),
) (R, error) {
	var zero R
	entry, ok, err := r.outputs.Get(ctx, execID)
	if err != nil {
		return zero, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: commit: reading output entry")
	}
	if !ok {
		return zero, atomicerr.ErrUnknownExecID
	}
	if err := r.outputs.Delete(ctx, execID); err != nil {
		return zero, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: commit: deleting output entry")
	}

	payload, refs, err := outputFn(entry.Output)
	if err != nil {
		return zero, atomicerr.Wrap(atomicerr.Unspecified, err, "registry: commit: decoding output")
	}
	for _, ref := range refs {
		if err := ref.Unlock(); err != nil {
			return zero, atomicerr.Wrap(atomicerr.IllegalState, err, "registry: commit: unlocking state ref")
		}
	}

	result, err := applyFn(payload)
	commitCounter.Inc(1)
	log.Debugw("commit_atomic_exec", zap.String("exec_id", execID.String()))
	return result, err
}

// RollbackAtomicExec is spec §4.2.5, symmetric with CommitAtomicExec.
// A missing output entry is treated as success: rollback must never
// fail for want of state to roll back.
func RollbackAtomicExec[O any](
	ctx context.Context,
	r *Registry,
	execID wire.AtomicExecID,
	outputFn func(output []byte) (O, []LockableRef, error),
	rollbackFn func(O) error,
) error {
	entry, ok, err := r.outputs.Get(ctx, execID)
	if err != nil {
		return atomicerr.Wrap(atomicerr.Unspecified, err, "registry: rollback: reading output entry")
	}
	if !ok {
		return nil
	}
	if err := r.outputs.Delete(ctx, execID); err != nil {
		return atomicerr.Wrap(atomicerr.Unspecified, err, "registry: rollback: deleting output entry")
	}

	payload, refs, err := outputFn(entry.Output)
	if err != nil {
		return atomicerr.Wrap(atomicerr.Unspecified, err, "registry: rollback: decoding output")
	}
	for _, ref := range refs {
		if err := ref.Unlock(); err != nil {
			return atomicerr.Wrap(atomicerr.IllegalState, err, "registry: rollback: unlocking state ref")
		}
	}

	err = rollbackFn(payload)
	rollbackCounter.Inc(1)
	log.Debugw("rollback_atomic_exec", zap.String("exec_id", execID.String()))
	return err
}
