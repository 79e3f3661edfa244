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

// Package wire is the cross-subnet wire vocabulary of spec §6:
// PreCommitParams/RevokeParams, the wrapped cross-message envelope,
// coordinator method numbers, and the two identifier derivations
// (AtomicInputID, AtomicExecID) that must be byte-exact across
// independently-implemented participants (I5).
package wire

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/ipc-labs/atomicexec/cidutil"
	"github.com/ipc-labs/atomicexec/ipcaddr"
	"github.com/pkg/errors"
)

// MethodNum is a coordinator actor method number (spec §6).
type MethodNum uint64

const (
	MethodConstructor MethodNum = 1
	MethodPreCommit   MethodNum = 2
	MethodRevoke      MethodNum = 3
)

// AtomicInputID is a 32-byte Blake2b digest minted by init_atomic_exec.
type AtomicInputID []byte

// AtomicExecID is a 32-byte Blake2b digest minted by prepare_atomic_exec.
type AtomicExecID []byte

func (id AtomicInputID) String() string { return hexString(id) }
func (id AtomicExecID) String() string  { return hexString(id) }

func hexString(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0xf]
	}
	return string(out)
}

// canonicalEncMode gives every identifier derivation and wire encoding
// in this package the same deterministic, bytewise-sorted-map CBOR
// encoding, which is what makes I5 (two participants independently
// computing the same AtomicExecID) hold.
var canonicalEncMode = mustCanonicalEncMode()

func mustCanonicalEncMode() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	opts.Sort = cbor.SortBytewiseLexical
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// ComputeInputID derives AtomicInputID = blake2b(cbor(nonce) ‖
// cbor(cid0) ‖ ... ‖ cbor(cidk) ‖ input) (spec §6). stateCids is the
// unlocked_state_cids list captured at init time, in the same order
// the caller's state refs were iterated.
func ComputeInputID(nonce uint64, stateCids []cid.Cid, input []byte) (AtomicInputID, error) {
	var buf bytes.Buffer
	nonceBytes, err := canonicalEncMode.Marshal(nonce)
	if err != nil {
		return nil, errors.Wrap(err, "wire: encoding nonce")
	}
	buf.Write(nonceBytes)
	for _, c := range stateCids {
		cidBytes, err := canonicalEncMode.Marshal(c.Bytes())
		if err != nil {
			return nil, errors.Wrap(err, "wire: encoding state cid")
		}
		buf.Write(cidBytes)
	}
	buf.Write(input)
	return sum256(buf.Bytes()), nil
}

// ComputeExecID derives AtomicExecID = blake2b(cbor(map<IPCAddress,
// AtomicInputID>)) (spec §6, I5). The canonical encoder sorts map keys
// bytewise by their encoded form, so any two participants that agree on
// the mapping compute byte-identical output regardless of Go map
// iteration order.
func ComputeExecID(inputIDs map[ipcaddr.IPCAddress]AtomicInputID) (AtomicExecID, error) {
	data, err := canonicalEncMode.Marshal(inputIDs)
	if err != nil {
		return nil, errors.Wrap(err, "wire: encoding input id map")
	}
	return sum256(data), nil
}

func sum256(data []byte) []byte {
	h := cidutil.Sum256(data)
	out := make([]byte, len(h))
	copy(out, h[:])
	return out
}

// SortAddresses returns a new slice of addrs sorted bytewise by their
// canonical CBOR encoding, the ordering Design Notes (spec §9)
// recommends for anything CBOR-encoding a set of IPCAddress.
func SortAddresses(addrs []ipcaddr.IPCAddress) []ipcaddr.IPCAddress {
	out := make([]ipcaddr.IPCAddress, len(addrs))
	copy(out, addrs)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Bytes(), out[j].Bytes()) < 0
	})
	return out
}

// PreCommitParams is the payload of a PreCommit cross-message (spec §6):
// `(actors: set<IPCAddress>, exec_id: bytes, commit: u64)`. The set is
// carried as a bytewise-sorted array, which is both a valid CBOR
// encoding of a set and deterministic across participants.
type PreCommitParams struct {
	_      struct{} `cbor:",toarray"`
	Actors []ipcaddr.IPCAddress
	ExecID AtomicExecID
	Commit uint64
}

// RevokeParams is the payload of a Revoke cross-message (spec §6):
// `(actors: set<IPCAddress>, exec_id: bytes, rollback: u64)`.
type RevokeParams struct {
	_        struct{} `cbor:",toarray"`
	Actors   []ipcaddr.IPCAddress
	ExecID   AtomicExecID
	Rollback uint64
}

// StorableMsg is the gateway-level message shape spec §6 assumes,
// trimmed to the fields the coordinator and participants actually
// touch (the real gateway's StorableMsg carries more bookkeeping
// fields that are none of this core's business).
type StorableMsg struct {
	_      struct{} `cbor:",toarray"`
	To     ipcaddr.IPCAddress
	From   ipcaddr.IPCAddress
	Method uint64
	Params []byte
	Value  *big.Int
	Nonce  uint64
}

// CrossMsg is the wrapped cross-subnet message envelope (spec §6): the
// coordinator always emits wrapped = true so the receiving participant
// can trust Msg.From as the gateway-authenticated sender.
type CrossMsg struct {
	_       struct{} `cbor:",toarray"`
	Msg     StorableMsg
	Wrapped bool
}
