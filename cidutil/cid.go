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

// Package cidutil builds the content identifiers and deterministic
// identifier digests spec §6 requires: CIDv1, codec DAG-CBOR, multihash
// Blake2b-256 for LockableState.cid, and raw Blake2b-256 digests for
// AtomicInputID/AtomicExecID.
package cidutil

import (
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// blake2b256Code is go-multihash's table entry for the 32-byte Blake2b
// variant (BLAKE2B_MIN denotes the 1-byte digest size; +31 reaches 32).
const blake2b256Code = mh.BLAKE2B_MIN + 31

// Sum256 returns the raw 32-byte Blake2b-256 digest of data. Used
// directly (outside of any CID wrapping) for AtomicInputID and
// AtomicExecID, which spec §6 defines as bare digests, not CIDs.
func Sum256(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// NewCBORCid wraps the Blake2b-256 digest of a DAG-CBOR byte string into
// a CIDv1, per spec §6's "CID v1 with codec DAG-CBOR, multihash
// Blake2b-256".
func NewCBORCid(cborBytes []byte) (cid.Cid, error) {
	digest := Sum256(cborBytes)
	encoded, err := mh.Encode(digest[:], blake2b256Code)
	if err != nil {
		return cid.Undef, errors.Wrap(err, "cidutil: encoding multihash")
	}
	return cid.NewCidV1(cid.DagCBOR, encoded), nil
}

// Equal reports whether two CIDs address the same content. Unlike
// comparing cid.Cid values directly (which is safe but opaque), Equal
// documents the intent at every call site that checks I2/I4.
func Equal(a, b cid.Cid) bool {
	return a.Equals(b)
}
