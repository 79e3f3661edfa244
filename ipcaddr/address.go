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

// Package ipcaddr implements IPCAddress, the (subnet, address) pair
// that names an actor across the hierarchical network (spec GLOSSARY).
// Address resolution itself is an external collaborator (spec §1); this
// package only gives the pair a stable, canonical CBOR tuple encoding,
// grounded the same way klaytn's common.Address is a thin, comparable
// value type threaded through the rest of the codebase.
package ipcaddr

import (
	"strings"

	addr "github.com/filecoin-project/go-address"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// SubnetID identifies a subnet by the "/"-delimited chain of parent
// actor addresses from the root, e.g. "/root/f01234".
type SubnetID string

// RootSubnet is the subnet at the top of the hierarchy.
const RootSubnet SubnetID = "/root"

// String returns the subnet path.
func (s SubnetID) String() string { return string(s) }

// Parent returns the immediate parent subnet and true, or ("", false) if
// s is already the root.
func (s SubnetID) Parent() (SubnetID, bool) {
	path := string(s)
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "", false
	}
	return SubnetID(path[:idx]), true
}

// Descend appends an actor address to the subnet path, naming the
// child subnet rooted at that actor.
func (s SubnetID) Descend(a addr.Address) SubnetID {
	return SubnetID(string(s) + "/" + a.String())
}

// IPCAddress names an actor within a specific subnet of the hierarchy.
//
// The CBOR encoding is a 2-tuple `(subnet, address)`: subnet as its
// string path, address as its raw bytes. Tuple form (rather than a
// map) keeps the encoding both canonical and compact, matching how the
// wire vocabulary (spec §6) encodes every other compound value as a
// CBOR tuple.
type IPCAddress struct {
	_      struct{} `cbor:",toarray"`
	Subnet SubnetID
	Addr   addr.Address
}

// New builds an IPCAddress, rejecting an undefined actor address.
func New(subnet SubnetID, a addr.Address) (IPCAddress, error) {
	if a == addr.Undef {
		return IPCAddress{}, errors.New("ipcaddr: undefined actor address")
	}
	return IPCAddress{Subnet: subnet, Addr: a}, nil
}

// String renders "<subnet>:<address>", the conventional IPC notation.
func (a IPCAddress) String() string {
	return string(a.Subnet) + ":" + a.Addr.String()
}

// Equal reports whether two IPCAddresses name the same actor in the
// same subnet.
func (a IPCAddress) Equal(other IPCAddress) bool {
	return a.Subnet == other.Subnet && a.Addr == other.Addr
}

// rawAddress mirrors IPCAddress's layout but substitutes addr.Address's
// raw bytes for the address, so MarshalCBOR/UnmarshalCBOR below don't
// depend on go-address also satisfying cbor.Marshaler (it marshals via
// MarshalCBOR from a different generation era and is exercised here
// through its stable Bytes()/NewFromBytes() pair instead).
type rawAddress struct {
	_      struct{} `cbor:",toarray"`
	Subnet SubnetID
	Addr   []byte
}

// MarshalCBOR produces the canonical `(subnet, address-bytes)` tuple
// encoding used both for blockstore CIDs and as a deterministic map key
// when an IPCAddress is used as a participant identity.
func (a IPCAddress) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(rawAddress{Subnet: a.Subnet, Addr: a.Addr.Bytes()})
}

// UnmarshalCBOR is the inverse of MarshalCBOR.
func (a *IPCAddress) UnmarshalCBOR(data []byte) error {
	var raw rawAddress
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := addr.NewFromBytes(raw.Addr)
	if err != nil {
		return errors.Wrap(err, "ipcaddr: decoding address bytes")
	}
	a.Subnet = raw.Subnet
	a.Addr = parsed
	return nil
}

// Bytes returns the canonical CBOR encoding, the same bytes fed to
// Blake2b-256 when an IPCAddress set needs a stable fingerprint.
func (a IPCAddress) Bytes() []byte {
	b, err := a.MarshalCBOR()
	if err != nil {
		// a is always well-formed (New rejects addr.Undef), so encoding
		// a simple two-field tuple cannot fail in practice.
		panic(err)
	}
	return b
}
