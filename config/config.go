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

// Package config loads the TOML configuration for a single deployed
// participant or coordinator node, the same way the teacher's
// cmd/ranger/config.go loads node.Config: a tomlSettings decoder that
// keeps TOML keys identical to Go field names, plus a companion writer
// for `dumpconfig`-style inspection.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"reflect"
	"unicode"

	addr "github.com/filecoin-project/go-address"
	"github.com/ipc-labs/atomicexec/ipcaddr"
	"github.com/ipc-labs/atomicexec/store"
	"github.com/naoina/toml"
	"github.com/pkg/errors"
)

var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// Actor names one participant or coordinator address as a
// TOML-friendly (subnet, address-string) pair; Resolve turns it back
// into the ipcaddr.IPCAddress the rest of the module works with.
type Actor struct {
	Subnet  string
	Address string
}

// Resolve parses a into an ipcaddr.IPCAddress.
func (a Actor) Resolve() (ipcaddr.IPCAddress, error) {
	parsed, err := addr.NewFromString(a.Address)
	if err != nil {
		return ipcaddr.IPCAddress{}, errors.Wrapf(err, "config: parsing address %q", a.Address)
	}
	return ipcaddr.New(ipcaddr.SubnetID(a.Subnet), parsed)
}

// StoreKind selects the Blockstore backend a node runs with; aliased
// from the store package so a Config's Store field plugs directly into
// store.Open without a translation step.
type StoreKind = store.StoreKind

const (
	// StoreMem is an in-memory, non-persistent blockstore, the default
	// for the demo CLI and for tests.
	StoreMem = store.StoreMem
	// StoreBadger is the persistent on-disk backend.
	StoreBadger = store.StoreBadger
)

// Config is one node's full configuration: who it is, where its
// gateway and (if applicable) coordinator are, and how it persists
// state. The demo CLI reads one Config per simulated node.
type Config struct {
	// Self is this node's own IPCAddress.
	Self Actor
	// Gateway is the IPCAddress of the gateway this node sends through
	// and accepts HandleCross calls from.
	Gateway Actor
	// Coordinator is the IPCAddress participants address their
	// PreCommit/Revoke traffic to. Ignored by a node run as the
	// coordinator itself.
	Coordinator Actor
	// Store selects the blockstore backend.
	Store StoreKind
	// DataDir is the on-disk directory for StoreBadger; ignored for
	// StoreMem.
	DataDir string
	// TokenName and TokenSymbol seed a fungibletoken ledger when this
	// node runs the bundled example actor.
	TokenName   string
	TokenSymbol string
	// Balances seeds the fungibletoken ledger: address string -> amount
	// in the ledger's base unit, decimal-encoded to stay plain-TOML.
	Balances map[string]string
}

// DefaultConfig mirrors the teacher's node.DefaultConfig pattern: a
// conservative, all-in-memory baseline the CLI starts from before
// applying a config file or flags.
var DefaultConfig = Config{
	Store:       StoreMem,
	TokenName:   "Token",
	TokenSymbol: "TKN",
}

// Load reads and decodes a TOML file into cfg, starting from
// DefaultConfig's values for any field the file omits.
func Load(path string) (Config, error) {
	cfg := DefaultConfig
	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "config: opening %s", path)
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		if _, ok := err.(*toml.LineError); ok {
			return cfg, errors.New(path + ", " + err.Error())
		}
		return cfg, errors.Wrapf(err, "config: decoding %s", path)
	}
	return cfg, nil
}

// Dump writes cfg as TOML to w, the config package's analog of the
// teacher's dumpconfig command.
func Dump(w io.Writer, cfg Config) error {
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return errors.Wrap(err, "config: marshaling")
	}
	_, err = w.Write(out)
	return err
}
