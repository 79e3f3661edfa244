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

package store

import (
	"context"
	"os"

	"github.com/dgraph-io/badger"
	"github.com/ipfs/go-cid"
	"github.com/ipc-labs/atomicexec/atomiclog"
	"github.com/pkg/errors"
)

var logger = atomiclog.NewModuleLogger("store")

// StoreKind selects which Blockstore backend Open constructs, the same
// role klaytn's DBType plays for storage/database.NewDBManager.
type StoreKind string

const (
	// StoreMem is an in-memory, non-persistent blockstore.
	StoreMem StoreKind = "mem"
	// StoreBadger is the persistent on-disk backend.
	StoreBadger StoreKind = "badger"
)

// Open constructs the Blockstore backend named by kind. dataDir is
// ignored for StoreMem. This is the single place that turns a node's
// configured store kind into a concrete Blockstore, used by
// cmd/atomicexecctl to honor config.Config.Store/DataDir.
func Open(kind StoreKind, dataDir string) (Blockstore, error) {
	switch kind {
	case StoreMem, "":
		return NewMemBlockstore(), nil
	case StoreBadger:
		return NewBadgerBlockstore(dataDir)
	default:
		return nil, errors.Errorf("store: unknown store kind %q", kind)
	}
}

// BadgerBlockstore is a persistent Blockstore backed by badger, the
// same embedded KV store klaytn's storage/database/badger_database.go
// uses for BADGER-type node databases.
type BadgerBlockstore struct {
	dir string
	db  *badger.DB
}

// NewBadgerBlockstore opens (creating if necessary) a badger-backed
// Blockstore rooted at dir.
func NewBadgerBlockstore(dir string) (*BadgerBlockstore, error) {
	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return nil, errors.Errorf("store: %s is not a directory", dir)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "store: creating %s", dir)
		}
	} else {
		return nil, errors.Wrapf(err, "store: checking %s", dir)
	}

	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "store: opening badger db at %s", dir)
	}
	logger.Infow("opened badger blockstore", "dir", dir)
	return &BadgerBlockstore{dir: dir, db: db}, nil
}

func (b *BadgerBlockstore) Close() error {
	return b.db.Close()
}

func (b *BadgerBlockstore) Has(_ context.Context, c cid.Cid) (bool, error) {
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(c.Bytes())
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (b *BadgerBlockstore) Get(_ context.Context, c cid.Cid) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.Bytes())
		if err == badger.ErrKeyNotFound {
			return errNotFound
		}
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BadgerBlockstore) Put(_ context.Context, c cid.Cid, data []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(c.Bytes(), data)
	})
}
