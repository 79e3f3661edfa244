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

package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ipc-labs/atomicexec/config"
	"github.com/ipc-labs/atomicexec/ipcaddr"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
Store = "mem"
TokenName = "Demo"
TokenSymbol = "DMT"

[Self]
Subnet = "/root"
Address = "t01"

[Gateway]
Subnet = "/root"
Address = "t02"

[Coordinator]
Subnet = "/root"
Address = "t03"

[Balances]
t01 = "100"
`

func TestLoadDecodesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, config.StoreMem, cfg.Store)
	require.Equal(t, "Demo", cfg.TokenName)
	require.Equal(t, "DMT", cfg.TokenSymbol)
	require.Equal(t, "100", cfg.Balances["t01"])

	self, err := cfg.Self.Resolve()
	require.NoError(t, err)
	require.Equal(t, ipcaddr.RootSubnet, self.Subnet)
}

func TestDumpRoundTrips(t *testing.T) {
	cfg := config.DefaultConfig
	cfg.Self = config.Actor{Subnet: "/root", Address: "t01"}

	var buf bytes.Buffer
	require.NoError(t, config.Dump(&buf, cfg))
	require.Contains(t, buf.String(), "TokenName")

	dir := t.TempDir()
	path := filepath.Join(dir, "dumped.toml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	reloaded, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Self, reloaded.Self)
}
