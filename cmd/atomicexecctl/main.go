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

// Command atomicexecctl drives the end-to-end scenarios of spec §8
// against an in-memory two-participant deployment, the same role
// cmd/kcn/main.go plays for klaytn: a thin cli.v1 app wiring flags and
// commands to library code, with no logic of its own.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/ipc-labs/atomicexec/atomiclog"
	"gopkg.in/urfave/cli.v1"
)

var logger = atomiclog.NewModuleLogger("atomicexecctl")

var app = cli.NewApp()

// p1ConfigFlag and p2ConfigFlag let a scenario run against two
// TOML-configured nodes instead of the hardcoded demo network,
// mirroring the teacher's configFileFlag in cmd/ranger/config.go. Both
// must be set together; each selects that participant's blockstore
// backend (Store/DataDir), coordinator/gateway addresses, and seeded
// ledger balance.
var (
	p1ConfigFlag = cli.StringFlag{
		Name:  "p1-config",
		Usage: "TOML config for participant P1 (requires --p2-config)",
	}
	p2ConfigFlag = cli.StringFlag{
		Name:  "p2-config",
		Usage: "TOML config for participant P2 (requires --p1-config)",
	}
)

func init() {
	app.Name = "atomicexecctl"
	app.Usage = "replay the atomic execution protocol's reference scenarios"
	app.HideVersion = true
	app.Flags = []cli.Flag{p1ConfigFlag, p2ConfigFlag}
	app.Commands = []cli.Command{
		{
			Name:   "happy-path",
			Usage:  "two participants prepare, commit, and settle (spec §8 scenario 1)",
			Action: runHappyPath,
		},
		{
			Name:   "drift-abort",
			Usage:  "prepare fails when a participant's state drifted since init (scenario 2)",
			Action: runDriftAbort,
		},
		{
			Name:   "revoke",
			Usage:  "one participant revokes after prepare; only it is rolled back (scenario 3)",
			Action: runRevoke,
		},
		{
			Name:   "unauthorized-caller",
			Usage:  "a non-gateway caller invoking PreCommit directly is rejected (scenario 4)",
			Action: runUnauthorizedCaller,
		},
		{
			Name:   "double-commit",
			Usage:  "replaying a commit after it already applied fails (scenario 5)",
			Action: runDoubleCommit,
		},
		{
			Name:   "non-participant-origin",
			Usage:  "a PreCommit whose origin is outside actors is rejected (scenario 6)",
			Action: runNonParticipantOrigin,
		},
	}
	sort.Sort(cli.CommandsByName(app.Commands))
}

func main() {
	if err := app.Run(os.Args); err != nil {
		logger.Errorw("scenario failed", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
