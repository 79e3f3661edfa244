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

// Package atomiclog gives every package in this module a module-scoped
// logger, the way klaytn's log.NewModuleLogger(log.Reward) does for
// contracts/reward and friends.
package atomiclog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	baseOnce sync.Once
	base     *zap.Logger
)

func baseLogger() *zap.Logger {
	baseOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		l, err := cfg.Build()
		if err != nil {
			// zap's production config never fails to build in practice;
			// fall back to a no-op logger rather than panic a caller.
			l = zap.NewNop()
		}
		base = l
	})
	return base
}

// NewModuleLogger returns a logger tagged with the given module name,
// mirroring klaytn's per-package `logger = log.NewModuleLogger(log.X)`
// convention.
func NewModuleLogger(module string) *zap.SugaredLogger {
	return baseLogger().Sugar().With("module", module)
}

// SetLevel swaps the base logger for one at the requested level.
func SetLevel(level zap.AtomicLevel) {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Encoding = "console"
	l, err := cfg.Build()
	if err != nil {
		return
	}
	base = l
}
