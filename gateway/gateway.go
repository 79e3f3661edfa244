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

// Package gateway is the cross-subnet messaging gateway spec §1 treats
// as an external collaborator: something that delivers wrapped,
// authenticated messages between actors in FIFO order per ordered pair
// (spec §5). This package gives that collaborator a concrete shape —
// a Gateway interface the coordinator and participants code against —
// plus an in-memory reference implementation for tests and the demo
// CLI, grounded the same way klaytn's BridgeManager routes messages
// between a mainbridge and subbridge pair, simplified to synchronous
// direct dispatch since the core itself is single-threaded and
// non-suspending (spec §5).
package gateway

import (
	"context"
	"sync"

	"github.com/ipc-labs/atomicexec/atomiclog"
	"github.com/ipc-labs/atomicexec/atomicerr"
	"github.com/ipc-labs/atomicexec/ipcaddr"
	"github.com/ipc-labs/atomicexec/wire"
	"go.uber.org/zap"
)

var log = atomiclog.NewModuleLogger("gateway")

// Handler receives cross-subnet messages delivered on behalf of the
// actor registered under some IPCAddress.
type Handler interface {
	HandleCross(ctx context.Context, msg wire.CrossMsg) error
}

// Gateway is the sending half of the collaborator spec §1 assumes.
// Every message it accepts is wrapped (spec §6: "the coordinator emits
// wrapped = true on all outbound messages"). SendCross does not set or
// check Msg.From: the receiver sees the origin address the sender put
// there.
type Gateway interface {
	SendCross(ctx context.Context, msg wire.CrossMsg) error
	Address() ipcaddr.IPCAddress
}

// InMemoryGateway is a reference Gateway that dispatches synchronously
// to registered Handlers. Because dispatch is a direct function call
// with no queueing, FIFO-per-pair (spec §5) holds trivially: a caller
// that issues two SendCross calls in order has them delivered in that
// order.
type InMemoryGateway struct {
	mu       sync.Mutex
	self     ipcaddr.IPCAddress
	handlers map[ipcaddr.IPCAddress]Handler
}

// NewInMemoryGateway creates a gateway that identifies itself as self
// in every message it stamps.
func NewInMemoryGateway(self ipcaddr.IPCAddress) *InMemoryGateway {
	return &InMemoryGateway{self: self, handlers: make(map[ipcaddr.IPCAddress]Handler)}
}

// Register binds addr to h. Registering the same address twice
// replaces the previous handler.
func (g *InMemoryGateway) Register(addr ipcaddr.IPCAddress, h Handler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[addr] = h
}

// Address reports the gateway's own IPCAddress, the value every
// outbound message is authenticated as having passed through.
func (g *InMemoryGateway) Address() ipcaddr.IPCAddress {
	return g.self
}

// SendCross stamps msg as wrapped and authenticated by this gateway,
// then delivers it synchronously to the handler registered for
// msg.Msg.To. An unregistered recipient is IllegalArgument: the
// sender asked to reach an actor the gateway doesn't know about.
func (g *InMemoryGateway) SendCross(ctx context.Context, msg wire.CrossMsg) error {
	msg.Wrapped = true

	g.mu.Lock()
	h, ok := g.handlers[msg.Msg.To]
	g.mu.Unlock()
	if !ok {
		return atomicerr.Newf(atomicerr.IllegalArgument, "gateway: no handler registered for %s", msg.Msg.To)
	}

	log.Debugw("dispatching cross message",
		zap.String("to", msg.Msg.To.String()),
		zap.String("from", msg.Msg.From.String()),
		zap.Uint64("method", msg.Msg.Method))
	return h.HandleCross(ctx, msg)
}
