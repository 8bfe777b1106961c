// Package control implements the host-facing command/query channel
// SPEC_FULL.md §4.4 describes. The real host<->probe transport is out of
// scope (spec.md §1); this package models it as Go channels, grounded on
// the teacher's channel-consumer pattern (kernel/threads/supervisor.go's
// matchmakerQueue/runWatcher) — a production deployment swaps the channel
// ends for the real transport without touching the command/query
// semantics below.
package control

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nmxmxh/netcoord/internal/probe"
	"github.com/nmxmxh/netcoord/internal/store"
	"github.com/nmxmxh/netcoord/internal/telemetry/logging"
)

// Command is a fire-and-forget host message: add_peer, start_optimize,
// stop_optimize, save_app, load_app.
type Command struct {
	Command string `json:"command"`
	Data    string `json:"data"`
}

// Query is a replyable host message: echo, resolved, estimate, connected,
// best_endpoint, status.
type Query struct {
	Command string `json:"command"`
	Data    string `json:"data"`
	Reply   chan<- string
}

type estimateRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type connectedRequest struct {
	From string `json:"from"`
}

type bestEndpointRequest struct {
	To string `json:"to"`
}

// Bus wires a Probe and a Store to a pair of command/query channels and
// runs the two consumer loops SPEC_FULL.md §5 lists as top-level tasks.
type Bus struct {
	Commands chan Command
	Queries  chan Query

	probe *probe.Probe
	store *store.Store
	log   *logging.Logger
}

// NewBus builds a Bus wired to the same Probe the optimizer and HTTP
// server share; load_app restores into that shared object in place
// (internal/store.Store.LoadProbeStateInto) rather than swapping in a
// new one, so every component keeps observing the same probe.
func NewBus(p *probe.Probe, st *store.Store, log *logging.Logger) *Bus {
	if log == nil {
		log = logging.New("control")
	}
	return &Bus{
		Commands: make(chan Command, 16),
		Queries:  make(chan Query, 16),
		probe:    p,
		store:    st,
		log:      log,
	}
}

// RunCommands consumes Commands until ctx is cancelled.
func (b *Bus) RunCommands(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-b.Commands:
			if !ok {
				return nil
			}
			b.handleCommand(cmd)
		}
	}
}

// RunQueries consumes Queries until ctx is cancelled.
func (b *Bus) RunQueries(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case q, ok := <-b.Queries:
			if !ok {
				return nil
			}
			b.handleQuery(q)
		}
	}
}

func (b *Bus) handleCommand(cmd Command) {
	switch cmd.Command {
	case "add_peer":
		b.probe.AddPendingPeer(cmd.Data)
	case "start_optimize":
		b.probe.StartOptimize()
	case "stop_optimize":
		b.probe.StopOptimize()
	case "save_app":
		if err := b.store.SaveProbeState(b.probe); err != nil {
			b.log.Error("save_app failed", logging.Err(err))
		}
	case "load_app":
		if err := b.store.LoadProbeStateInto(b.probe); err != nil {
			b.log.Error("load_app failed", logging.Err(err))
		}
	default:
		b.log.Warn("unknown command", logging.String("command", cmd.Command))
	}
}

// Probe returns the Probe this bus operates on.
func (b *Bus) Probe() *probe.Probe {
	return b.probe
}

func (b *Bus) handleQuery(q Query) {
	p := b.probe
	switch q.Command {
	case "echo":
		q.Reply <- q.Data
	case "resolved":
		data, _ := json.Marshal(p.ResolvedSnapshot())
		q.Reply <- string(data)
	case "estimate":
		var req estimateRequest
		estimate := -1.0
		if err := json.Unmarshal([]byte(q.Data), &req); err == nil {
			if v, err := p.Estimate(req.From, req.To); err == nil {
				estimate = v
			}
		}
		q.Reply <- fmt.Sprintf("%v", estimate)
	case "connected":
		var req connectedRequest
		if err := json.Unmarshal([]byte(q.Data), &req); err == nil {
			p.AddPendingPeer(req.From)
			q.Reply <- req.From
		} else {
			q.Reply <- ""
		}
	case "best_endpoint":
		var req bestEndpointRequest
		if err := json.Unmarshal([]byte(q.Data), &req); err == nil {
			if ep, err := p.GetBestEndpointTo(req.To); err == nil {
				q.Reply <- ep
				return
			}
		}
		q.Reply <- ""
	case "status":
		data, _ := json.Marshal(p.StatusSnapshot())
		q.Reply <- string(data)
	default:
		b.log.Warn("unknown query", logging.String("command", q.Command))
		q.Reply <- ""
	}
}
