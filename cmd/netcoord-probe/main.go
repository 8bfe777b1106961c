// Command netcoord-probe runs one network-coordinate probe: it takes its
// identity from -id or a persisted identity file and its parameters from
// the persistence store, then runs the
// control-channel consumers, the peer-facing HTTP server, and the
// optimizer concurrently, exiting as soon as any one of them returns or
// errors — the same "first task done cancels the rest" composition
// SPEC_FULL.md §5 describes, built on golang.org/x/sync/errgroup the way
// the wider example pack (prysmaticlabs-prysm) uses it to run sibling
// services under one cancellation scope.
package main

import (
	"context"
	"flag"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nmxmxh/netcoord/internal/control"
	"github.com/nmxmxh/netcoord/internal/directory"
	"github.com/nmxmxh/netcoord/internal/httpserver"
	"github.com/nmxmxh/netcoord/internal/identity"
	"github.com/nmxmxh/netcoord/internal/probe"
	"github.com/nmxmxh/netcoord/internal/store"
	"github.com/nmxmxh/netcoord/internal/telemetry/logging"
)

func main() {
	idFlag := flag.String("id", "", "this node's encoded public key (generated and persisted if omitted)")
	identityFile := flag.String("identity-file", "netcoord_identity.json", "where a generated identity is persisted across restarts")
	listenAddr := flag.String("listen", ":8080", "address the peer HTTP server binds to")
	seed := flag.Int64("seed", time.Now().UnixNano(), "RNG seed; pin for deterministic runs")
	flag.Parse()

	log := logging.New("netcoord-probe")

	selfID := *idFlag
	if selfID == "" {
		var err error
		selfID, err = identity.LoadOrCreate(*identityFile)
		if err != nil {
			log.Error("failed to load or create identity", logging.Err(err))
			os.Exit(2)
		}
	}

	rng := rand.New(rand.NewSource(*seed))

	st := store.New()
	params := st.LoadParameters()
	p := probe.New(selfID, params, rng)

	dir := directory.NewStatic(nil)
	newClient := func() *probe.PeerClient {
		return probe.NewPeerClient(http.DefaultClient, dir)
	}

	bus := control.NewBus(p, st, log.With("control"))
	server := httpserver.New(p, log.With("httpserver"))
	optimizer := probe.NewOptimizer(p, dir, newClient, rng, log.With("optimizer"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return bus.RunCommands(gctx)
	})
	group.Go(func() error {
		return bus.RunQueries(gctx)
	})
	group.Go(func() error {
		return optimizer.Run(gctx)
	})
	group.Go(func() error {
		return serveHTTP(gctx, *listenAddr, server)
	})

	log.Info("probe started", logging.String("id", selfID), logging.String("listen", *listenAddr))

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		log.Error("probe exited with error", logging.Err(err))
		os.Exit(1)
	}
	log.Info("probe shut down")
}

// serveHTTP runs an http.Server bound to addr and shuts it down cleanly
// when ctx is cancelled, mirroring the teacher's graceful-shutdown pattern
// (kernel/utils/graceful.go) adapted from a process-lifecycle concern to a
// per-listener one.
func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			errCh <- err
			return
		}
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
