package probe_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/netcoord/internal/probe"
)

func newTestProbe() *probe.Probe {
	rng := rand.New(rand.NewSource(1))
	return probe.New("self", probe.DefaultParameters(), rng)
}

func TestNew_SelfResolvedAtZeroTelemetry(t *testing.T) {
	p := newTestProbe()
	telemetry := p.TelemetrySnapshot()
	require.Contains(t, telemetry, "self")
	assert.Equal(t, 0.0, telemetry["self"])

	resolved := p.ResolvedSnapshot()
	require.Contains(t, resolved, "self")
	assert.Len(t, resolved["self"], int(p.Parameters().DimSize))
}

func TestAddPeer_RejectsSelfAndDuplicates(t *testing.T) {
	p := newTestProbe()

	assert.False(t, p.AddPeer(probe.Peer{EncodedPublicKey: "self"}))

	ok := p.AddPeer(probe.Peer{EncodedPublicKey: "peer-a", Endpoints: []string{"h1"}, BestEndpoint: "h1"})
	assert.True(t, ok)

	ok = p.AddPeer(probe.Peer{EncodedPublicKey: "peer-a", Endpoints: []string{"h2"}, BestEndpoint: "h2"})
	assert.False(t, ok, "second insert of an existing peer must not overwrite it")

	snap := p.PeersSnapshot()
	assert.Equal(t, "h1", snap["peer-a"].BestEndpoint)
}

func TestAddPendingPeer_DeduplicatesAndExcludesKnown(t *testing.T) {
	p := newTestProbe()
	p.AddPeer(probe.Peer{EncodedPublicKey: "peer-a"})

	p.AddPendingPeer("self")   // rejected: self
	p.AddPendingPeer("peer-a") // rejected: already a peer
	p.AddPendingPeer("peer-b")
	p.AddPendingPeer("peer-b") // rejected: already pending

	ids := p.PendingPeerIDs()
	assert.Equal(t, []string{"peer-b"}, ids)
}

func TestStartStopOptimize(t *testing.T) {
	p := newTestProbe()
	assert.False(t, p.IsOptimizing())
	p.StartOptimize()
	assert.True(t, p.IsOptimizing())
	p.StopOptimize()
	assert.False(t, p.IsOptimizing())
}

func TestGetBestEndpointTo_UnknownAndOfflinePeers(t *testing.T) {
	p := newTestProbe()

	_, err := p.GetBestEndpointTo("nope")
	assert.ErrorIs(t, err, probe.ErrNotAPeer)

	p.AddPeer(probe.Peer{EncodedPublicKey: "offline-peer", BestEndpoint: "h", OfflineCnt: 1})
	_, err = p.GetBestEndpointTo("offline-peer")
	assert.ErrorIs(t, err, probe.ErrOffline)

	p.AddPeer(probe.Peer{EncodedPublicKey: "online-peer", BestEndpoint: "h2"})
	ep, err := p.GetBestEndpointTo("online-peer")
	require.NoError(t, err)
	assert.Equal(t, "h2", ep)
}

func TestEstimate_SelfToSelfIsZero(t *testing.T) {
	p := newTestProbe()
	d, err := p.Estimate("self", "self")
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)
}

func TestEstimate_RejectsUnknownOfflineOrUnresolvedPeers(t *testing.T) {
	p := newTestProbe()

	_, err := p.Estimate("self", "nope")
	assert.ErrorIs(t, err, probe.ErrNotAPeer)

	p.AddPeer(probe.Peer{EncodedPublicKey: "offline-peer", OfflineCnt: 1})
	_, err = p.Estimate("self", "offline-peer")
	assert.ErrorIs(t, err, probe.ErrOffline)

	p.AddPeer(probe.Peer{EncodedPublicKey: "unresolved-peer"})
	_, err = p.Estimate("self", "unresolved-peer")
	assert.ErrorIs(t, err, probe.ErrNotResolved)
}

func TestRestore_ReplacesStateAndClearsPending(t *testing.T) {
	p := newTestProbe()
	p.AddPendingPeer("peer-a")

	telemetry := map[string]float64{"self": 1.5}
	resolved := map[string][]float64{"self": {1, 2, 3}}
	peers := map[string]probe.Peer{"peer-b": {EncodedPublicKey: "peer-b", BestEndpoint: "h"}}
	status := probe.Status{IsOptimizing: true, Epoch: 7}

	p.Restore(telemetry, resolved, peers, status)

	assert.Equal(t, telemetry, p.TelemetrySnapshot())
	assert.Equal(t, resolved, p.ResolvedSnapshot())
	assert.Equal(t, peers, p.PeersSnapshot())
	assert.Equal(t, status, p.StatusSnapshot())
	assert.Empty(t, p.PendingPeerIDs(), "restore must clear any pending peer ids")
}
