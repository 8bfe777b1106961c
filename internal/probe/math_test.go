package probe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/netcoord/internal/probe"
)

func TestEstimate_KnownCoordinatesGiveExactDistance(t *testing.T) {
	p := newTestProbe()
	p.AddPeer(probe.Peer{EncodedPublicKey: "peer-a", BestEndpoint: "h"})
	p.Restore(
		map[string]float64{"self": 0, "peer-a": 0},
		map[string][]float64{"self": {0, 0, 0}, "peer-a": {3, 4, 0}},
		map[string]probe.Peer{"peer-a": {EncodedPublicKey: "peer-a", BestEndpoint: "h"}},
		probe.Status{},
	)

	d, err := p.Estimate("self", "peer-a")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-9)
}

func TestEstimate_IsSymmetric(t *testing.T) {
	p := newTestProbe()
	p.Restore(
		map[string]float64{"self": 0, "peer-a": 0},
		map[string][]float64{"self": {1, 2, 3}, "peer-a": {4, 5, 6}},
		map[string]probe.Peer{"peer-a": {EncodedPublicKey: "peer-a", BestEndpoint: "h"}},
		probe.Status{},
	)

	forward, err := p.Estimate("self", "peer-a")
	require.NoError(t, err)
	backward, err := p.Estimate("peer-a", "self")
	require.NoError(t, err)
	assert.InDelta(t, forward, backward, 1e-12)
}
