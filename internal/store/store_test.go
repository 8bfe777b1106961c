package store_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/netcoord/internal/probe"
	"github.com/nmxmxh/netcoord/internal/store"
)

func TestLoadParameters_DefaultsWhenUnset(t *testing.T) {
	s := store.New()
	params := s.LoadParameters()
	assert.Equal(t, probe.DefaultParameters(), params)
}

func TestLoadParameters_OverridesAndScaling(t *testing.T) {
	s := store.New()
	s.SetUint64("dim_size", 5)
	s.SetUint64("beta", 500000) // -> 0.5 after /1e6 scaling

	params := s.LoadParameters()
	assert.Equal(t, uint64(5), params.DimSize)
	assert.InDelta(t, 0.5, params.Beta, 1e-9)
}

func TestSaveAndLoadProbeState_RoundTrips(t *testing.T) {
	s := store.New()
	rng := rand.New(rand.NewSource(7))
	p := probe.New("self", probe.DefaultParameters(), rng)
	p.AddPeer(probe.Peer{EncodedPublicKey: "peer-a", BestEndpoint: "h1:80"})
	p.StartOptimize()

	require.NoError(t, s.SaveProbeState(p))

	restored, err := s.LoadProbeState(rng)
	require.NoError(t, err)
	assert.Equal(t, p.TelemetrySnapshot(), restored.TelemetrySnapshot())
	assert.Equal(t, p.ResolvedSnapshot(), restored.ResolvedSnapshot())
	assert.Equal(t, p.PeersSnapshot(), restored.PeersSnapshot())
	assert.Equal(t, p.StatusSnapshot(), restored.StatusSnapshot())
}

func TestLoadProbeState_NotFound(t *testing.T) {
	s := store.New()
	rng := rand.New(rand.NewSource(1))
	_, err := s.LoadProbeState(rng)
	assert.ErrorIs(t, err, probe.ErrNotFound)
}
