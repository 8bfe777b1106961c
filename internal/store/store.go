// Package store is the persistence hook SPEC_FULL.md §4.7 describes: an
// opaque key-value cache the probe serializes its whole state to (and
// loads startup parameters from). It is backed by patrickmn/go-cache, the
// closest ecosystem analogue to the sidevm "local_cache" ocall the
// original source reads and writes directly.
package store

import (
	"encoding/json"
	"fmt"
	"math/rand"

	gocache "github.com/patrickmn/go-cache"

	"github.com/nmxmxh/netcoord/internal/probe"
)

// ProbeStateKey is the cache key the whole Probe snapshot is stored under.
const ProbeStateKey = "probe_state"

const paramKeyPrefix = "netcoord::param::"

// Store wraps a go-cache instance with the typed helpers the probe core
// needs: integer parameter loading (with the spec's /1e6 scaling) and
// whole-state save/restore.
type Store struct {
	cache *gocache.Cache
}

// New builds a Store with no expiration and no background cleanup, since
// the probe state and parameters are meant to live for the process
// lifetime (or until explicitly overwritten).
func New() *Store {
	return &Store{cache: gocache.New(gocache.NoExpiration, 0)}
}

// SetUint64 seeds a raw integer parameter, e.g. for tests or an operator
// override applied before startup.
func (s *Store) SetUint64(key string, value uint64) {
	s.cache.Set(paramKeyPrefix+key, value, gocache.NoExpiration)
}

func (s *Store) getUint64(key string, def uint64) uint64 {
	v, ok := s.cache.Get(paramKeyPrefix + key)
	if !ok {
		return def
	}
	u, ok := v.(uint64)
	if !ok {
		return def
	}
	return u
}

// LoadParameters reads every parameter key SPEC_FULL.md §6 lists, applying
// its defaults and the integer/1e6 scaling for the real-valued fields.
func (s *Store) LoadParameters() probe.Parameters {
	defaults := probe.DefaultParameters()
	return probe.Parameters{
		DimSize:       s.getUint64("dim_size", defaults.DimSize),
		SampleSize:    s.getUint64("sample_size", defaults.SampleSize),
		DetectionSize: s.getUint64("detection_size", defaults.DetectionSize),
		BatchSize:     s.getUint64("batch_size", defaults.BatchSize),
		Beta:          scaled(s, "beta", 9e5),
		LR:            scaled(s, "lr", 1e6),
		Patience:      s.getUint64("patience", defaults.Patience),
		Factor:        scaled(s, "factor", 1e5),
		MinLR:         scaled(s, "min_lr", 1e3),
		MaxIters:      s.getUint64("max_iters", defaults.MaxIters),
		MaxOfflineCnt: s.getUint64("max_offline_cnt", defaults.MaxOfflineCnt),
		Eps:           scaled(s, "eps", 1),
	}
}

func scaled(s *Store, key string, defaultScaledInt uint64) float64 {
	return float64(s.getUint64(key, defaultScaledInt)) / 1e6
}

// probeState is the on-wire JSON shape of a saved Probe snapshot. Probe
// itself keeps its fields unexported (the mutex guards them), so the
// persistence hook works through these accessor-built snapshots instead of
// reflecting into probe.Probe directly.
type probeState struct {
	EncodedPublicKey string                `json:"encoded_public_key"`
	Parameters       probe.Parameters      `json:"parameters"`
	Telemetry        map[string]float64    `json:"telemetry"`
	Resolved         map[string][]float64  `json:"resolved"`
	Peers            map[string]probe.Peer `json:"peers"`
	Status           probe.Status          `json:"status"`
}

// SaveProbeState serializes the whole probe to the cache key ProbeStateKey.
func (s *Store) SaveProbeState(p *probe.Probe) error {
	snap := probeState{
		EncodedPublicKey: p.ID(),
		Parameters:       p.Parameters(),
		Telemetry:        p.TelemetrySnapshot(),
		Resolved:         p.ResolvedSnapshot(),
		Peers:            p.PeersSnapshot(),
		Status:           p.StatusSnapshot(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: %v", probe.ErrDecodeFailed, err)
	}
	s.cache.Set(ProbeStateKey, data, gocache.NoExpiration)
	return nil
}

// LoadProbeState restores a Probe from the cache. It fails with
// probe.ErrNotFound if no snapshot was ever saved, and probe.ErrDecodeFailed
// if the stored value is malformed — both fatal to the caller, per
// SPEC_FULL.md §7.
func (s *Store) LoadProbeState(rng *rand.Rand) (*probe.Probe, error) {
	snap, err := s.loadSnapshot()
	if err != nil {
		return nil, err
	}
	restored := probe.New(snap.EncodedPublicKey, snap.Parameters, rng)
	restored.Restore(snap.Telemetry, snap.Resolved, snap.Peers, snap.Status)
	return restored, nil
}

// LoadProbeStateInto restores a saved snapshot onto an already-running
// Probe in place, rather than constructing a new one — used by load_app
// so every component sharing the probe (optimizer, HTTP server, control
// bus) observes the restored state through the same pointer instead of
// only the caller that happened to receive a freshly swapped-in replacement.
func (s *Store) LoadProbeStateInto(p *probe.Probe) error {
	snap, err := s.loadSnapshot()
	if err != nil {
		return err
	}
	p.Restore(snap.Telemetry, snap.Resolved, snap.Peers, snap.Status)
	return nil
}

func (s *Store) loadSnapshot() (probeState, error) {
	v, ok := s.cache.Get(ProbeStateKey)
	if !ok {
		return probeState{}, fmt.Errorf("%w: %s", probe.ErrNotFound, ProbeStateKey)
	}
	data, ok := v.([]byte)
	if !ok {
		return probeState{}, fmt.Errorf("%w: stored probe_state has unexpected type", probe.ErrDecodeFailed)
	}
	var snap probeState
	if err := json.Unmarshal(data, &snap); err != nil {
		return probeState{}, fmt.Errorf("%w: %v", probe.ErrDecodeFailed, err)
	}
	return snap, nil
}
