package probe

import (
	"fmt"
	"math/rand"
	"sync"
)

// Probe is the authoritative in-memory record for one node: identity,
// parameters, telemetry, resolved coordinates, peers, and runtime status.
// A single mutex guards the whole record (SPEC_FULL.md §5); every exported
// method here except ID (the identity never changes) takes it for the
// duration of the call and performs no I/O while holding it.
type Probe struct {
	mu sync.Mutex

	encodedPublicKey string
	parameters       Parameters
	telemetry        map[string]float64
	resolved         map[string][]float64
	peers            map[string]Peer
	pendingPeerIDs   []string
	status           Status
}

// New constructs a Probe with its self-entry already resolved to a random
// coordinate, matching Probe::new in the original source.
func New(encodedPublicKey string, params Parameters, rng *rand.Rand) *Probe {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Probe{
		encodedPublicKey: encodedPublicKey,
		parameters:       params,
		telemetry:        map[string]float64{encodedPublicKey: 0},
		resolved:         map[string][]float64{encodedPublicKey: randomVector(rng, params.DimSize)},
		peers:            map[string]Peer{},
		pendingPeerIDs:   nil,
		status:           Status{},
	}
}

// Restore overwrites telemetry, resolved, peers, and status wholesale —
// used by the persistence hook to replace a Probe's contents with a
// restored snapshot, either in place on the running Probe (load_app) or on
// a freshly constructed one.
func (p *Probe) Restore(telemetry map[string]float64, resolved map[string][]float64, peers map[string]Peer, status Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.telemetry = cloneScalarMap(telemetry)
	p.resolved = cloneVectorMap(resolved)
	p.peers = clonePeerMap(peers)
	p.pendingPeerIDs = nil
	p.status = status
}

// ID returns the encoded public key identifying this probe.
func (p *Probe) ID() string {
	return p.encodedPublicKey
}

// Parameters returns the immutable-per-run configuration.
func (p *Probe) Parameters() Parameters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parameters
}

// AddPeer inserts peer iff it isn't self and isn't already known. Returns
// whether it was inserted; never overwrites an existing entry.
func (p *Probe) AddPeer(peer Peer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addPeerLocked(peer)
}

func (p *Probe) addPeerLocked(peer Peer) bool {
	if peer.EncodedPublicKey == p.encodedPublicKey {
		return false
	}
	if _, exists := p.peers[peer.EncodedPublicKey]; exists {
		return false
	}
	p.peers[peer.EncodedPublicKey] = peer.clone()
	return true
}

// AddPendingPeer enqueues id for later instantiation iff it isn't self,
// isn't already a peer, and isn't already pending.
func (p *Probe) AddPendingPeer(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addPendingPeerLocked(id)
}

func (p *Probe) addPendingPeerLocked(id string) {
	if id == p.encodedPublicKey {
		return
	}
	if _, exists := p.peers[id]; exists {
		return
	}
	for _, pending := range p.pendingPeerIDs {
		if pending == id {
			return
		}
	}
	p.pendingPeerIDs = append(p.pendingPeerIDs, id)
}

// StartOptimize sets status.is_optimizing true.
func (p *Probe) StartOptimize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.IsOptimizing = true
}

// StopOptimize sets status.is_optimizing false.
func (p *Probe) StopOptimize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.IsOptimizing = false
}

// IsOptimizing reports the current gate value the optimizer reads.
func (p *Probe) IsOptimizing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status.IsOptimizing
}

// GetBestEndpointTo returns the best known endpoint for id.
func (p *Probe) GetBestEndpointTo(id string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	peer, ok := p.peers[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotAPeer, id)
	}
	if !peer.IsOnline() {
		return "", fmt.Errorf("%w: %s", ErrOffline, id)
	}
	return peer.BestEndpoint, nil
}

// Estimate returns the Euclidean distance between fromID's and toID's
// resolved coordinates. Self is allowed as either endpoint without being
// present in peers; any other id must be a known, online, resolved peer.
func (p *Probe) Estimate(fromID, toID string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkEstimable(fromID); err != nil {
		return 0, err
	}
	if err := p.checkEstimable(toID); err != nil {
		return 0, err
	}

	from, ok := p.resolved[fromID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotResolved, fromID)
	}
	to, ok := p.resolved[toID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotResolved, toID)
	}
	return euclideanDistance(from, to), nil
}

func (p *Probe) checkEstimable(id string) error {
	if id == p.encodedPublicKey {
		return nil
	}
	peer, ok := p.peers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAPeer, id)
	}
	if !peer.IsOnline() {
		return fmt.Errorf("%w: %s", ErrOffline, id)
	}
	return nil
}

// ResolvedSnapshot returns a deep copy of the resolved coordinate map, for
// read-only HTTP/control-query handlers.
func (p *Probe) ResolvedSnapshot() map[string][]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneVectorMap(p.resolved)
}

// TelemetrySnapshot returns a copy of the telemetry map.
func (p *Probe) TelemetrySnapshot() map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]float64, len(p.telemetry))
	for k, v := range p.telemetry {
		out[k] = v
	}
	return out
}

// PeersSnapshot returns a copy of the peers map.
func (p *Probe) PeersSnapshot() map[string]Peer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return clonePeerMap(p.peers)
}

// StatusSnapshot returns a copy of the runtime status.
func (p *Probe) StatusSnapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// roundSnapshot is the local copy the optimizer works from after Phase 1.
type roundSnapshot struct {
	encodedPublicKey string
	parameters       Parameters
	telemetry        map[string]float64
	resolved         map[string][]float64
	peers            map[string]Peer
	status           Status
}

// snapshotForRound clones the fields Phase 1 needs and releases the lock
// immediately afterwards; all optimizer computation happens on this copy.
func (p *Probe) snapshotForRound() roundSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return roundSnapshot{
		encodedPublicKey: p.encodedPublicKey,
		parameters:       p.parameters,
		telemetry:        cloneScalarMap(p.telemetry),
		resolved:         cloneVectorMap(p.resolved),
		peers:            clonePeerMap(p.peers),
		status:           p.status,
	}
}

// publishUpdate is everything Phase 5 writes back after a round, plus the
// peer ids discovered during aggregation (already resolved to endpoints by
// the caller, outside the lock — see optimizer.go for why).
type publishUpdate struct {
	telemetry   map[string]float64
	resolved    map[string][]float64
	peers       map[string]Peer
	precisionMs float64
	newPeers    []Peer // directory-resolved peers built from discovered ids
}

// publish replaces the authoritative state with a round's results, admits
// newly discovered peers, evicts peers whose offline_cnt has reached
// max_offline_cnt, and reports
// which peers were newly admitted (so the caller can notify_connected them
// outside the lock).
func (p *Probe) publish(update publishUpdate) []Peer {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.telemetry = update.telemetry
	p.resolved = update.resolved
	p.peers = update.peers
	p.status.PrecisionMs = update.precisionMs
	p.status.Epoch++

	var added []Peer
	for _, np := range update.newPeers {
		if p.addPeerLocked(np) {
			added = append(added, np)
		}
	}

	for id, peer := range p.peers {
		if peer.OfflineCnt >= p.parameters.MaxOfflineCnt {
			delete(p.peers, id)
		}
	}

	return added
}

// drainPendingPeerIDs empties and returns the shared pending list, for the
// optimizer to resolve via the directory outside the lock.
func (p *Probe) drainPendingPeerIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := p.pendingPeerIDs
	p.pendingPeerIDs = nil
	return ids
}

// PendingPeerIDs returns a copy of the currently queued pending peer ids
// without draining them. Exposed for tests and debug introspection.
func (p *Probe) PendingPeerIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.pendingPeerIDs...)
}

func cloneScalarMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneVectorMap(m map[string][]float64) map[string][]float64 {
	out := make(map[string][]float64, len(m))
	for k, v := range m {
		out[k] = append([]float64(nil), v...)
	}
	return out
}

func clonePeerMap(m map[string]Peer) map[string]Peer {
	out := make(map[string]Peer, len(m))
	for k, v := range m {
		out[k] = v.clone()
	}
	return out
}
