package probe

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/nmxmxh/netcoord/internal/telemetry/logging"
)

// gatedSleep and roundSleep are the two wall-clock waits SPEC_FULL.md §4.3
// names: Phase 0's gated-start backoff, and the end-of-round pacing sleep.
const (
	gatedSleep = 10 * time.Second
	roundSleep = 5 * time.Second
)

// Optimizer runs the periodic embedding round described in SPEC_FULL.md
// §4.3: snapshot, collect telemetry, gradient-descend the local position,
// aggregate peers' coordinate maps, recenter, and publish.
type Optimizer struct {
	probe     *Probe
	directory Directory
	newClient func() *PeerClient
	rng       *rand.Rand
	log       *logging.Logger
	selfID    string
}

// NewOptimizer builds an Optimizer. newClient is called once per round (not
// per peer) so tests can swap the HTTP transport; rng defaults to a
// time-seeded source when nil — pass an explicit *rand.Rand for
// deterministic tests, per SPEC_FULL.md §8.
func NewOptimizer(p *Probe, directory Directory, newClient func() *PeerClient, rng *rand.Rand, log *logging.Logger) *Optimizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = logging.New("optimizer")
	}
	return &Optimizer{probe: p, directory: directory, newClient: newClient, rng: rng, log: log, selfID: p.ID()}
}

// Run executes rounds until ctx is cancelled.
func (o *Optimizer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !o.probe.IsOptimizing() {
			if err := o.sleepOrDone(ctx, gatedSleep); err != nil {
				return err
			}
			continue
		}
		o.runRound(ctx)
		if err := o.sleepOrDone(ctx, roundSleep); err != nil {
			return err
		}
	}
}

func (o *Optimizer) sleepOrDone(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// runRound performs phases 1-6. Errors from individual network calls are
// logged and swallowed, per SPEC_FULL.md §7, and never end the round early.
// A cancelled ctx does: the round then returns without publishing.
func (o *Optimizer) runRound(ctx context.Context) {
	client := o.newClient()

	// Phase 1: snapshot.
	snap := o.probe.snapshotForRound()

	// Phase 2: telemetry collection.
	online, offline := partitionByLiveness(snap.peers)
	onlineBatch := sampleWithoutReplacement(o.rng, online, snap.parameters.DetectionSize)
	offlineBatch := sampleWithoutReplacement(o.rng, offline, snap.parameters.DetectionSize)

	o.collectTelemetry(ctx, client, snap.telemetry, snap.peers, onlineBatch, snap.parameters.Beta)
	o.collectTelemetry(ctx, client, snap.telemetry, snap.peers, offlineBatch, snap.parameters.Beta)

	retained := onlinePeerIDs(snap.peers)
	if maybeRest(ctx) {
		return
	}

	// Phase 3: local embedding optimization.
	o.optimizePosition(ctx, &snap, retained)

	if maybeRest(ctx) {
		return
	}

	// Phase 4: aggregation + recenter.
	discovered := o.aggregate(ctx, client, &snap, retained)

	// Final loss for status.precision_ms, matching the source recomputing
	// loss once more after aggregation/recentering.
	finalLoss := computeLoss(snap.encodedPublicKey, snap.peers, snap.telemetry, snap.resolved, snap.parameters.Eps)

	if maybeRest(ctx) {
		return
	}

	// Phase 5: publish, admit discovered peers, evict.
	newPeers := o.resolvePendingPeers(ctx, discovered)
	added := o.probe.publish(publishUpdate{
		telemetry:   snap.telemetry,
		resolved:    snap.resolved,
		peers:       snap.peers,
		precisionMs: finalLoss,
		newPeers:    newPeers,
	})

	// Phase 6: notify, outside the lock.
	for _, peer := range added {
		if err := client.NotifyConnected(ctx, peer.BestEndpoint, o.selfID); err != nil {
			o.log.Warn("notify_connected failed", logging.String("peer", peer.EncodedPublicKey), logging.Err(err))
		}
	}
}

func partitionByLiveness(peers map[string]Peer) (online, offline []string) {
	for id, peer := range peers {
		if peer.IsOnline() {
			online = append(online, id)
		} else {
			offline = append(offline, id)
		}
	}
	return online, offline
}

func onlinePeerIDs(peers map[string]Peer) []string {
	ids := make([]string, 0, len(peers))
	for id, peer := range peers {
		if peer.IsOnline() {
			ids = append(ids, id)
		}
	}
	return ids
}

// collectTelemetry refreshes endpoints and echoes every peer in batch,
// updating telemetry (EMA) and offline_cnt in place on the round's local
// copies. Matches SPEC_FULL.md §4.3 Phase 2.
func (o *Optimizer) collectTelemetry(ctx context.Context, client *PeerClient, telemetry map[string]float64, peers map[string]Peer, batch []string, beta float64) {
	for _, id := range batch {
		peer, ok := peers[id]
		if !ok {
			continue
		}
		if updated, err := client.UpdateEndpoints(ctx, peer); err == nil {
			peer = updated
		} else {
			o.log.Warn("directory lookup failed", logging.String("peer", id), logging.Err(err))
		}

		ttl, bestEndpoint, err := client.Echo(ctx, peer.Endpoints)
		if err != nil {
			peer.OfflineCnt++
		} else {
			peer.OfflineCnt = 0
			peer.BestEndpoint = bestEndpoint
			if prior, exists := telemetry[id]; exists {
				telemetry[id] = prior*beta + ttl*(1-beta)
			} else {
				telemetry[id] = ttl
			}
		}
		peers[id] = peer

		if maybeRest(ctx) {
			return
		}
	}
}

// optimizePosition runs the gradient-descent loop of Phase 3, mutating
// snap.resolved[self] (and inserting any missing peer coordinates it
// samples along the way) in place.
func (o *Optimizer) optimizePosition(ctx context.Context, snap *roundSnapshot, retained []string) float64 {
	params := snap.parameters
	x := append([]float64(nil), snap.resolved[snap.encodedPublicKey]...)
	momentum := make([]float64, params.DimSize)
	minLoss := math.Inf(1)
	lr := params.LR
	var iteration uint64
	var patience uint64
	lastLoss := minLoss

	for {
		if iteration >= params.MaxIters {
			break
		}
		if lr < params.MinLR {
			break
		}

		batch := sampleWithoutReplacement(o.rng, retained, params.BatchSize)
		force := make([]float64, params.DimSize)
		k := 0
		for _, id := range batch {
			ground, ok := snap.telemetry[id]
			if !ok {
				continue
			}
			y, ok := snap.resolved[id]
			if !ok {
				y = randomVector(o.rng, params.DimSize)
				snap.resolved[id] = y
			}
			n := euclideanDistance(x, y)
			scale := (ground - n) / (n + params.Eps)
			for i := range force {
				force[i] += (x[i] - y[i]) * scale
			}
			k++
			if maybeRest(ctx) {
				return lastLoss
			}
		}
		if k == 0 {
			break
		}

		for i := range momentum {
			momentum[i] = momentum[i]*params.Beta + (force[i]/float64(k))*(1-params.Beta)
			x[i] += momentum[i] * lr
		}

		lastLoss = computeLoss(snap.encodedPublicKey, snap.peers, snap.telemetry, snap.resolved, params.Eps)
		if lastLoss < minLoss {
			minLoss = lastLoss
			patience = 0
		} else {
			patience++
		}
		if patience > params.Patience {
			lr *= params.Factor
			patience = 0
		}

		iteration++
		if maybeRest(ctx) {
			return lastLoss
		}
	}

	snap.resolved[snap.encodedPublicKey] = x
	return lastLoss
}

// computeLoss implements SPEC_FULL.md §4.3.1: mean absolute telemetry
// prediction error over online, resolved peers, divided by
// |telemetry|-1+eps regardless of how many terms the sum skips — preserved
// verbatim per the open question in spec.md §9.
func computeLoss(selfID string, peers map[string]Peer, telemetry map[string]float64, resolved map[string][]float64, eps float64) float64 {
	self := resolved[selfID]
	total := 0.0
	denom := float64(len(telemetry)-1) + eps
	for id, ground := range telemetry {
		if id == selfID {
			continue
		}
		if peer, ok := peers[id]; !ok || !peer.IsOnline() {
			continue
		}
		pos, ok := resolved[id]
		if !ok {
			continue
		}
		predicted := euclideanDistance(self, pos)
		total += absFloat(ground-predicted) / denom
	}
	return total
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// aggregate implements SPEC_FULL.md §4.3 Phase 4: merge sampled peers'
// resolved maps into snap.resolved, then recenter. Returns newly discovered
// peer ids (not yet resolved to endpoints).
func (o *Optimizer) aggregate(ctx context.Context, client *PeerClient, snap *roundSnapshot, retained []string) []string {
	batch := sampleWithoutReplacement(o.rng, retained, snap.parameters.SampleSize)
	counters := map[string]uint64{}
	var discovered []string
	seenDiscovered := map[string]bool{}

	for _, id := range batch {
		peer, ok := snap.peers[id]
		if !ok {
			continue
		}
		remote, err := client.Resolved(ctx, peer.BestEndpoint)
		if err != nil {
			o.log.Warn("fetch resolved failed", logging.String("peer", id), logging.Err(err))
			continue
		}
		for k, v := range remote {
			if !seenDiscovered[k] {
				if _, isPeer := snap.peers[k]; !isPeer && k != snap.encodedPublicKey {
					discovered = append(discovered, k)
					seenDiscovered[k] = true
				}
			}
			if existing, ok := snap.resolved[k]; ok {
				sum := make([]float64, len(existing))
				for i := range existing {
					sum[i] = existing[i] + v[i]
				}
				snap.resolved[k] = sum
				if c, ok := counters[k]; ok {
					counters[k] = c + 1
				} else {
					counters[k] = 2
				}
			} else {
				snap.resolved[k] = append([]float64(nil), v...)
				counters[k] = 1
			}
			if maybeRest(ctx) {
				return discovered
			}
		}
	}

	for k, c := range counters {
		v := snap.resolved[k]
		for i := range v {
			v[i] /= float64(c)
		}
		if maybeRest(ctx) {
			return discovered
		}
	}

	if len(counters) > 0 {
		recenter(ctx, snap.resolved, snap.parameters.DimSize)
	}

	return discovered
}

// recenter translates every coordinate so the centroid sits at the origin;
// the sole mechanism keeping the embedding from drifting (spec.md §4.3).
func recenter(ctx context.Context, resolved map[string][]float64, dim uint64) {
	center := make([]float64, dim)
	n := float64(len(resolved))
	for _, v := range resolved {
		for i := range center {
			center[i] += v[i] / n
		}
		if maybeRest(ctx) {
			return
		}
	}
	for k, v := range resolved {
		for i := range v {
			v[i] -= center[i]
		}
		resolved[k] = v
		if maybeRest(ctx) {
			return
		}
	}
}

// resolvePendingPeers merges ids discovered during aggregation with any
// pending ids accumulated from add_pending_peer calls since the last round,
// and resolves each through the directory. This runs outside the state
// lock: DESIGN.md ("Phase 5 lock redesign") moves the original source's in-lock directory
// lookups (legal there because the sidevm runtime's "lock" only ever
// yields to other cooperative tasks, never blocks an OS thread) out from
// under Go's real mutex, which would otherwise stall the HTTP server and
// control channel for the duration of every directory round-trip.
func (o *Optimizer) resolvePendingPeers(ctx context.Context, discoveredThisRound []string) []Peer {
	shared := o.probe.drainPendingPeerIDs()
	seen := map[string]bool{}
	var ids []string
	for _, id := range append(append([]string(nil), discoveredThisRound...), shared...) {
		if id == o.selfID || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	var resolved []Peer
	for _, id := range ids {
		endpoints, err := o.directory.Lookup(ctx, id)
		if err != nil || len(endpoints) == 0 {
			o.log.Warn("pending peer directory lookup failed", logging.String("peer", id), logging.Err(err))
			continue
		}
		resolved = append(resolved, Peer{
			EncodedPublicKey: id,
			Endpoints:        endpoints,
			BestEndpoint:     endpoints[0],
		})
		if maybeRest(ctx) {
			break
		}
	}
	return resolved
}
