package probe_test

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/netcoord/internal/probe"
)

// fakePeerDoer backs an httptest-free PeerClient: every /echo request
// succeeds instantly, every /resolved request returns an empty body (which
// fails to decode, so aggregation merges nothing), so a round can run
// deterministically without real sockets.
type fakePeerDoer struct {
	mu       sync.Mutex
	failEcho map[string]bool
}

func (f *fakePeerDoer) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	host := req.URL.Host
	if f.failEcho[host] {
		return nil, fmt.Errorf("simulated failure for %s", host)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(emptyReader{}),
	}, nil
}

type emptyReader struct{}

func (emptyReader) Read(p []byte) (int, error) { return 0, io.EOF }

type fakeOptimizerDirectory struct{}

func (fakeOptimizerDirectory) Lookup(_ context.Context, id string) ([]string, error) {
	return []string{id + ":80"}, nil
}

func TestRun_GatedWhenNotOptimizing(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := probe.New("self", probe.DefaultParameters(), rng)
	opt := probe.NewOptimizer(p, fakeOptimizerDirectory{}, func() *probe.PeerClient {
		return probe.NewPeerClient(&fakePeerDoer{failEcho: map[string]bool{}}, fakeOptimizerDirectory{})
	}, rng, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := opt.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, uint64(0), p.StatusSnapshot().Epoch, "no round should run while is_optimizing is false")
}

func TestRun_AdvancesEpochWhileOptimizing(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	params := probe.DefaultParameters()
	params.MaxIters = 2
	params.DetectionSize = 1
	params.SampleSize = 1
	params.BatchSize = 1
	p := probe.New("self", params, rng)
	p.AddPeer(probe.Peer{EncodedPublicKey: "peer-a", Endpoints: []string{"peer-a:80"}, BestEndpoint: "peer-a:80"})
	p.StartOptimize()

	doer := &fakePeerDoer{failEcho: map[string]bool{}}
	opt := probe.NewOptimizer(p, fakeOptimizerDirectory{}, func() *probe.PeerClient {
		return probe.NewPeerClient(doer, fakeOptimizerDirectory{})
	}, rng, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = opt.Run(ctx)

	require.GreaterOrEqual(t, p.StatusSnapshot().Epoch, uint64(1))
}
