package httpserver_test

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/netcoord/internal/httpserver"
	"github.com/nmxmxh/netcoord/internal/probe"
)

func newTestServer() (*httpserver.Server, *probe.Probe) {
	rng := rand.New(rand.NewSource(1))
	p := probe.New("self", probe.DefaultParameters(), rng)
	return httpserver.New(p, nil), p
}

func TestHandleEcho_ReturnsMessageVerbatim(t *testing.T) {
	srv, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/echo/1234567890", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1234567890", rec.Body.String())
}

func TestHandleResolved_ReturnsSelfCoordinate(t *testing.T) {
	srv, p := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/resolved", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resolved map[string][]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.Equal(t, p.ResolvedSnapshot(), resolved)
}

func TestHandleEstimate_UnknownPeerReturnsNegativeOne(t *testing.T) {
	srv, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/estimate/self/nope", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "-1", rec.Body.String())
}

func TestHandleEstimate_SelfToSelfIsZero(t *testing.T) {
	srv, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/estimate/self/self", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Body.String())
}

func TestHandleConnected_QueuesPendingPeer(t *testing.T) {
	srv, p := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/connected/peer-a", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "peer-a", rec.Body.String())
	assert.Equal(t, []string{"peer-a"}, p.PendingPeerIDs())
}

func TestHandleBestEndpoint_UnknownPeerIs404(t *testing.T) {
	srv, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/best_endpoint/nope", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStatus_ReportsNotOptimizingByDefault(t *testing.T) {
	srv, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status probe.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.IsOptimizing)
}
