// Package directory stands in for the peer-ID to endpoint directory
// spec.md §1 explicitly places out of scope. It mirrors the teacher's
// own style of stubbing out an external collaborator behind an
// interface-shaped placeholder (internal/core/processor.go's
// "Network interface{} // P2P mesh (placeholder)"), but gives ours a
// concrete, swappable shape instead of an empty interface.
package directory

import (
	"context"
	"fmt"
	"sync"
)

// ErrUnknownPeer is returned when a peer id has no registered endpoints.
var ErrUnknownPeer = fmt.Errorf("unknown peer")

// Static is an in-memory peer-id -> endpoints registry. It is the shipped
// stand-in for a real directory service; production deployments swap it
// for one backed by a chain registry or a DHT.
type Static struct {
	mu        sync.RWMutex
	endpoints map[string][]string
}

// NewStatic builds a Static directory, optionally seeded.
func NewStatic(seed map[string][]string) *Static {
	s := &Static{endpoints: make(map[string][]string, len(seed))}
	for id, eps := range seed {
		s.endpoints[id] = append([]string(nil), eps...)
	}
	return s
}

// Register adds or replaces the endpoint list for id.
func (s *Static) Register(id string, endpoints []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[id] = append([]string(nil), endpoints...)
}

// Lookup implements probe.Directory.
func (s *Static) Lookup(_ context.Context, id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	eps, ok := s.endpoints[id]
	if !ok || len(eps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, id)
	}
	return append([]string(nil), eps...), nil
}
