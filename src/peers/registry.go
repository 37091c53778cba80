package peers

import (
	"math/rand"
)

// Registry is the immutable list of bootstrap peers.
type Registry struct {
	peers []BootstrapPeer
}

// NewRegistry creates a Registry from a copy of the provided list.
func NewRegistry(peers []BootstrapPeer) *Registry {
	cp := make([]BootstrapPeer, len(peers))
	copy(cp, peers)
	return &Registry{peers: cp}
}

// Peers returns a copy of the bootstrap list.
func (r *Registry) Peers() []BootstrapPeer {
	cp := make([]BootstrapPeer, len(r.peers))
	copy(cp, r.peers)
	return cp
}

// Len returns the number of bootstrap peers.
func (r *Registry) Len() int {
	return len(r.peers)
}

// Random picks a bootstrap peer uniformly at random. It returns false when the
// registry is empty.
func (r *Registry) Random(rnd *rand.Rand) (BootstrapPeer, bool) {
	if len(r.peers) == 0 {
		return BootstrapPeer{}, false
	}
	return r.peers[rnd.Intn(len(r.peers))], true
}
