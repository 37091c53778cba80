package peers

import "sync"

// Store is where the active peer is persisted between runs.
type Store interface {
	// Load returns nil when there is no usable record.
	Load() *Peer
	Save(peer *Peer) error
}

// ActivePeer holds the current active peer of a session. Readers get a copy,
// so a peer replaced mid-request does not change what the request uses.
type ActivePeer struct {
	l    sync.RWMutex
	peer *Peer
}

// NewActivePeer returns an empty holder.
func NewActivePeer() *ActivePeer {
	return &ActivePeer{}
}

// Get returns a copy of the current active peer, or false if there is none.
func (a *ActivePeer) Get() (Peer, bool) {
	a.l.RLock()
	defer a.l.RUnlock()

	if a.peer == nil {
		return Peer{}, false
	}
	return *a.peer, true
}

// Set replaces the current active peer.
func (a *ActivePeer) Set(peer Peer) {
	a.l.Lock()
	a.peer = &peer
	a.l.Unlock()
}

// InmemStore is a Store that does not outlive the process.
type InmemStore struct {
	l    sync.Mutex
	peer *Peer
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{}
}

// Load implements the Store interface.
func (s *InmemStore) Load() *Peer {
	s.l.Lock()
	defer s.l.Unlock()

	if s.peer == nil {
		return nil
	}
	cp := *s.peer
	return &cp
}

// Save implements the Store interface.
func (s *InmemStore) Save(peer *Peer) error {
	cp := *peer
	s.l.Lock()
	s.peer = &cp
	s.l.Unlock()
	return nil
}
