// Package testnet runs a fake network of archivers and peers over
// net/http/httptest, for tests of the packages that query it.
package testnet

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/mosaicnetworks/peerfetch/src/peers"
)

// Node is a fake archiver or peer. Routes are registered with Handle* before
// the node is queried.
type Node struct {
	ID        string
	PublicKey string

	server *httptest.Server
	router *mux.Router

	l    sync.Mutex
	hits map[string]int
}

// NewNode starts a node that answers 404 until routes are added. It is closed
// when the test ends.
func NewNode(t testing.TB, id string) *Node {
	n := &Node{
		ID:        id,
		PublicKey: fmt.Sprintf("%064x", []byte(id)),
		router:    mux.NewRouter(),
		hits:      make(map[string]int),
	}

	n.router.Use(n.count)
	n.server = httptest.NewServer(n.router)

	t.Cleanup(n.Close)

	return n
}

func (n *Node) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.l.Lock()
		n.hits[r.URL.Path]++
		n.l.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Handle registers h for GET requests matching the mux path template.
func (n *Node) Handle(path string, h http.HandlerFunc) {
	n.router.HandleFunc(path, h).Methods(http.MethodGet)
}

// HandleJSON answers GET requests matching path with v encoded as JSON.
func (n *Node) HandleJSON(path string, v interface{}) {
	n.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, v)
	})
}

// HandleStatus answers GET requests matching path with an empty error
// response.
func (n *Node) HandleStatus(path string, code int) {
	n.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(code), code)
	})
}

// Hits returns how many requests matching a registered route were received
// for the exact URL path.
func (n *Node) Hits(path string) int {
	n.l.Lock()
	defer n.l.Unlock()
	return n.hits[path]
}

// Peer returns the node as a network member.
func (n *Node) Peer() peers.Peer {
	ip, port := n.addr()
	return peers.Peer{
		ID:        n.ID,
		IP:        ip,
		Port:      port,
		PublicKey: n.PublicKey,
	}
}

// BootstrapPeer returns the node as an archiver entry.
func (n *Node) BootstrapPeer() peers.BootstrapPeer {
	ip, port := n.addr()
	return peers.BootstrapPeer{
		IP:        ip,
		Port:      port,
		PublicKey: n.PublicKey,
	}
}

// URL returns the base URL of the node.
func (n *Node) URL() string {
	return n.server.URL
}

// Close stops the node. Further requests fail at the transport level.
func (n *Node) Close() {
	n.server.Close()
}

func (n *Node) addr() (string, int) {
	addr := n.server.Listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// NodeList builds the /nodelist answer for the given members.
func NodeList(members ...*Node) map[string]interface{} {
	list := make([]peers.Peer, 0, len(members))
	for _, m := range members {
		list = append(list, m.Peer())
	}
	return map[string]interface{}{"nodeList": list}
}

// Network is a set of archivers, all listing the same peers.
type Network struct {
	Archivers []*Node
	Peers     []*Node
}

// NewNetwork starts nArchivers archivers whose /nodelist lists nPeers peers.
func NewNetwork(t testing.TB, nArchivers, nPeers int) *Network {
	nw := &Network{}

	for i := 0; i < nPeers; i++ {
		nw.Peers = append(nw.Peers, NewNode(t, fmt.Sprintf("peer%d", i)))
	}

	list := NodeList(nw.Peers...)
	for i := 0; i < nArchivers; i++ {
		a := NewNode(t, fmt.Sprintf("archiver%d", i))
		a.HandleJSON("/nodelist", list)
		nw.Archivers = append(nw.Archivers, a)
	}

	return nw
}

// Registry returns the archivers as a bootstrap registry.
func (nw *Network) Registry() *peers.Registry {
	list := make([]peers.BootstrapPeer, 0, len(nw.Archivers))
	for _, a := range nw.Archivers {
		list = append(list, a.BootstrapPeer())
	}
	return peers.NewRegistry(list)
}

// HandleJSON registers the same JSON answer on every peer.
func (nw *Network) HandleJSON(path string, v interface{}) {
	for _, p := range nw.Peers {
		p.HandleJSON(path, v)
	}
}

// Handle registers the same handler on every peer.
func (nw *Network) Handle(path string, h http.HandlerFunc) {
	for _, p := range nw.Peers {
		p.Handle(path, h)
	}
}

// PeerHits sums Hits(path) over all peers.
func (nw *Network) PeerHits(path string) int {
	total := 0
	for _, p := range nw.Peers {
		total += p.Hits(path)
	}
	return total
}

// ArchiverHits sums Hits(path) over all archivers.
func (nw *Network) ArchiverHits(path string) int {
	total := 0
	for _, a := range nw.Archivers {
		total += a.Hits(path)
	}
	return total
}
