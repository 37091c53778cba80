package peers

import (
	"fmt"
	"net"
	"strconv"
)

// Peer is a member of the network, as listed by an archiver's /nodelist and
// as persisted in active-peer.json.
type Peer struct {
	ID        string `json:"id"`
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	PublicKey string `json:"publicKey"`
}

// NewPeer ...
func NewPeer(id, ip string, port int, publicKey string) *Peer {
	return &Peer{
		ID:        id,
		IP:        ip,
		Port:      port,
		PublicKey: publicKey,
	}
}

// NetAddr returns the host:port of the peer.
func (p *Peer) NetAddr() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

// URL returns the http URL of path on this peer.
func (p *Peer) URL(path string) string {
	return fmt.Sprintf("http://%s%s", p.NetAddr(), path)
}

// Reachable reports whether the record carries enough to address the peer.
func (p *Peer) Reachable() bool {
	return p != nil && p.IP != "" && p.Port > 0
}

func (p *Peer) String() string {
	return fmt.Sprintf("%s@%s", shortKey(p.PublicKey), p.NetAddr())
}

// BootstrapPeer is an archiver entry from the configuration.
type BootstrapPeer struct {
	IP        string `json:"ip" mapstructure:"ip"`
	Port      int    `json:"port" mapstructure:"port"`
	PublicKey string `json:"publicKey" mapstructure:"publicKey"`
}

// NetAddr returns the host:port of the archiver.
func (b BootstrapPeer) NetAddr() string {
	return net.JoinHostPort(b.IP, strconv.Itoa(b.Port))
}

// URL returns the http URL of path on this archiver.
func (b BootstrapPeer) URL(path string) string {
	return fmt.Sprintf("http://%s%s", b.NetAddr(), path)
}

func shortKey(k string) string {
	if len(k) > 8 {
		return k[:8]
	}
	return k
}

// ExcludeUnreachable is used to drop node list entries that cannot be
// addressed.
func ExcludeUnreachable(peers []*Peer) []*Peer {
	res := make([]*Peer, 0, len(peers))
	for _, p := range peers {
		if p.Reachable() {
			res = append(res, p)
		}
	}
	return res
}
