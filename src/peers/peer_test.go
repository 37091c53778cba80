package peers

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPeerURL(t *testing.T) {
	p := NewPeer("id", "10.0.0.1", 9001, "0123456789abcdef")
	require.Equal(t, "10.0.0.1:9001", p.NetAddr())
	require.Equal(t, "http://10.0.0.1:9001/stake", p.URL("/stake"))
	require.Equal(t, "01234567@10.0.0.1:9001", p.String())

	b := BootstrapPeer{IP: "::1", Port: 4000, PublicKey: "pk"}
	require.Equal(t, "http://[::1]:4000/nodelist", b.URL("/nodelist"))
}

func TestExcludeUnreachable(t *testing.T) {
	in := []*Peer{
		NewPeer("a", "10.0.0.1", 1, ""),
		NewPeer("b", "", 2, ""),
		NewPeer("c", "10.0.0.3", 0, ""),
		nil,
		NewPeer("d", "10.0.0.4", 4, ""),
	}
	out := ExcludeUnreachable(in)
	require.Len(t, out, 2)
	require.Equal(t, "a", out[0].ID)
	require.Equal(t, "d", out[1].ID)
}

func TestRegistry(t *testing.T) {
	src := []BootstrapPeer{
		{IP: "10.0.0.1", Port: 4000, PublicKey: "a"},
		{IP: "10.0.0.2", Port: 4000, PublicKey: "b"},
	}
	r := NewRegistry(src)
	src[0].IP = "mutated"

	require.Equal(t, 2, r.Len())
	require.Equal(t, "10.0.0.1", r.Peers()[0].IP)

	rnd := rand.New(rand.NewSource(1))
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		b, ok := r.Random(rnd)
		require.True(t, ok)
		seen[b.PublicKey] = true
	}
	require.Len(t, seen, 2)

	_, ok := NewRegistry(nil).Random(rnd)
	require.False(t, ok)
}

func TestActivePeer(t *testing.T) {
	a := NewActivePeer()
	_, ok := a.Get()
	require.False(t, ok)

	p := NewPeer("id", "10.0.0.1", 9001, "pk")
	a.Set(*p)
	p.Port = 1

	got, ok := a.Get()
	require.True(t, ok)
	require.Equal(t, 9001, got.Port)
}

func TestInmemStore(t *testing.T) {
	s := NewInmemStore()
	require.Nil(t, s.Load())

	require.NoError(t, s.Save(NewPeer("id", "10.0.0.1", 9001, "pk")))
	require.Equal(t, "id", s.Load().ID)
}
