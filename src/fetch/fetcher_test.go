package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/peerfetch/src/common"
	"github.com/mosaicnetworks/peerfetch/src/discovery"
	"github.com/mosaicnetworks/peerfetch/src/net"
	"github.com/mosaicnetworks/peerfetch/src/peers"
	"github.com/mosaicnetworks/peerfetch/src/testnet"
	"github.com/stretchr/testify/require"
)

// scriptedSelector plays back a list of outcomes; a nil entry is a failed
// selection. Once the script runs out the last outcome repeats.
type scriptedSelector struct {
	l        sync.Mutex
	active   *peers.ActivePeer
	outcomes []*peers.Peer
	calls    int
}

func (s *scriptedSelector) SelectNewActivePeer(ctx context.Context) (*peers.Peer, error) {
	s.l.Lock()
	defer s.l.Unlock()

	i := s.calls
	if i >= len(s.outcomes) {
		i = len(s.outcomes) - 1
	}
	s.calls++

	p := s.outcomes[i]
	if p == nil {
		return nil, common.NewFetchErr(discovery.NodeListPath, common.SelectionFailed, errors.New("archiver down"))
	}
	s.active.Set(*p)
	return p, nil
}

func (s *scriptedSelector) Calls() int {
	s.l.Lock()
	defer s.l.Unlock()
	return s.calls
}

type reply struct {
	body   string
	status int
	err    error
}

// scriptedTransport records request URLs and plays back replies.
type scriptedTransport struct {
	l       sync.Mutex
	replies []reply
	urls    []string
}

func (s *scriptedTransport) Get(ctx context.Context, rawURL string, params interface{}, out interface{}) (int, error) {
	s.l.Lock()
	i := len(s.urls)
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	s.urls = append(s.urls, rawURL)
	r := s.replies[i]
	s.l.Unlock()

	if r.err != nil {
		return r.status, r.err
	}
	if err := json.Unmarshal([]byte(r.body), out); err != nil {
		return r.status, err
	}
	return r.status, nil
}

func (s *scriptedTransport) URLs() []string {
	s.l.Lock()
	defer s.l.Unlock()
	return append([]string{}, s.urls...)
}

type payload struct {
	Value *int `json:"value"`
}

func valueMissing(p *payload) bool {
	return p.Value == nil
}

var (
	peerA = peers.NewPeer("a", "10.0.0.1", 9001, "pka")
	peerB = peers.NewPeer("b", "10.0.0.2", 9002, "pkb")
	peerC = peers.NewPeer("c", "10.0.0.3", 9003, "pkc")
)

func newTestFetcher(t *testing.T, store peers.Store, outcomes []*peers.Peer, replies []reply) (*Fetcher, *scriptedSelector, *scriptedTransport) {
	active := peers.NewActivePeer()
	sel := &scriptedSelector{active: active, outcomes: outcomes}
	tr := &scriptedTransport{replies: replies}
	f := NewFetcher(sel, store, active, tr, 3, common.NewTestEntry(t, common.TestLogLevel))
	return f, sel, tr
}

func seededStore(p *peers.Peer) peers.Store {
	s := peers.NewInmemStore()
	s.Save(p)
	return s
}

func TestGetRetryBound(t *testing.T) {
	f, sel, tr := newTestFetcher(t,
		seededStore(peerC),
		[]*peers.Peer{peerA},
		[]reply{{err: errors.New("connection refused")}},
	)

	res, err := Get(context.Background(), f, Query{Path: "/stake"}, valueMissing)
	require.Nil(t, res)
	require.True(t, common.IsFetch(err, common.RetriesExhausted))
	require.True(t, common.IsFetch(err, common.Transport))
	require.Len(t, tr.URLs(), 3)
	require.Equal(t, 3, sel.Calls())
}

func TestGetRefreshesPeerEveryAttempt(t *testing.T) {
	f, sel, tr := newTestFetcher(t,
		seededStore(peerC),
		[]*peers.Peer{nil, peerA, peerB},
		[]reply{
			{body: `{}`, status: 200},
			{body: `{"value": 7}`, status: 200},
		},
	)

	res, err := Get(context.Background(), f, Query{Path: "/stake"}, valueMissing)
	require.NoError(t, err)
	require.Equal(t, 7, *res.Value)

	require.Equal(t, 3, sel.Calls())
	require.Equal(t, []string{peerA.URL("/stake"), peerB.URL("/stake")}, tr.URLs())

	current, ok := f.ActivePeer()
	require.True(t, ok)
	require.Equal(t, *peerB, current)
}

func TestGetPredicateNeverAcceptable(t *testing.T) {
	f, _, tr := newTestFetcher(t,
		seededStore(peerC),
		[]*peers.Peer{peerA},
		[]reply{{body: `{"value": 1}`, status: 200}},
	)

	res, err := Get(context.Background(), f, Query{Path: "/stake"}, func(*payload) bool { return true })
	require.Nil(t, res)
	require.True(t, common.IsFetch(err, common.RetriesExhausted))
	require.Len(t, tr.URLs(), 3)
}

func TestGetNilPredicateAcceptsFirstResponse(t *testing.T) {
	f, _, tr := newTestFetcher(t,
		seededStore(peerC),
		[]*peers.Peer{peerA},
		[]reply{{body: `{}`, status: 200}},
	)

	res, err := Get[payload](context.Background(), f, Query{Path: "/network-stats"}, nil)
	require.NoError(t, err)
	require.Nil(t, res.Value)
	require.Len(t, tr.URLs(), 1)
}

func TestGetNoPeerAvailable(t *testing.T) {
	f, sel, tr := newTestFetcher(t,
		peers.NewInmemStore(),
		[]*peers.Peer{nil},
		[]reply{{body: `{"value": 1}`, status: 200}},
	)

	_, err := Get(context.Background(), f, Query{Path: "/stake"}, valueMissing)
	require.True(t, common.IsFetch(err, common.NoPeerAvailable))
	require.False(t, common.IsFetch(err, common.RetriesExhausted))
	require.Equal(t, 1, sel.Calls())
	require.Empty(t, tr.URLs())
}

func TestGetColdStartSelectsOnce(t *testing.T) {
	f, sel, tr := newTestFetcher(t,
		peers.NewInmemStore(),
		[]*peers.Peer{peerA, peerB},
		[]reply{{body: `{"value": 1}`, status: 200}},
	)

	_, err := Get(context.Background(), f, Query{Path: "/stake"}, valueMissing)
	require.NoError(t, err)

	// one selection to establish a peer, one for the attempt
	require.Equal(t, 2, sel.Calls())
	require.Equal(t, []string{peerB.URL("/stake")}, tr.URLs())
}

func TestGetUsesPersistedPeerWithoutSelecting(t *testing.T) {
	f, sel, _ := newTestFetcher(t,
		seededStore(peerC),
		[]*peers.Peer{nil},
		[]reply{{body: `{"value": 1}`, status: 200}},
	)

	peer, err := f.EnsureActivePeer(context.Background())
	require.NoError(t, err)
	require.Equal(t, *peerC, peer)
	require.Equal(t, 0, sel.Calls())
}

func TestGetSelectionFailuresShareBudget(t *testing.T) {
	f, sel, tr := newTestFetcher(t,
		seededStore(peerC),
		[]*peers.Peer{nil},
		[]reply{{body: `{"value": 1}`, status: 200}},
	)

	_, err := Get(context.Background(), f, Query{Path: "/stake"}, valueMissing)
	require.True(t, common.IsFetch(err, common.RetriesExhausted))
	require.True(t, common.IsFetch(err, common.SelectionFailed))
	require.Equal(t, 3, sel.Calls())
	require.Empty(t, tr.URLs())
}

func TestGetTransitions(t *testing.T) {
	f, _, _ := newTestFetcher(t,
		seededStore(peerC),
		[]*peers.Peer{nil, peerA, peerB},
		[]reply{
			{err: errors.New("timeout")},
			{body: `{}`, status: 200},
			{body: `{"value": 3}`, status: 200},
		},
	)

	var events []Event
	f.OnTransition(func(ev Event) { events = append(events, ev) })

	// budget of 3: selection failure, transport failure, then success would
	// need a 4th attempt, so widen the budget for this walk
	f.retries = 4

	_, err := Get(context.Background(), f, Query{Path: "/stake"}, valueMissing)
	require.NoError(t, err)

	var got []string
	for _, ev := range events {
		got = append(got, fmt.Sprintf("%d:%v:%v->%v", ev.Attempt, ev.Transition, ev.From, ev.To))
	}
	require.Equal(t, []string{
		"1:SelectionFailed:SelectingPeer->SelectingPeer",
		"2:PeerSelected:SelectingPeer->Requesting",
		"2:TransportFailed:Requesting->SelectingPeer",
		"3:PeerSelected:SelectingPeer->Requesting",
		"3:ResponseReceived:Requesting->EvaluatingResponse",
		"3:Rejected:EvaluatingResponse->SelectingPeer",
		"4:PeerSelected:SelectingPeer->Requesting",
		"4:ResponseReceived:Requesting->EvaluatingResponse",
		"4:Accepted:EvaluatingResponse->Succeeded",
	}, got)

	// transport failures are reported as 500
	require.Equal(t, http.StatusInternalServerError, events[2].Status)
	require.Equal(t, *peerA, *events[2].Peer)
	require.Equal(t, *peerB, *events[8].Peer)
}

func TestGetContextCancelled(t *testing.T) {
	f, sel, _ := newTestFetcher(t,
		seededStore(peerC),
		[]*peers.Peer{peerA},
		[]reply{{body: `{"value": 1}`, status: 200}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Get(ctx, f, Query{Path: "/stake"}, valueMissing)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, sel.Calls())
}

func TestGetOverNetwork(t *testing.T) {
	nw := testnet.NewNetwork(t, 1, 3)
	nw.HandleJSON("/sync-newest-cycle", map[string]interface{}{
		"newestCycle": map[string]interface{}{"duration": 60},
	})
	// one member is down; the loop has to move past it
	nw.Peers[0].Close()

	logger := common.NewTestEntry(t, common.TestLogLevel)
	store := peers.NewJSONActivePeer(t.TempDir(), logger)
	active := peers.NewActivePeer()
	client := net.NewClient(time.Second, logger)
	sel := discovery.NewRandomSelector(nw.Registry(), store, active, client, logger)
	f := NewFetcher(sel, store, active, client, 10, logger)

	type cycle struct {
		NewestCycle *struct {
			Duration int `json:"duration"`
		} `json:"newestCycle"`
	}

	res, err := Get(context.Background(), f, Query{Path: "/sync-newest-cycle"}, func(c *cycle) bool {
		return c.NewestCycle == nil
	})
	require.NoError(t, err)
	require.Equal(t, 60, res.NewestCycle.Duration)

	persisted := store.Load()
	require.NotNil(t, persisted)
}

func TestGetConcurrent(t *testing.T) {
	nw := testnet.NewNetwork(t, 2, 3)
	nw.HandleJSON("/stake", map[string]interface{}{"stakeRequired": "0x10"})

	logger := common.NewTestEntry(t, common.TestLogLevel)
	store := peers.NewJSONActivePeer(t.TempDir(), logger)
	active := peers.NewActivePeer()
	client := net.NewClient(time.Second, logger)
	f := NewFetcher(discovery.NewRandomSelector(nw.Registry(), store, active, client, logger), store, active, client, 3, logger)

	type stake struct {
		StakeRequired string `json:"stakeRequired"`
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := Get(context.Background(), f, Query{Path: "/stake"}, func(s *stake) bool {
				return s.StakeRequired == ""
			})
			if err == nil && res.StakeRequired != "0x10" {
				err = fmt.Errorf("unexpected stake %q", res.StakeRequired)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 20, nw.PeerHits("/stake"))
}
