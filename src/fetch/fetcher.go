// Package fetch implements the retry loop that issues queries against the
// active peer.
//
// Peers are unreliable and network membership reshuffles, so every attempt
// starts by selecting a fresh active peer, not only attempts that follow a
// failure. A failed selection consumes the attempt like any other failure and
// the loop carries on. The loop is a small state machine:
//
//  SelectingPeer --PeerSelected--> Requesting --ResponseReceived--> EvaluatingResponse --Accepted--> Succeeded
//        ^  |                           |                                  |
//        |  +--SelectionFailed----------+--TransportFailed-----------------+--Rejected
//        |                                         |
//        +-------------- budget left --------------+---- budget spent ----> Exhausted
//
// The request URL is built from whichever peer is current when the request is
// sent, since concurrent callers share the active peer and may replace it.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/mosaicnetworks/peerfetch/src/common"
	"github.com/mosaicnetworks/peerfetch/src/discovery"
	"github.com/mosaicnetworks/peerfetch/src/net"
	"github.com/mosaicnetworks/peerfetch/src/peers"
	"github.com/sirupsen/logrus"
)

// DefaultRetries is the attempt budget of a Get call.
const DefaultRetries = 3

var errNotAcceptable = errors.New("response not acceptable")

// Query is a GET against the active peer. Params, if not nil, is a struct
// with `url` tags. Name identifies the kind of query in logs and metrics,
// whatever the concrete path; it defaults to Path.
type Query struct {
	Name   string
	Path   string
	Params interface{}
}

func (q Query) name() string {
	if q.Name != "" {
		return q.Name
	}
	return q.Path
}

// Fetcher owns the session state shared by all queries: the active peer,
// where it is persisted, and how a new one is selected.
type Fetcher struct {
	selector  discovery.Selector
	store     peers.Store
	active    *peers.ActivePeer
	transport net.Transport
	retries   int
	logger    *logrus.Entry

	ensureLock sync.Mutex

	observersLock sync.RWMutex
	observers     []func(Event)
}

// NewFetcher creates a Fetcher. The selector is expected to publish the peers
// it selects to active. A retries value below 1 selects DefaultRetries.
func NewFetcher(
	selector discovery.Selector,
	store peers.Store,
	active *peers.ActivePeer,
	transport net.Transport,
	retries int,
	logger *logrus.Entry,
) *Fetcher {

	if retries < 1 {
		retries = DefaultRetries
	}

	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	return &Fetcher{
		selector:  selector,
		store:     store,
		active:    active,
		transport: transport,
		retries:   retries,
		logger:    logger,
	}
}

// Retries returns the attempt budget.
func (f *Fetcher) Retries() int {
	return f.retries
}

// OnTransition registers an observer of state machine transitions. Observers
// run synchronously on the fetching goroutine.
func (f *Fetcher) OnTransition(fn func(Event)) {
	f.observersLock.Lock()
	f.observers = append(f.observers, fn)
	f.observersLock.Unlock()
}

// ActivePeer returns the current active peer, if any.
func (f *Fetcher) ActivePeer() (peers.Peer, bool) {
	return f.active.Get()
}

// RefreshActivePeer runs the selector once.
func (f *Fetcher) RefreshActivePeer(ctx context.Context) (*peers.Peer, error) {
	return f.selector.SelectNewActivePeer(ctx)
}

// EnsureActivePeer makes sure there is an active peer: the one in memory,
// else the persisted one, else the result of a single selection. It fails
// with NoPeerAvailable when the selection fails.
func (f *Fetcher) EnsureActivePeer(ctx context.Context) (peers.Peer, error) {
	f.ensureLock.Lock()
	defer f.ensureLock.Unlock()

	if peer, ok := f.active.Get(); ok {
		return peer, nil
	}

	if peer := f.store.Load(); peer != nil {
		f.logger.WithField("peer", peer.String()).Debug("Loaded persisted active peer")
		f.active.Set(*peer)
		return *peer, nil
	}

	peer, err := f.selector.SelectNewActivePeer(ctx)
	if err != nil {
		return peers.Peer{}, common.NewFetchErr("active peer", common.NoPeerAvailable, err)
	}

	return *peer, nil
}

func (f *Fetcher) publish(ev Event) {
	f.observersLock.RLock()
	defer f.observersLock.RUnlock()

	for _, fn := range f.observers {
		fn(ev)
	}
}

// Get queries the active peer until notAcceptable returns false for the
// decoded payload, or until the attempt budget is spent, in which case it
// fails with RetriesExhausted. A nil notAcceptable accepts any payload that
// was successfully received.
func Get[T any](ctx context.Context, f *Fetcher, q Query, notAcceptable func(*T) bool) (*T, error) {
	if _, err := f.EnsureActivePeer(ctx); err != nil {
		return nil, err
	}

	id := uuid.New().String()

	m := &machine[T]{
		f:             f,
		q:             q,
		notAcceptable: notAcceptable,
		id:            id,
		remaining:     f.retries,
		state:         SelectingPeer,
		logger: f.logger.WithFields(logrus.Fields{
			"request": id,
			"query":   q.name(),
			"path":    q.Path,
		}),
	}

	return m.run(ctx)
}

type machine[T any] struct {
	f             *Fetcher
	q             Query
	notAcceptable func(*T) bool
	id            string
	logger        *logrus.Entry

	state     State
	attempt   int
	remaining int

	peer    *peers.Peer
	payload *T
	status  int
	lastErr error
}

func (m *machine[T]) run(ctx context.Context) (*T, error) {
	for {
		switch m.state {
		case SelectingPeer:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			m.selectPeer(ctx)
		case Requesting:
			m.request(ctx)
		case EvaluatingResponse:
			m.evaluate()
		case Succeeded:
			return m.payload, nil
		case Exhausted:
			m.logger.WithError(m.lastErr).WithField("attempts", m.attempt).Error("Retries exhausted")
			return nil, common.NewFetchErr(m.q.Path, common.RetriesExhausted, m.lastErr)
		default:
			return nil, fmt.Errorf("fetch: unknown state %v", m.state)
		}
	}
}

func (m *machine[T]) selectPeer(ctx context.Context) {
	m.attempt++
	m.peer = nil
	m.payload = nil
	m.status = 0

	if _, err := m.f.selector.SelectNewActivePeer(ctx); err != nil {
		m.logger.WithError(err).WithField("attempt", m.attempt).Warn("Peer selection failed")
		m.fail(SelectionFailed, err)
		return
	}

	m.move(PeerSelected, Requesting, nil)
}

func (m *machine[T]) request(ctx context.Context) {
	peer, ok := m.f.active.Get()
	if !ok {
		m.status = http.StatusInternalServerError
		m.fail(TransportFailed, common.NewFetchErr(m.q.Path, common.Transport, fmt.Errorf("no active peer")))
		return
	}
	m.peer = &peer

	var out T
	status, err := m.f.transport.Get(ctx, peer.URL(m.q.Path), m.q.Params, &out)
	if err != nil {
		m.status = http.StatusInternalServerError
		m.logger.WithError(err).WithFields(logrus.Fields{
			"attempt": m.attempt,
			"peer":    peer.String(),
			"status":  status,
		}).Warn("Request failed")
		m.fail(TransportFailed, common.NewFetchErr(m.q.Path, common.Transport, err))
		return
	}

	m.payload = &out
	m.status = status
	m.move(ResponseReceived, EvaluatingResponse, nil)
}

func (m *machine[T]) evaluate() {
	if m.notAcceptable != nil && m.notAcceptable(m.payload) {
		m.logger.WithFields(logrus.Fields{
			"attempt": m.attempt,
			"peer":    m.peer.String(),
		}).Debug("Response not acceptable")
		m.fail(Rejected, errNotAcceptable)
		return
	}

	m.move(Accepted, Succeeded, nil)
}

// fail consumes the current attempt.
func (m *machine[T]) fail(tr Transition, err error) {
	m.lastErr = err
	m.remaining--

	next := SelectingPeer
	if m.remaining <= 0 {
		next = Exhausted
	}

	m.move(tr, next, err)
}

func (m *machine[T]) move(tr Transition, to State, err error) {
	ev := Event{
		RequestID:  m.id,
		Query:      m.q.name(),
		Path:       m.q.Path,
		Attempt:    m.attempt,
		Transition: tr,
		From:       m.state,
		To:         to,
		Status:     m.status,
		Err:        err,
	}
	if m.peer != nil {
		cp := *m.peer
		ev.Peer = &cp
	}

	m.state = to
	m.f.publish(ev)
}
