// Package discovery selects the active peer from the live network membership
// reported by bootstrap peers.
package discovery

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/mosaicnetworks/peerfetch/src/common"
	"github.com/mosaicnetworks/peerfetch/src/net"
	"github.com/mosaicnetworks/peerfetch/src/peers"
	"github.com/sirupsen/logrus"
)

// NodeListPath is the archiver endpoint listing the current network members.
const NodeListPath = "/nodelist"

// Selector chooses a new active peer.
type Selector interface {
	SelectNewActivePeer(ctx context.Context) (*peers.Peer, error)
}

type nodeListResponse struct {
	NodeList []*peers.Peer `json:"nodeList"`
}

// RandomSelector asks a random bootstrap peer for the node list and picks a
// random member as the new active peer. It does not retry; a failed selection
// is returned to the caller, which owns the retry policy.
type RandomSelector struct {
	registry  *peers.Registry
	store     peers.Store
	active    *peers.ActivePeer
	transport net.Transport
	logger    *logrus.Entry

	rndLock sync.Mutex
	rnd     *rand.Rand

	// publishLock keeps the persisted peer equal to the active one when
	// selections run concurrently.
	publishLock sync.Mutex
}

// NewRandomSelector is a factory method that returns a new instance of
// RandomSelector. Selected peers are persisted to store and published to
// active.
func NewRandomSelector(
	registry *peers.Registry,
	store peers.Store,
	active *peers.ActivePeer,
	transport net.Transport,
	logger *logrus.Entry,
) *RandomSelector {

	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	return &RandomSelector{
		registry:  registry,
		store:     store,
		active:    active,
		transport: transport,
		logger:    logger,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRand replaces the random source, for deterministic tests.
func (s *RandomSelector) SetRand(rnd *rand.Rand) {
	s.rndLock.Lock()
	s.rnd = rnd
	s.rndLock.Unlock()
}

// SelectNewActivePeer implements the Selector interface.
func (s *RandomSelector) SelectNewActivePeer(ctx context.Context) (*peers.Peer, error) {
	s.rndLock.Lock()
	archiver, ok := s.registry.Random(s.rnd)
	s.rndLock.Unlock()

	if !ok {
		return nil, common.NewFetchErr(NodeListPath, common.SelectionFailed, fmt.Errorf("no bootstrap peers configured"))
	}

	logger := s.logger.WithField("archiver", archiver.NetAddr())

	var resp nodeListResponse
	if _, err := s.transport.Get(ctx, archiver.URL(NodeListPath), nil, &resp); err != nil {
		logger.WithError(err).Warn("Bootstrap peer unreachable")
		return nil, common.NewFetchErr(NodeListPath, common.SelectionFailed, err)
	}

	candidates := peers.ExcludeUnreachable(resp.NodeList)
	if len(candidates) == 0 {
		logger.WithField("entries", len(resp.NodeList)).Warn("Bootstrap peer returned no usable peers")
		return nil, common.NewFetchErr(NodeListPath, common.SelectionFailed, fmt.Errorf("empty node list from %s", archiver.NetAddr()))
	}

	s.rndLock.Lock()
	chosen := *candidates[s.rnd.Intn(len(candidates))]
	s.rndLock.Unlock()

	s.publishLock.Lock()
	if err := s.store.Save(&chosen); err != nil {
		logger.WithError(err).Error("Persisting active peer")
	}
	s.active.Set(chosen)
	s.publishLock.Unlock()

	logger.WithFields(logrus.Fields{
		"peer":       chosen.String(),
		"candidates": len(candidates),
	}).Debug("Selected active peer")

	return &chosen, nil
}
