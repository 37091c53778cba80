package fetch

import (
	"fmt"

	"github.com/mosaicnetworks/peerfetch/src/peers"
)

// State is a state of the fetch state machine.
type State int

const (
	// SelectingPeer refreshes the active peer at the start of every attempt.
	SelectingPeer State = iota
	// Requesting sends the query to the current active peer.
	Requesting
	// EvaluatingResponse applies the caller's acceptance predicate.
	EvaluatingResponse
	// Succeeded is terminal: the payload is returned.
	Succeeded
	// Exhausted is terminal: the attempt budget ran out.
	Exhausted
)

var stateNames = []string{
	"SelectingPeer",
	"Requesting",
	"EvaluatingResponse",
	"Succeeded",
	"Exhausted",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Transition names the edge taken between two states.
type Transition int

const (
	// PeerSelected : SelectingPeer -> Requesting
	PeerSelected Transition = iota
	// SelectionFailed : SelectingPeer -> SelectingPeer | Exhausted. The
	// attempt is consumed and no request is sent.
	SelectionFailed
	// ResponseReceived : Requesting -> EvaluatingResponse
	ResponseReceived
	// TransportFailed : Requesting -> SelectingPeer | Exhausted. Timeouts,
	// connection errors, non-2xx answers and undecodable bodies. The
	// predicate is not evaluated.
	TransportFailed
	// Rejected : EvaluatingResponse -> SelectingPeer | Exhausted
	Rejected
	// Accepted : EvaluatingResponse -> Succeeded
	Accepted
)

var transitionNames = []string{
	"PeerSelected",
	"SelectionFailed",
	"ResponseReceived",
	"TransportFailed",
	"Rejected",
	"Accepted",
}

func (t Transition) String() string {
	if int(t) < len(transitionNames) {
		return transitionNames[t]
	}
	return fmt.Sprintf("Transition(%d)", int(t))
}

// Event describes one transition of one Get call. Observers registered with
// Fetcher.OnTransition receive every Event. Query is the name of the query,
// Path the concrete path it requested.
type Event struct {
	RequestID  string
	Query      string
	Path       string
	Attempt    int
	Transition Transition
	From       State
	To         State

	// Peer is the peer the attempt used, when one was known.
	Peer *peers.Peer

	// Status is the HTTP status of the attempt's response. Transport
	// failures report 500.
	Status int

	// Err is set on SelectionFailed, TransportFailed and Rejected.
	Err error
}
