package common

import (
	"errors"
	"fmt"
)

// FetchErrType ...
type FetchErrType uint32

const (
	// SelectionFailed means no bootstrap peer answered with a usable node list.
	SelectionFailed FetchErrType = iota
	// Transport is a timeout, connection failure or non-2xx answer.
	Transport
	// RetriesExhausted means the attempt budget ran out.
	RetriesExhausted
	// NoPeerAvailable means no active peer could be established even once.
	NoPeerAvailable
	// MissingField means a successful answer lacked an expected field.
	MissingField
)

var fetchErrNames = []string{
	"Selection Failed",
	"Transport",
	"Retries Exhausted",
	"No Peer Available",
	"Missing Field",
}

// String ...
func (t FetchErrType) String() string {
	if int(t) < len(fetchErrNames) {
		return fetchErrNames[t]
	}
	return fmt.Sprintf("FetchErrType(%d)", uint32(t))
}

// FetchErr is returned by the peer selector, the fetcher and the network
// queries. Op names the operation or query path that failed.
type FetchErr struct {
	op      string
	errType FetchErrType
	cause   error
}

// NewFetchErr ...
func NewFetchErr(op string, errType FetchErrType, cause error) FetchErr {
	return FetchErr{
		op:      op,
		errType: errType,
		cause:   cause,
	}
}

// Type returns the error class.
func (e FetchErr) Type() FetchErrType {
	return e.errType
}

// Error ...
func (e FetchErr) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s, %s", e.op, e.errType)
	}
	return fmt.Sprintf("%s, %s: %v", e.op, e.errType, e.cause)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e FetchErr) Unwrap() error {
	return e.cause
}

// IsFetch checks whether err, or any error it wraps, is a FetchErr of type t.
// A RetriesExhausted error wraps the failure of the last attempt, so it
// matches both.
func IsFetch(err error, t FetchErrType) bool {
	for err != nil {
		if fetchErr, ok := err.(FetchErr); ok && fetchErr.errType == t {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
