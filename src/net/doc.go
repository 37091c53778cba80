// Package net implements the HTTP transport used to query archivers, network
// peers and the local node.
//
// Every query is a GET returning a JSON document. A Client applies a fixed
// per-request timeout (2000 ms by default) and classifies the answer: a
// connection failure, a timeout, a non-2xx status or an undecodable body are
// all reported as errors, together with the HTTP status when one was
// received. Retrying is not the concern of this package; see the fetch
// package for the retry loop that sits on top of it.
//
// Query parameters are given as a struct with `url` tags and encoded with
// go-querystring, eg:
//
//  type accountParams struct {
//  	Type int `url:"type,omitempty"`
//  }
package net
