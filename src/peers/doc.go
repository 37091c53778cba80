// Package peers defines the peers peerfetch talks to and the state it keeps
// about them.
//
// A bootstrap peer, or archiver, is a well-known and stable node whose only
// role here is to tell us who is currently a member of the network. The list
// of bootstrap peers ships in the configuration and never changes while the
// process runs; it is held by a Registry.
//
// The active peer is the network member against which data queries are
// issued. There is exactly one current active peer per session, held by an
// ActivePeer. It is replaced every time a new peer is selected from the
// network, and every successful replacement is persisted to an
// active-peer.json file in the data directory, so that a restarted process
// can resume with the same peer without asking an archiver first:
//
//  {"id": "...", "ip": "1.2.3.4", "port": 9001, "publicKey": "..."}
//
// The file is overwritten wholesale by writing a temporary file and renaming
// it, so a concurrent reader never sees a partial record.
package peers
