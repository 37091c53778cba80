// Package config defines the configuration of a peerfetch client.
//
// Whether the client is embedded in Go code or run from the command line, it
// uses the Config object defined in this package. The command line loads it
// with viper from a peerfetch.toml (or .json, .yaml) file in Config.DataDir,
// overridden by flags. The data directory also holds:
//
//  active-peer.json // the last selected active peer, rewritten on every selection.
//  cache_db/ // (optional, cf. cache-store) the Badger database of the result cache.
//
// A minimal configuration file lists the archivers:
//
//  [[archivers]]
//  ip = "18.194.3.6"
//  port = 4000
//  publicKey = "758b1c119412298802cd28dbfa394cdfeecc4074492d60844cc192d632d84de3"
package config
