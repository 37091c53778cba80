// Package cache implements the time-to-live cache placed in front of
// network-wide queries.
//
// An entry is visible only while the current time is before its expiry;
// expired entries behave exactly as absent ones. InmemCache keeps entries in
// memory for the life of the process. BadgerCache keeps them in a Badger
// database, relying on Badger's own per-entry TTL, so that a restarted process
// can reuse them.
package cache

import (
	"bytes"
	"reflect"
	"time"

	"github.com/ugorji/go/codec"
)

// Cache is a TTL key-value cache. Implementations are safe for concurrent
// use.
type Cache interface {
	// Get returns the value of key, or false if it is absent or expired.
	Get(key string) ([]byte, bool)

	// Set creates or overwrites key, visible for ttl from now. A ttl <= 0
	// removes the key.
	Set(key string, value []byte, ttl time.Duration) error

	// Purge drops expired entries.
	Purge()

	// Close releases the resources held by the cache.
	Close() error
}

// jsonHandle decodes schema-less values the way encoding/json does, so that a
// cached payload reads back identical to a freshly fetched one.
func jsonHandle() *codec.JsonHandle {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	jh.PreferFloat = true
	jh.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return jh
}

// GetValue decodes the cached value of key into v. It returns false if the key
// is absent or expired.
func GetValue(c Cache, key string, v interface{}) (bool, error) {
	data, ok := c.Get(key)
	if !ok {
		return false, nil
	}

	b := bytes.NewBuffer(data)
	dec := codec.NewDecoder(b, jsonHandle())

	if err := dec.Decode(v); err != nil {
		return false, err
	}

	return true, nil
}

// SetValue encodes v and caches it under key for ttl.
func SetValue(c Cache, key string, v interface{}, ttl time.Duration) error {
	b := new(bytes.Buffer)
	enc := codec.NewEncoder(b, jsonHandle())

	if err := enc.Encode(v); err != nil {
		return err
	}

	return c.Set(key, b.Bytes(), ttl)
}
