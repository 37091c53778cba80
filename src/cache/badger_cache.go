package cache

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dgraph-io/badger"
	"github.com/sirupsen/logrus"
)

const (
	cachePrefix = "cache"

	// expiryLen is the size of the expiry time, in unix milliseconds, stored
	// in front of every value.
	expiryLen = 8
)

// BadgerCache is a Cache persisted in a Badger database. Each value carries
// its own expiry time, with millisecond precision, checked on Get. Badger's
// TTL, which only has a one-second resolution, is set a second past that
// expiry and only serves to reclaim the space of expired entries.
type BadgerCache struct {
	db    *badger.DB
	path  string
	clock clock.Clock
}

// NewBadgerCache opens an existing database or creates a new one if nothing
// is found in path. A nil clk selects the system clock.
func NewBadgerCache(path string, clk clock.Clock, logger *logrus.Entry) (*BadgerCache, error) {
	if clk == nil {
		clk = clock.New()
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true)

	if logger != nil {
		sub := logger.WithFields(logrus.Fields{"ns": "badger"})
		opts = opts.WithLogger(sub)
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerCache{
		db:    handle,
		path:  path,
		clock: clk,
	}, nil
}

// StorePath returns the full path of the underlying Badger database directory.
func (c *BadgerCache) StorePath() string {
	return c.path
}

func cacheKey(key string) []byte {
	return []byte(fmt.Sprintf("%s_%s", cachePrefix, key))
}

// Get implements the Cache interface.
func (c *BadgerCache) Get(key string) ([]byte, bool) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	if err != nil || len(value) < expiryLen {
		return nil, false
	}

	expiresAt := int64(binary.BigEndian.Uint64(value[:expiryLen]))
	if c.clock.Now().UnixNano()/int64(time.Millisecond) >= expiresAt {
		return nil, false
	}

	return value[expiryLen:], true
}

// Set implements the Cache interface.
func (c *BadgerCache) Set(key string, value []byte, ttl time.Duration) error {
	tx := c.db.NewTransaction(true)
	defer tx.Discard()

	if ttl <= 0 {
		if err := tx.Delete(cacheKey(key)); err != nil {
			return err
		}
		return tx.Commit()
	}

	expiresAt := c.clock.Now().Add(ttl).UnixNano() / int64(time.Millisecond)

	data := make([]byte, expiryLen+len(value))
	binary.BigEndian.PutUint64(data, uint64(expiresAt))
	copy(data[expiryLen:], value)

	//insert [key] => [expiresAt|value], collected by Badger a second later
	e := badger.NewEntry(cacheKey(key), data).WithTTL(ttl + time.Second)
	if err := tx.SetEntry(e); err != nil {
		return err
	}

	return tx.Commit()
}

// Purge runs a value log garbage collection pass. Expired keys are already
// invisible to readers; Badger reclaims their space during compaction.
func (c *BadgerCache) Purge() {
	c.db.RunValueLogGC(0.5)
}

// Close closes the database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
