package peers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

const jsonActivePeerPath = "active-peer.json"

// JSONActivePeer is used to persist the active peer on disk in the form of a
// JSON file. Writes within the process are serialised by a mutex, and writes
// from other peerfetch processes sharing the data directory by a lock file.
type JSONActivePeer struct {
	l      sync.Mutex
	path   string
	lock   *flock.Flock
	logger *logrus.Entry
}

// NewJSONActivePeer creates a new JSONActivePeer with reference to a base
// directory where the JSON file resides.
func NewJSONActivePeer(base string, logger *logrus.Entry) *JSONActivePeer {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	path := filepath.Join(base, jsonActivePeerPath)

	return &JSONActivePeer{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
	}
}

// Path returns the full path of the JSON file.
func (j *JSONActivePeer) Path() string {
	return j.path
}

// Load parses the underlying JSON file. A missing, empty or malformed file
// yields nil.
func (j *JSONActivePeer) Load() *Peer {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := os.ReadFile(j.path)
	if err != nil {
		if !os.IsNotExist(err) {
			j.logger.WithError(err).WithField("path", j.path).Warn("Reading active peer file")
		}
		return nil
	}

	// Check for no peer
	if len(bytes.TrimSpace(buf)) == 0 {
		return nil
	}

	var peer Peer
	if err := json.Unmarshal(buf, &peer); err != nil {
		j.logger.WithError(err).WithField("path", j.path).Warn("Ignoring malformed active peer file")
		return nil
	}

	if !peer.Reachable() {
		j.logger.WithField("path", j.path).Warn("Ignoring active peer record without address")
		return nil
	}

	return &peer
}

// Save overwrites the JSON file with peer. The record is written to a
// temporary file in the same directory and renamed into place.
func (j *JSONActivePeer) Save(peer *Peer) error {
	j.l.Lock()
	defer j.l.Unlock()

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if err := j.lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", j.lock.Path(), err)
	}
	defer j.lock.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(peer); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".active-peer-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, j.path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return nil
}
