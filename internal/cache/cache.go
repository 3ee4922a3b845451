// Package cache stores encoded records in memory, on disk, or both.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"
)

// Cache holds opaque byte values under string keys
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds the cache key for a record of the given kind. Source names the
// backend the record came from, so two trees never share entries.
func Key(source, kind, handle string) string {
	hash := sha256.Sum256([]byte(source + "\x00" + handle))
	return "lifespan:v1:" + kind + ":" + hex.EncodeToString(hash[:12])
}

// Stats counts lookups
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

type counters struct {
	hits, misses atomic.Int64
}

func (c *counters) record(found bool) {
	if found {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

func (c *counters) stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
