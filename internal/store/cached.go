package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ppiankov/lifespan/internal/cache"
	"github.com/ppiankov/lifespan/internal/logger"
	"github.com/ppiankov/lifespan/internal/record"
)

// Cached is a read-through cache in front of a slower accessor. Records are
// stored JSON-encoded; lookups that fail are never cached.
type Cached struct {
	next   record.Accessor
	cache  cache.Cache
	source string
	ttl    time.Duration
	log    *zap.SugaredLogger
}

// NewCached wraps next. Source scopes the cache keys to one backend.
func NewCached(next record.Accessor, c cache.Cache, source string, ttl time.Duration, log *zap.SugaredLogger) *Cached {
	return &Cached{
		next:   next,
		cache:  c,
		source: source,
		ttl:    ttl,
		log:    logger.Or(log),
	}
}

func (c *Cached) Person(ctx context.Context, handle string) (*record.Person, error) {
	return readThrough(c, "person", handle, func() (*record.Person, error) {
		return c.next.Person(ctx, handle)
	})
}

func (c *Cached) Family(ctx context.Context, handle string) (*record.Family, error) {
	return readThrough(c, "family", handle, func() (*record.Family, error) {
		return c.next.Family(ctx, handle)
	})
}

func (c *Cached) Event(ctx context.Context, handle string) (*record.Event, error) {
	return readThrough(c, "event", handle, func() (*record.Event, error) {
		return c.next.Event(ctx, handle)
	})
}

// PersonHandles passes through to the wrapped accessor when it can list
func (c *Cached) PersonHandles(ctx context.Context) ([]string, error) {
	l, ok := c.next.(record.Lister)
	if !ok {
		return nil, errors.Newf("source %s cannot list persons", c.source)
	}
	return l.PersonHandles(ctx)
}

// Forget drops the cached copies of every record in tree
func (c *Cached) Forget(tree Tree) error {
	var err error
	drop := func(kind, handle string) {
		err = errors.CombineErrors(err, c.cache.Delete(cache.Key(c.source, kind, handle)))
	}
	for i := range tree.Persons {
		drop("person", tree.Persons[i].Handle)
	}
	for i := range tree.Families {
		drop("family", tree.Families[i].Handle)
	}
	for i := range tree.Events {
		drop("event", tree.Events[i].Handle)
	}
	return err
}

// Close closes the wrapped accessor if it holds resources
func (c *Cached) Close() error {
	if cl, ok := c.next.(interface{ Close() error }); ok {
		return cl.Close()
	}
	return nil
}

func readThrough[T any](c *Cached, kind, handle string, load func() (*T, error)) (*T, error) {
	key := cache.Key(c.source, kind, handle)
	if data, ok := c.cache.Get(key); ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			return &v, nil
		}
		c.log.Debugw("Dropping undecodable cache entry", logger.FieldKind, kind, logger.FieldHandle, handle)
		_ = c.cache.Delete(key)
	}

	v, err := load()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s %s", kind, handle)
	}
	if err := c.cache.Set(key, data, c.ttl); err != nil {
		c.log.Warnw("Cache write failed", logger.FieldKind, kind, logger.FieldHandle, handle, logger.FieldError, err)
	}
	return v, nil
}
