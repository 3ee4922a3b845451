package store

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ppiankov/lifespan/internal/cache"
	"github.com/ppiankov/lifespan/internal/logger"
	"github.com/ppiankov/lifespan/internal/record"
)

// Backend is an opened record source
type Backend interface {
	record.Accessor
	record.Lister
	Close() error
}

// Importer is implemented by backends that can be bulk loaded
type Importer interface {
	Import(ctx context.Context, tree Tree) error
}

// Options configures Open
type Options struct {
	Neo4jUser     string
	Neo4jPassword string

	// Remote tree files
	Fetcher *Fetcher

	// Cache, when set, is placed in front of database backends
	Cache    cache.Cache
	CacheTTL time.Duration

	Log *zap.SugaredLogger
}

// Kind classifies a source string
type Kind string

const (
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
	KindGraph  Kind = "graph"
	KindRemote Kind = "remote"
)

// Classify reports which backend a source string selects:
// *.yaml, *.yml and *.json files are loaded into memory, "sqlite:" URIs and
// *.db / *.sqlite files open SQLite, bolt:// and neo4j:// URIs open a graph,
// http(s):// URLs download a tree file.
func Classify(source string) (Kind, string, error) {
	lower := strings.ToLower(source)
	switch {
	case strings.HasPrefix(lower, "sqlite:"):
		return KindSQLite, strings.TrimPrefix(source[len("sqlite:"):], "//"), nil
	case strings.HasPrefix(lower, "bolt://"), strings.HasPrefix(lower, "bolt+s://"),
		strings.HasPrefix(lower, "neo4j://"), strings.HasPrefix(lower, "neo4j+s://"):
		return KindGraph, source, nil
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return KindRemote, source, nil
	}
	switch filepath.Ext(lower) {
	case ".yaml", ".yml", ".json":
		return KindFile, source, nil
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite, source, nil
	}
	return "", "", errors.Newf("unrecognised source %q (want a .yaml/.json tree, a SQLite database or a bolt:// URI)", source)
}

// Open opens the backend selected by source
func Open(ctx context.Context, source string, opts Options) (Backend, error) {
	log := logger.Or(opts.Log)
	kind, target, err := Classify(source)
	if err != nil {
		return nil, err
	}
	log.Debugw("Opening source", logger.FieldSource, source, logger.FieldKind, string(kind))

	var b Backend
	switch kind {
	case KindFile:
		// Already in memory, a cache would only add copies
		m, err := LoadFile(target)
		if err != nil {
			return nil, err
		}
		return m, nil
	case KindRemote:
		m, err := openRemote(ctx, target, opts, log)
		if err != nil {
			return nil, err
		}
		return m, nil
	case KindSQLite:
		if b, err = OpenSQLite(ctx, target, log); err != nil {
			return nil, err
		}
	case KindGraph:
		driver, err := NewBoltDriver(ctx, target, opts.Neo4jUser, opts.Neo4jPassword, log)
		if err != nil {
			return nil, err
		}
		b = NewGraph(driver, log)
	}

	if opts.Cache != nil {
		return cachedBackend{NewCached(b, opts.Cache, source, opts.CacheTTL, log), b}, nil
	}
	return b, nil
}

// openRemote downloads a tree file. With a cache the raw file is kept so
// repeated runs skip the download until it expires.
func openRemote(ctx context.Context, rawURL string, opts Options, log *zap.SugaredLogger) (*Memory, error) {
	f := opts.Fetcher
	if f == nil {
		f = NewFetcher(time.Minute, "lifespan", 64<<20, "", "")
	}

	key := cache.Key(rawURL, "tree", "")
	if opts.Cache != nil {
		if data, ok := opts.Cache.Get(key); ok {
			if tree, err := DecodeTree(data); err == nil {
				log.Debugw("Tree served from cache", logger.FieldSource, rawURL)
				return NewMemory(tree), nil
			}
			_ = opts.Cache.Delete(key)
		}
	}

	data, err := f.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", rawURL)
	}
	tree, err := DecodeTree(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", rawURL)
	}
	if opts.Cache != nil {
		if err := opts.Cache.Set(key, data, opts.CacheTTL); err != nil {
			log.Warnw("Cache write failed", logger.FieldSource, rawURL, logger.FieldError, err)
		}
	}
	log.Infow("Downloaded tree", logger.FieldSource, rawURL, logger.FieldCount, len(tree.Persons))
	return NewMemory(tree), nil
}

// cachedBackend keeps Import reachable through the cache wrapper
type cachedBackend struct {
	*Cached
	inner Backend
}

func (c cachedBackend) Import(ctx context.Context, tree Tree) error {
	imp, ok := c.inner.(Importer)
	if !ok {
		return errors.New("source does not support import")
	}
	if err := imp.Import(ctx, tree); err != nil {
		return err
	}
	// Imported records replace cached ones from this source; other
	// sources sharing the cache keep their entries
	return c.Forget(tree)
}
