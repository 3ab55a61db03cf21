package registry

import (
	"context"
	"fmt"
	"go/parser"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/eagerpath/internal/expr"
	"github.com/roach88/eagerpath/internal/path"
	"github.com/roach88/eagerpath/internal/typeinfo"
	"github.com/roach88/eagerpath/internal/validate"
	"github.com/roach88/eagerpath/internal/walker"
)

// Entry is the memoized compilation of one path expression.
type Entry struct {
	// Source is the expression text of the first writer.
	Source string

	// Trace is the walked step sequence.
	Trace *path.Trace

	// Path is the reduced path. Zero when Err is set.
	Path path.Path

	// Err is the reduction failure, if any. Reduction is deterministic, so a
	// failure is cached like a success.
	Err error

	// Findings are the validator findings for Trace.
	Findings []validate.Finding

	identity *expr.Lambda
}

type bucketKey struct {
	root string
	hash uint64
}

// Cache memoizes walker output by the structural identity of the source
// expression. Expressions that differ only in the names of bound parameters
// share one entry.
//
// Insertion is first-writer-wins: when two goroutines compile structurally
// equal expressions concurrently, the loser discards its result and returns
// the winner's. Concurrent misses on the same key are collapsed with
// singleflight.
//
// Cache is safe for concurrent use.
type Cache struct {
	universe typeinfo.Universe
	opts     walker.Options
	logger   *slog.Logger

	mu      sync.RWMutex
	buckets map[bucketKey][]*Entry
	size    int

	flight singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) { c.logger = l }
}

// NewCache returns an empty cache over the type universe u.
func NewCache(u typeinfo.Universe, opts walker.Options, options ...CacheOption) *Cache {
	c := &Cache{
		universe: u,
		opts:     opts,
		logger:   slog.Default(),
		buckets:  make(map[bucketKey][]*Entry),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Universe returns the type universe the cache walks against.
func (c *Cache) Universe() typeinfo.Universe { return c.universe }

// Options returns the walker options the cache walks with.
func (c *Cache) Options() walker.Options { return c.opts }

// Lookup returns the entry for src rooted at rootType, walking it on a miss.
//
// Walk failures (syntax, unsupported shapes, closure capture) are returned
// as errors and never cached. A reduction failure is cached on the entry.
func (c *Cache) Lookup(ctx context.Context, rootType, src string) (*Entry, error) {
	e, err := parser.ParseExpr(src)
	if err != nil {
		return nil, &walker.WalkError{Kind: walker.KindSyntax, Message: err.Error(), Step: -1}
	}
	id, err := walker.Identity(e, rootType, c.opts)
	if err != nil {
		return nil, err
	}
	key := bucketKey{root: rootType, hash: expr.Hash(id)}

	if entry := c.get(key, id); entry != nil {
		c.hits.Add(1)
		recordHit(ctx, rootType)
		return entry, nil
	}
	c.misses.Add(1)
	recordMiss(ctx, rootType)

	v, err, shared := c.flight.Do(fmt.Sprintf("%s/%x", rootType, key.hash), func() (any, error) {
		if entry := c.get(key, id); entry != nil {
			return entry, nil
		}
		return c.compile(ctx, key, id, src)
	})
	if err != nil {
		return nil, err
	}

	entry := v.(*Entry)
	if shared && !expr.Equal(entry.identity, id) {
		// Hash collision with a concurrent, different expression.
		return c.compile(ctx, key, id, src)
	}
	return entry, nil
}

// Parse is Lookup returning only the reduced path.
func (c *Cache) Parse(ctx context.Context, rootType, src string) (path.Path, error) {
	entry, err := c.Lookup(ctx, rootType, src)
	if err != nil {
		return path.Path{}, err
	}
	return entry.Path, entry.Err
}

func (c *Cache) get(key bucketKey, id *expr.Lambda) *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, entry := range c.buckets[key] {
		if expr.Equal(entry.identity, id) {
			return entry
		}
	}
	return nil
}

func (c *Cache) compile(ctx context.Context, key bucketKey, id *expr.Lambda, src string) (*Entry, error) {
	t, err := walker.ParseTrace(src, key.root, c.universe, c.opts)
	if err != nil {
		return nil, err
	}
	p, rerr := walker.Reduce(t)
	entry := &Entry{
		Source:   src,
		Trace:    t,
		Path:     p,
		Err:      rerr,
		Findings: validate.Validate(t),
		identity: id,
	}
	return c.insert(ctx, key, entry), nil
}

// insert adds entry unless an equal one is present, and returns the entry
// that is in the cache afterward.
func (c *Cache) insert(ctx context.Context, key bucketKey, entry *Entry) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.buckets[key] {
		if expr.Equal(existing.identity, entry.identity) {
			recordInsert(ctx, key.root, false)
			c.logger.Debug("path cache insert lost", "root", key.root, "expr", entry.Source, "winner", existing.Source)
			return existing
		}
	}
	c.buckets[key] = append(c.buckets[key], entry)
	c.size++
	recordInsert(ctx, key.root, true)
	c.logger.Debug("path cache insert", "root", key.root, "expr", entry.Source, "hash", fmt.Sprintf("%x", key.hash))
	return entry
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
