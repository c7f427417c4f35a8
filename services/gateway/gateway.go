// Package gateway runs collection queries behind a short-lived result cache.
//
// A fresh entry is served without calling the fetcher. When a fetch fails the
// last stored value for the key is served instead, however old it is, and the
// error only reaches the caller when nothing was ever stored.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meghashyamc/playfinder/logger"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL          = 60 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

type Fetcher func(ctx context.Context) (any, error)

type entry struct {
	data     any
	storedAt time.Time
}

type Gateway struct {
	logger       logger.Logger
	defaultTTL   time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	// concurrent misses on one key share a single fetch
	inflight singleflight.Group
	// callers currently waiting on a shared fetch
	waiting atomic.Int32
}

type Option func(*Gateway)

// WithFetchTimeout bounds a shared fetch. It applies even after every waiting caller has gone.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		if timeout > 0 {
			g.fetchTimeout = timeout
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

func New(logger logger.Logger, defaultTTL time.Duration, opts ...Option) *Gateway {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	g := &Gateway{
		logger:       logger,
		defaultTTL:   defaultTTL,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		entries:      make(map[string]entry),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Query returns the cached value for key when it is younger than ttl, otherwise
// calls fetch. A ttl of zero uses the gateway default. Stored values are shared
// between callers and must not be mutated.
func (g *Gateway) Query(ctx context.Context, key string, ttl time.Duration, fetch Fetcher) (any, error) {
	if ttl <= 0 {
		ttl = g.defaultTTL
	}

	if cached, ok := g.lookup(key); ok && g.now().Sub(cached.storedAt) < ttl {
		g.logger.Debug("cache hit", "key", key)
		return cached.data, nil
	}

	// The shared fetch outlives any one caller, so a caller that goes away
	// only stops its own wait.
	resultC := g.inflight.DoChan(key, func() (data any, err error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.fetchTimeout)
		defer cancel()
		// DoChan re-raises a panic on its own goroutine where no caller can recover it
		defer func() {
			if recovered := recover(); recovered != nil {
				data, err = nil, fmt.Errorf("%w: %v", ErrQueryPanicked, recovered)
			}
		}()

		data, err = fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		g.store(key, data)
		return data, nil
	})

	var data any
	var err error
	g.waiting.Add(1)
	select {
	case result := <-resultC:
		data, err = result.Val, result.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	g.waiting.Add(-1)

	if err != nil {
		if stale, ok := g.lookup(key); ok {
			g.logger.Warn("fetch failed, serving stale cache entry", "key", key, "age", g.now().Sub(stale.storedAt).String(), "err", err.Error())
			return stale.data, nil
		}
		g.logger.Warn("fetch failed and nothing is cached", "key", key, "err", err.Error())
		return nil, err
	}

	return data, nil
}

// Clear drops the entry for key.
func (g *Gateway) Clear(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, key)
}

func (g *Gateway) ClearAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = make(map[string]entry)
}

func (g *Gateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

func (g *Gateway) lookup(key string) (entry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	cached, ok := g.entries[key]
	return cached, ok
}

func (g *Gateway) store(key string, data any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[key] = entry{data: data, storedAt: g.now()}
}

// Query is the typed form of Gateway.Query.
func Query[T any](ctx context.Context, g *Gateway, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	data, err := g.Query(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}

	typed, ok := data.(T)
	if !ok {
		return zero, fmt.Errorf("cached value for key %s has unexpected type %T", key, data)
	}
	return typed, nil
}
