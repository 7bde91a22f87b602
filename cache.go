package spacetraveling

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/eringen/spacetraveling/faults"
	"github.com/eringen/spacetraveling/metrics"
)

// Page cache keys. Post pages are keyed "post:<uid>".
const (
	homeKey       = "home"
	pathsKey      = "paths"
	postKeyPrefix = "post:"
)

func postKey(uid string) string { return postKeyPrefix + uid }

// PageCache holds generated page data. An entry is fresh for ttl after it
// was generated; after that it is still served while one background
// regeneration replaces it. Entries are mirrored to the Store so a
// restarted server starts warm.
type PageCache struct {
	mu         sync.RWMutex
	entries    map[string]pageEntry
	refreshing map[string]bool
	ttl        time.Duration
	timeout    time.Duration
	store      *Store

	group      singleflight.Group
	background sync.WaitGroup
	now        func() time.Time
}

type pageEntry struct {
	value     any
	generated time.Time
}

// NewPageCache creates a PageCache. store may be nil; timeout bounds each
// regeneration.
func NewPageCache(s *Store, ttl, timeout time.Duration) *PageCache {
	return &PageCache{
		entries:    make(map[string]pageEntry),
		refreshing: make(map[string]bool),
		ttl:        ttl,
		timeout:    timeout,
		store:      s,
		now:        time.Now,
	}
}

// generator produces the data a page is rendered from.
type generator func(ctx context.Context) (any, error)

func erase[T any](gen func(context.Context) (T, error)) generator {
	return func(ctx context.Context) (any, error) {
		return gen(ctx)
	}
}

// cachedPage returns the data for key, generating it on a miss. Stale data
// is returned immediately and refreshed in the background.
func cachedPage[T any](ctx context.Context, c *PageCache, key string, gen func(context.Context) (T, error)) (T, error) {
	kind := cacheKind(key)
	e, ok := c.lookup(key)
	if !ok {
		e, ok = loadSnapshot[T](c, key)
	}
	if ok {
		if c.now().Sub(e.generated) < c.ttl {
			metrics.PageCache.WithLabelValues(kind, "hit").Inc()
		} else {
			metrics.PageCache.WithLabelValues(kind, "stale").Inc()
			c.refreshInBackground(key, erase(gen))
		}
		return e.value.(T), nil
	}

	metrics.PageCache.WithLabelValues(kind, "miss").Inc()
	v, err := c.regenerate(ctx, key, erase(gen))
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// refreshPage regenerates key now, whatever its age.
func refreshPage[T any](ctx context.Context, c *PageCache, key string, gen func(context.Context) (T, error)) (T, error) {
	v, err := c.regenerate(ctx, key, erase(gen))
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (c *PageCache) lookup(key string) (pageEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func loadSnapshot[T any](c *PageCache, key string) (pageEntry, bool) {
	if c.store == nil {
		return pageEntry{}, false
	}
	snap, err := c.store.GetSnapshot(key)
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			slog.Warn("Failed to read snapshot", "key", key, "error", err)
		}
		return pageEntry{}, false
	}
	var v T
	if err := json.Unmarshal(snap.Data, &v); err != nil {
		slog.Warn("Discarding unreadable snapshot", "key", key, "error", err)
		return pageEntry{}, false
	}
	e := pageEntry{value: v, generated: snap.GeneratedAt}
	c.mu.Lock()
	if cur, ok := c.entries[key]; ok {
		e = cur
	} else {
		c.entries[key] = e
	}
	c.mu.Unlock()
	return e, true
}

// regenerate runs gen once per key at a time; concurrent callers share the
// result. The generation is detached from the caller's cancellation so a
// client disconnect does not waste a CMS round trip others wait on.
func (c *PageCache) regenerate(ctx context.Context, key string, gen generator) (any, error) {
	kind := cacheKind(key)
	v, err, _ := c.group.Do(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		v, err := gen(ctx)
		if err != nil {
			metrics.Regenerations.WithLabelValues(kind, "error").Inc()
			if faults.KindOf(err) == faults.KindNotFound {
				c.Invalidate(key)
			}
			return nil, err
		}
		c.put(key, v)
		metrics.Regenerations.WithLabelValues(kind, "ok").Inc()
		return v, nil
	})
	return v, err
}

func (c *PageCache) refreshInBackground(key string, gen generator) {
	c.mu.Lock()
	if c.refreshing[key] {
		c.mu.Unlock()
		return
	}
	c.refreshing[key] = true
	c.mu.Unlock()

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		defer func() {
			c.mu.Lock()
			delete(c.refreshing, key)
			c.mu.Unlock()
		}()
		if _, err := c.regenerate(context.Background(), key, gen); err != nil {
			slog.Warn("Background regeneration failed, serving stale page", "key", key, "error", err)
		}
	}()
}

func (c *PageCache) put(key string, v any) {
	now := c.now()
	c.mu.Lock()
	c.entries[key] = pageEntry{value: v, generated: now}
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode snapshot", "key", key, "error", err)
		return
	}
	if err := c.store.SaveSnapshot(Snapshot{Key: key, Data: data, GeneratedAt: now}); err != nil {
		slog.Error("Failed to save snapshot", "key", key, "error", err)
	}
}

// Invalidate drops key from memory and from the store.
func (c *PageCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	if c.store != nil {
		if err := c.store.DeleteSnapshot(key); err != nil {
			slog.Warn("Failed to delete snapshot", "key", key, "error", err)
		}
	}
}

// Expire marks every entry stale without dropping it.
func (c *PageCache) Expire() {
	c.mu.Lock()
	for k, e := range c.entries {
		e.generated = time.Time{}
		c.entries[k] = e
	}
	c.mu.Unlock()
	if c.store != nil {
		if err := c.store.ExpireSnapshots(); err != nil {
			slog.Warn("Failed to expire snapshots", "error", err)
		}
	}
}

// Keys returns the cached keys with the given prefix, in memory or in the
// store, sorted.
func (c *PageCache) Keys(prefix string) []string {
	set := make(map[string]struct{})
	c.mu.RLock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			set[k] = struct{}{}
		}
	}
	c.mu.RUnlock()
	if c.store != nil {
		stored, err := c.store.ListSnapshotKeys(prefix)
		if err != nil {
			slog.Warn("Failed to list snapshots", "error", err)
		}
		for _, k := range stored {
			set[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Wait blocks until background regenerations have finished.
func (c *PageCache) Wait() {
	c.background.Wait()
}

func cacheKind(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}
