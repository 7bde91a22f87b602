package spacetraveling

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/spacetraveling/faults"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(store *Store) (*PageCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewPageCache(store, 30*time.Minute, time.Second)
	c.now = clock.Now
	return c, clock
}

// counter returns a generator yielding "v1", "v2", ... on successive calls.
func counter(calls *atomic.Int32) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		n := calls.Add(1)
		return "v" + string(rune('0'+n)), nil
	}
}

func TestCachedPage_HitWithinWindow(t *testing.T) {
	c, clock := newTestCache(nil)
	var calls atomic.Int32

	v, err := cachedPage(context.Background(), c, "home", counter(&calls))
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	clock.Advance(29 * time.Minute)
	v, err = cachedPage(context.Background(), c, "home", counter(&calls))
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCachedPage_ServesStaleThenRefreshes(t *testing.T) {
	c, clock := newTestCache(nil)
	var calls atomic.Int32

	_, err := cachedPage(context.Background(), c, "home", counter(&calls))
	require.NoError(t, err)
	clock.Advance(31 * time.Minute)

	v, err := cachedPage(context.Background(), c, "home", counter(&calls))
	require.NoError(t, err)
	assert.Equal(t, "v1", v, "stale value is served while refreshing")

	c.Wait()
	v, err = cachedPage(context.Background(), c, "home", counter(&calls))
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCachedPage_FailedRefreshKeepsStale(t *testing.T) {
	c, clock := newTestCache(nil)
	_, err := cachedPage(context.Background(), c, "home", func(context.Context) (string, error) { return "old", nil })
	require.NoError(t, err)
	clock.Advance(time.Hour)

	failing := func(context.Context) (string, error) {
		return "", faults.FetchFailed("test", errors.New("down"))
	}
	v, err := cachedPage(context.Background(), c, "home", failing)
	require.NoError(t, err)
	assert.Equal(t, "old", v)

	c.Wait()
	v, err = cachedPage(context.Background(), c, "home", failing)
	require.NoError(t, err)
	assert.Equal(t, "old", v)
}

func TestCachedPage_MissDeduplicatesConcurrentCallers(t *testing.T) {
	c, _ := newTestCache(nil)
	var calls atomic.Int32
	release := make(chan struct{})
	gen := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "page", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cachedPage(context.Background(), c, "post:a", gen)
			assert.NoError(t, err)
			assert.Equal(t, "page", v)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestCachedPage_NotFoundIsNotCached(t *testing.T) {
	c, _ := newTestCache(nil)
	var calls atomic.Int32
	gen := func(context.Context) (string, error) {
		calls.Add(1)
		return "", faults.NotFound("test", errors.New("post \"x\""))
	}

	for i := 0; i < 2; i++ {
		_, err := cachedPage(context.Background(), c, "post:x", gen)
		assert.ErrorIs(t, err, faults.ErrNotFound)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Empty(t, c.Keys(postKeyPrefix))
}

func TestCachedPage_WarmStartFromStore(t *testing.T) {
	store := setupTestStore(t)
	first, clock := newTestCache(store)
	_, err := cachedPage(context.Background(), first, "post:hooks", func(context.Context) (string, error) { return "from cms", nil })
	require.NoError(t, err)

	second := NewPageCache(store, 30*time.Minute, time.Second)
	second.now = clock.Now
	v, err := cachedPage(context.Background(), second, "post:hooks", func(context.Context) (string, error) {
		t.Fatal("generator should not run on a warm start")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from cms", v)
}

func TestPageCache_ExpireAndInvalidate(t *testing.T) {
	store := setupTestStore(t)
	c, _ := newTestCache(store)
	var calls atomic.Int32
	_, err := cachedPage(context.Background(), c, "post:a", counter(&calls))
	require.NoError(t, err)
	_, err = cachedPage(context.Background(), c, "post:b", counter(&calls))
	require.NoError(t, err)
	assert.Equal(t, []string{"post:a", "post:b"}, c.Keys(postKeyPrefix))

	c.Expire()
	v, err := cachedPage(context.Background(), c, "post:a", counter(&calls))
	require.NoError(t, err)
	assert.Equal(t, "v1", v, "expired entries are still served")
	c.Wait()
	assert.Equal(t, int32(3), calls.Load())

	c.Invalidate("post:b")
	assert.Equal(t, []string{"post:a"}, c.Keys(postKeyPrefix))
	_, err = store.GetSnapshot("post:b")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestRefreshPage_IgnoresFreshness(t *testing.T) {
	c, _ := newTestCache(nil)
	var calls atomic.Int32
	_, err := cachedPage(context.Background(), c, "paths", counter(&calls))
	require.NoError(t, err)

	v, err := refreshPage(context.Background(), c, "paths", counter(&calls))
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}
