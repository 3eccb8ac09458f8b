package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/shopsync/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newCache() (*ProductListCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewProductListCache(DefaultProductTTL).WithClock(clock.Now), clock
}

func TestCacheFreshWithinTTL(t *testing.T) {
	c, clock := newCache()
	calls := 0
	fetch := func(context.Context) ([]domain.Product, error) {
		calls++
		return []domain.Product{{ID: "1", Name: "Glass"}}, nil
	}

	first, hit, err := c.Load(context.Background(), fetch)
	require.NoError(t, err)
	assert.False(t, hit)

	clock.Advance(59 * time.Second)
	second, hit, err := c.Load(context.Background(), fetch)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	clock.Advance(time.Second)
	_, hit, err = c.Load(context.Background(), fetch)
	require.NoError(t, err)
	assert.False(t, hit, "entry expires at the ttl")
	assert.Equal(t, 2, calls)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
}

func TestInvalidateForcesReload(t *testing.T) {
	c, _ := newCache()
	version := "v1"
	fetch := func(context.Context) ([]domain.Product, error) {
		return []domain.Product{{ID: "1", Name: version}}, nil
	}

	list, _, err := c.Load(context.Background(), fetch)
	require.NoError(t, err)
	assert.Equal(t, "v1", list[0].Name)

	version = "v2"
	c.Invalidate()

	_, ok := c.Get()
	assert.False(t, ok)

	list, hit, err := c.Load(context.Background(), fetch)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "v2", list[0].Name)
}

func TestStaleSetIsDiscarded(t *testing.T) {
	c, _ := newCache()
	gen := c.Generation()
	c.Invalidate()

	assert.False(t, c.Set([]domain.Product{{ID: "old"}}, gen))
	_, ok := c.Get()
	assert.False(t, ok)

	assert.True(t, c.Set([]domain.Product{{ID: "new"}}, c.Generation()))
	v, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, "new", v[0].ID)
}

func TestLoadErrorNotCached(t *testing.T) {
	c, _ := newCache()
	boom := errors.New("store down")

	_, _, err := c.Load(context.Background(), func(context.Context) ([]domain.Product, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get()
	assert.False(t, ok)
}

func TestConcurrentMissesShareFetch(t *testing.T) {
	c, _ := newCache()
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) ([]domain.Product, error) {
		calls.Add(1)
		<-release
		return []domain.Product{{ID: "1"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.Load(context.Background(), fetch)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	_, ok := c.Get()
	assert.True(t, ok)
}

func TestSharedFetchOutlivesCanceledCaller(t *testing.T) {
	c, _ := newCache()
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]domain.Product, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []domain.Product{{ID: "1"}}, nil
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.Load(first, fetch)
		firstErr <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		list, _, err := c.Load(context.Background(), fetch)
		if err == nil && len(list) != 1 {
			err = errors.New("unexpected list")
		}
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(release)

	require.NoError(t, <-second)
	require.NoError(t, <-firstErr)
	_, ok := c.Get()
	assert.True(t, ok)
}

func TestSharedFetchIsBounded(t *testing.T) {
	c, _ := newCache()
	c.WithFetchTimeout(20 * time.Millisecond)
	_, _, err := c.Load(context.Background(), func(ctx context.Context) ([]domain.Product, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
