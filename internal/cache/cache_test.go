package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryProviderExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryProviderWithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	clock.Advance(59 * time.Second)
	_, err = c.Get(ctx, "k")
	assert.NoError(t, err)

	clock.Advance(time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryProviderZeroTTLNeverExpires(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	c := NewMemoryProviderWithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	clock.Advance(24 * 365 * time.Hour)
	_, err := c.Get(ctx, "k")
	assert.NoError(t, err)
}

func TestMemoryProviderReturnsCopies(t *testing.T) {
	c := NewMemoryProvider()
	ctx := context.Background()
	value := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", value, 0))
	value[0] = 'z'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 'z'

	again, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryProviderSetNX(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	c := NewMemoryProviderWithClock(clock.Now)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", []byte("a"), time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", []byte("b"), time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Advance(time.Second)
	ok, err = c.SetNX(ctx, "lock", []byte("c"), time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryProviderDelPrefixAndClear(t *testing.T) {
	c := NewMemoryProvider()
	ctx := context.Background()
	for _, key := range []string{"prediction:a", "prediction:b", "other"} {
		require.NoError(t, c.Set(ctx, key, []byte("x"), 0))
	}

	n, err := c.DelPrefix(ctx, "prediction:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Del(ctx, "other"))
	require.NoError(t, c.Set(ctx, "again", []byte("x"), 0))
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestMemoryProviderConcurrentAccess(t *testing.T) {
	c := NewMemoryProvider()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = c.Set(ctx, "shared", []byte("value"), time.Minute)
				_, _ = c.Get(ctx, "shared")
			}
		}()
	}
	wg.Wait()

	got, err := c.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
}

func TestNoopProvider(t *testing.T) {
	var p Provider = NoopProvider{}
	ctx := context.Background()
	require.NoError(t, p.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := p.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	n, err := p.DelPrefix(ctx, "k")
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewRedisProviderRequiresAddr(t *testing.T) {
	_, err := NewRedisProvider(RedisConfig{})
	assert.Error(t, err)
}

func TestNewRedisProviderFailsFastWhenUnreachable(t *testing.T) {
	_, err := NewRedisProvider(RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: 1})
	assert.Error(t, err)
}

func TestNormaliseDurations(t *testing.T) {
	cfg := RedisConfig{}
	normaliseDurations(&cfg)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
}
