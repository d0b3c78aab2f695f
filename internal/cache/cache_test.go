package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
)

func sampleEntry(composite float64) Entry {
	return Entry{
		Subject:     "ana",
		Counterpart: "luis",
		Context:     affinity.ContextExecution,
		Result: affinity.Result{
			Composite: composite,
			Heat:      affinity.Rescale135To100(composite),
			Level:     affinity.ClassifyLevel(composite),
			Band:      affinity.ClassifyBand(composite),
			Context:   affinity.ContextExecution,
		},
		ComputedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "affinity:ana:luis:execution", Key("ana", "luis", affinity.ContextExecution))
	assert.NotEqual(t, Key("ana", "luis", affinity.ContextExecution), Key("luis", "ana", affinity.ContextExecution))
}

func runCacheContract(t *testing.T, c ResultCache) {
	ctx := context.Background()

	_, err := c.Get(ctx, "ana", "luis", affinity.ContextExecution)
	assert.True(t, errors.Is(err, ErrMiss))

	require.NoError(t, c.Set(ctx, sampleEntry(100)))
	require.NoError(t, c.Set(ctx, sampleEntry(110)))

	got, err := c.Get(ctx, "ana", "luis", affinity.ContextExecution)
	require.NoError(t, err)
	if diff := cmp.Diff(sampleEntry(110), got); diff != "" {
		t.Errorf("last write should win (-want +got):\n%s", diff)
	}

	_, err = c.Get(ctx, "ana", "luis", affinity.ContextDecision)
	assert.True(t, errors.Is(err, ErrMiss))

	require.NoError(t, c.Delete(ctx, "ana", "luis", affinity.ContextExecution))
	_, err = c.Get(ctx, "ana", "luis", affinity.ContextExecution)
	assert.True(t, errors.Is(err, ErrMiss))
}

func TestMemoryCache(t *testing.T) {
	runCacheContract(t, NewMemoryCache(16, time.Minute, nil))
}

func TestMemoryCacheEvictsOldest(t *testing.T) {
	c := NewMemoryCache(2, time.Minute, nil)
	ctx := context.Background()
	for _, s := range []string{"a", "b", "c"} {
		e := sampleEntry(100)
		e.Subject = s
		require.NoError(t, c.Set(ctx, e))
	}
	assert.Equal(t, 2, c.Len())
	_, err := c.Get(ctx, "a", "luis", affinity.ContextExecution)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	runCacheContract(t, NewRedisCache(client, time.Hour, nil))
}

func TestRedisCacheTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisCache(client, time.Minute, nil)
	require.NoError(t, c.Set(context.Background(), sampleEntry(100)))
	assert.True(t, mr.Exists("affinity:ana:luis:execution"))

	mr.FastForward(2 * time.Minute)
	_, err := c.Get(context.Background(), "ana", "luis", affinity.ContextExecution)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisCacheConcurrentWriters(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c := NewRedisCache(client, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.Set(context.Background(), sampleEntry(90+float64(i))))
		}(i)
	}
	wg.Wait()

	got, err := c.Get(context.Background(), "ana", "luis", affinity.ContextExecution)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.Result.Composite, 90.0)
	assert.Less(t, got.Result.Composite, 110.0)
}

func TestBiasCache(t *testing.T) {
	b := NewBiasCache(8, time.Minute)
	_, ok := b.Get("ana")
	assert.False(t, ok)

	hint := affinity.NeutralBias()
	hint.Factor = 1.05
	b.Put("ana", hint)

	got, ok := b.Get("ana")
	require.True(t, ok)
	assert.Equal(t, 1.05, got.Factor)

	b.Forget("ana")
	_, ok = b.Get("ana")
	assert.False(t, ok)
}
