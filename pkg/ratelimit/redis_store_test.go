package ratelimit_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/ratelimit"
)

func redisClient(t *testing.T) *goredis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestRedisStoreTakeIsAtomic(t *testing.T) {
	t.Parallel()

	store, err := ratelimit.NewRedisStore(redisClient(t))
	require.NoError(t, err)
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { _ = store.Delete(context.Background(), key) })

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, ttl, err := store.Take(context.Background(), key, 5, time.Minute)
			if assert.NoError(t, err) && ok {
				admitted.Add(1)
				assert.Positive(t, ttl)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(5), admitted.Load())

	count, ttl, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
	assert.Positive(t, ttl)
}

func TestRedisStoreMissingKey(t *testing.T) {
	t.Parallel()

	store, err := ratelimit.NewRedisStore(redisClient(t))
	require.NoError(t, err)

	count, ttl, err := store.Get(context.Background(), "test:"+uuid.NewString())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, ttl)
}
